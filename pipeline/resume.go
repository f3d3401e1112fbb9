package pipeline

// decodeApproval interprets a Command.Resume value delivered to an approval
// point. Scheduler.Approve/Reject hand nodes either a bare bool or a
// map[string]interface{}{"approved": ..., "feedback": ...} — both shapes are
// accepted so a caller can use whichever is convenient.
func decodeApproval(resume interface{}) (approved bool, feedback string) {
	switch v := resume.(type) {
	case bool:
		return v, ""
	case map[string]interface{}:
		if a, ok := v["approved"].(bool); ok {
			approved = a
		}
		if f, ok := v["feedback"].(string); ok {
			feedback = f
		}
		return approved, feedback
	default:
		return false, ""
	}
}

// blockerAction is a human's decision at blocker_resolution_node.
type blockerAction string

const (
	blockerActionContinue blockerAction = "continue"
	blockerActionSkip     blockerAction = "skip"
	blockerActionAbort    blockerAction = "abort"
)

// decodeBlockerAction interprets a Command.Resume value delivered to
// blocker_resolution_node: {"action": "continue"|"skip"|"abort"}.
func decodeBlockerAction(resume interface{}) blockerAction {
	v, ok := resume.(map[string]interface{})
	if !ok {
		return ""
	}
	action, _ := v["action"].(string)
	return blockerAction(action)
}
