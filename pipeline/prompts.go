package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/prompt"
)

// boundPrompt resolves promptID's content: the current version if one has
// been set, otherwise the built-in default. A nil Store falls back to an
// empty instruction block rather than failing, so nodes remain testable
// without wiring a full prompt.Store.
func boundPrompt(ctx context.Context, store prompt.Store, promptID string) (string, error) {
	if store == nil {
		return "", nil
	}
	versionID, err := store.CurrentVersion(ctx, promptID)
	if err != nil {
		return "", fmt.Errorf("pipeline: resolve prompt version for %s: %w", promptID, err)
	}
	if versionID != "" {
		content, err := store.GetVersion(ctx, promptID, versionID)
		if err != nil {
			return "", fmt.Errorf("pipeline: load prompt version for %s: %w", promptID, err)
		}
		return content, nil
	}
	content, err := store.GetDefault(ctx, promptID)
	if err != nil {
		return "", fmt.Errorf("pipeline: load default prompt for %s: %w", promptID, err)
	}
	return content, nil
}

// architectPrompt composes the architect agent's instructions: its bound
// system prompt, the issue under work, and any rejection feedback from a
// prior human_approval_node pass.
func architectPrompt(instructions string, issue domain.Issue, feedback string) string {
	var b strings.Builder
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Issue %s: %s\n\n%s\n", issue.IssueID, issue.Title, issue.Body)
	if feedback != "" {
		fmt.Fprintf(&b, "\nThe previous plan was rejected with this feedback:\n%s\n", feedback)
	}
	return b.String()
}

// developerStepPrompt composes a single plan step into developer agent
// instructions.
func developerStepPrompt(step domain.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %s (%s): %s\n", step.ID, step.ActionType, step.Description)
	if step.FilePath != "" {
		fmt.Fprintf(&b, "File: %s\n", step.FilePath)
	}
	if step.CodeChange != "" {
		fmt.Fprintf(&b, "Change:\n%s\n", step.CodeChange)
	}
	if step.Command != "" {
		fmt.Fprintf(&b, "Command: %s (cwd %s)\n", step.Command, step.Cwd)
		if len(step.FallbackCommands) > 0 {
			fmt.Fprintf(&b, "If that command fails, try in order: %v\n", step.FallbackCommands)
		}
		fmt.Fprintf(&b, "Expected exit code: %d\n", step.ExpectExitCode)
	}
	if step.ExpectedOutputPattern != "" {
		fmt.Fprintf(&b, "Expected output pattern: %s\n", step.ExpectedOutputPattern)
	}
	return b.String()
}

// reviewerPrompt composes the reviewer agent's instructions from the
// completed batch results.
func reviewerPrompt(instructions string, plan domain.Plan, results []domain.StepResult) string {
	var b strings.Builder
	if instructions != "" {
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Goal: %s\n\nCompleted steps:\n", plan.Goal)
	for _, r := range results {
		fmt.Fprintf(&b, "- %s: %s\n", r.StepID, r.Status)
	}
	return b.String()
}

// planJSON is the wire shape the architect agent's final output is expected
// to decode as.
type planJSON struct {
	Goal                  string        `json:"goal"`
	Batches               []domain.Batch `json:"batches"`
	TDDApproach           string        `json:"tdd_approach"`
	TotalEstimatedMinutes int           `json:"total_estimated_minutes"`
}

func parsePlanJSON(output string) (domain.Plan, error) {
	body := output
	if start := strings.Index(output, "{"); start >= 0 {
		if end := strings.LastIndex(output, "}"); end > start {
			body = output[start : end+1]
		}
	}
	var parsed planJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return domain.Plan{}, fmt.Errorf("pipeline: decode plan json: %w", err)
	}
	return domain.Plan{
		Goal:                  parsed.Goal,
		Batches:               parsed.Batches,
		TDDApproach:           parsed.TDDApproach,
		TotalEstimatedMinutes: parsed.TotalEstimatedMinutes,
	}, nil
}

// reviewJSON is the wire shape the reviewer agent's final output is
// expected to decode as.
type reviewJSON struct {
	Status   string   `json:"status"`
	Comments []string `json:"comments"`
}

func parseReviewJSON(output string) (domain.ReviewResult, error) {
	body := output
	if start := strings.Index(output, "{"); start >= 0 {
		if end := strings.LastIndex(output, "}"); end > start {
			body = output[start : end+1]
		}
	}
	var parsed reviewJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return domain.ReviewResult{}, fmt.Errorf("pipeline: decode review json: %w", err)
	}
	return domain.ReviewResult{ApprovalStatus: domain.ReviewStatus(parsed.Status), Comments: parsed.Comments}, nil
}

func renderPlanMarkdown(plan domain.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Plan: %s\n\n", plan.Goal)
	fmt.Fprintf(&b, "TDD approach: %s\n\nEstimated: %d minutes\n\n", plan.TDDApproach, plan.TotalEstimatedMinutes)
	for _, batch := range plan.Batches {
		fmt.Fprintf(&b, "## Batch %d (%s) — %s\n\n", batch.BatchNumber, batch.RiskSummary, batch.Description)
		for _, step := range batch.Steps {
			fmt.Fprintf(&b, "- [ ] %s: %s\n", step.ID, step.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
