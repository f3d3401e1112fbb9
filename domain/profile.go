package domain

// TrustLevel governs how often the developer node pauses for human approval
// (spec.md §4.7 "Batch checkpoint policy (by trust level)").
type TrustLevel string

const (
	TrustParanoid    TrustLevel = "paranoid"
	TrustStandard    TrustLevel = "standard"
	TrustAutonomous  TrustLevel = "autonomous"
)

// DriverKind selects which DriverRegistry backend a profile's agents use.
type DriverKind string

const (
	DriverSubprocess DriverKind = "subprocess"
	DriverAPI        DriverKind = "api"
)

// Profile is the read-only configuration binding for a workflow run. It is
// treated as read-only during execution. The Workflow record keeps only its
// ProfileID; pipeline nodes receive the Profile value itself through
// pipeline.Deps when the graph is built.
type Profile struct {
	ProfileID string `json:"profile_id"`

	Driver      DriverKind `json:"driver"`
	TrackerKind string     `json:"tracker_kind"`
	Trust       TrustLevel `json:"trust"`

	// ModelOverrides maps agent name ("architect", "developer", "reviewer",
	// ...) to a model hint passed through to the driver's Request.
	ModelOverrides map[string]string `json:"model_overrides,omitempty"`

	// SandboxEnabled is the profile's sandbox setting. Sandbox packaging
	// itself is out of scope, and no driver in this module reads this flag.
	SandboxEnabled bool `json:"sandbox_enabled"`
}

// CheckpointEvery reports whether the developer node must pause for
// approval after completing a batch at the given risk level, per the trust
// table in spec.md §4.7. The blocker row of that table ("always stop") is
// handled separately by the blocker_resolution_node, not here.
func (p Profile) CheckpointEvery(risk RiskLevel) bool {
	switch p.Trust {
	case TrustParanoid:
		return true // per step, enforced by the caller iterating steps
	case TrustStandard:
		return true // after batch
	case TrustAutonomous:
		return risk == RiskHigh // per batch only for high risk; else auto-approve
	default:
		return true
	}
}
