package model

// Status is the derived reconciliation state of an activity, movement or liability.
// It is never stored authoritatively; stores recompute it after every mutation.
type Status string

const (
	// StatusScheduled means the activity is dated in the future.
	StatusScheduled Status = "scheduled"
	// StatusIncomplete means at least one tracked account is not fully
	// reconciled against movements (or a link/liability sum does not close).
	StatusIncomplete Status = "incomplete"
	// StatusCompleted means everything that must reconcile does.
	StatusCompleted Status = "completed"
)
