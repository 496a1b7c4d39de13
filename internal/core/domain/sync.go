package domain

// SyncType selects which capabilities a cycle covers.
type SyncType string

const (
	// SyncCalendar runs calendar reconciliation only.
	SyncCalendar SyncType = "calendar"
	// SyncTasks runs task reconciliation only.
	SyncTasks SyncType = "tasks"
	// SyncBoth runs calendar then tasks.
	SyncBoth SyncType = "both"
)

// ParseSyncType validates a sync type string. Empty defaults to both.
func ParseSyncType(s string) (SyncType, error) {
	switch SyncType(s) {
	case SyncCalendar, SyncTasks, SyncBoth:
		return SyncType(s), nil
	case "":
		return SyncBoth, nil
	default:
		return "", ErrInvalidInput
	}
}

// IncludesCalendar reports whether the type covers calendar sync.
func (t SyncType) IncludesCalendar() bool {
	return t == SyncCalendar || t == SyncBoth
}

// IncludesTasks reports whether the type covers task sync.
func (t SyncType) IncludesTasks() bool {
	return t == SyncTasks || t == SyncBoth
}

// SyncCycleResult summarises one reconciliation pass.
type SyncCycleResult struct {
	// SyncedCount is how many mirrors were created or updated.
	SyncedCount int `json:"synced_count"`
	// DeletedCount is how many mirrors were soft-deleted.
	DeletedCount int `json:"deleted_count"`
	// Errors lists per-item failures that did not abort the pass.
	Errors []string `json:"errors,omitempty"`
}

// Merge accumulates another result into this one.
func (r *SyncCycleResult) Merge(other SyncCycleResult) {
	r.SyncedCount += other.SyncedCount
	r.DeletedCount += other.DeletedCount
	r.Errors = append(r.Errors, other.Errors...)
}

// CycleOutcome is the per-account result of one full cycle.
type CycleOutcome struct {
	// WorkspaceID and AccountID identify the cycle.
	WorkspaceID string `json:"workspace_id"`
	AccountID   string `json:"account_id"`
	// Skipped is true when the account was already mid-cycle and the
	// request was a no-op.
	Skipped bool `json:"skipped"`
	// Calendar and Tasks hold per-capability results.
	Calendar SyncCycleResult `json:"calendar"`
	Tasks    SyncCycleResult `json:"tasks"`
}

// TickSummary aggregates one scheduler tick across all accounts.
type TickSummary struct {
	Accounts  int `json:"accounts"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
