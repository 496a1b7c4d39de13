package domain

import "time"

// AccountStatus tracks whether an account can take part in sync cycles.
type AccountStatus string

const (
	// AccountActive means the account is healthy and synced on schedule.
	AccountActive AccountStatus = "active"
	// AccountExpired means the refresh token was rejected; the account is
	// skipped until the user re-authenticates.
	AccountExpired AccountStatus = "expired"
	// AccountRevoked means the user disconnected the account externally.
	AccountRevoked AccountStatus = "revoked"
	// AccountError means the last cycle failed for a non-auth reason.
	AccountError AccountStatus = "error"
)

// SyncDirection controls whether local edits flow back to the remote.
type SyncDirection string

const (
	// DirectionReadOnly pulls remote state but rejects write-back.
	DirectionReadOnly SyncDirection = "read-only"
	// DirectionBidirectional pulls remote state and pushes local edits.
	DirectionBidirectional SyncDirection = "bidirectional"
)

// CapabilitySettings configures one sync capability (calendar or tasks)
// for an account.
type CapabilitySettings struct {
	// Enabled switches the capability on or off.
	Enabled bool `json:"enabled"`
	// Direction is read-only or bidirectional.
	Direction SyncDirection `json:"direction"`
	// SelectedIDs limits syncing to specific remote containers
	// (calendar IDs or task list IDs). Empty means discover all.
	SelectedIDs []string `json:"selected_ids,omitempty"`
}

// SyncSettings holds the per-capability configuration for an account.
// Calendar and task settings are independent.
type SyncSettings struct {
	Calendar CapabilitySettings `json:"calendar"`
	Tasks    CapabilitySettings `json:"tasks"`
}

// DefaultSyncSettings enables both capabilities in read-only mode.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		Calendar: CapabilitySettings{Enabled: true, Direction: DirectionReadOnly},
		Tasks:    CapabilitySettings{Enabled: true, Direction: DirectionReadOnly},
	}
}

// MaxAccountErrors bounds the per-account error log. Older entries are
// dropped as new ones arrive.
const MaxAccountErrors = 10

// SyncErrorEntry is one recorded failure on an account.
type SyncErrorEntry struct {
	// At is when the failure occurred.
	At time.Time `json:"at"`
	// Scope identifies what failed, e.g. "calendar:work@example.com"
	// or "tasks".
	Scope string `json:"scope"`
	// Message is the error text. Never contains token material.
	Message string `json:"message"`
}

// IntegrationAccount is one OAuth-authorized external identity connected
// to a workspace. Tokens are stored encrypted and are never logged.
type IntegrationAccount struct {
	// ID is the unique identifier (UUID).
	ID string
	// WorkspaceID scopes the account to a workspace.
	WorkspaceID string
	// ExternalEmail is the provider-side identity, used to merge
	// re-authentications into the existing account.
	ExternalEmail string

	// AccessToken and RefreshToken are encrypted at rest.
	AccessToken  EncryptedToken
	RefreshToken EncryptedToken
	// TokenExpiry is when the access token expires.
	TokenExpiry time.Time
	// Scopes are the OAuth scopes granted during the handshake.
	Scopes []string

	// Settings holds the per-capability sync configuration.
	Settings SyncSettings

	// Status gates participation in scheduled cycles.
	Status AccountStatus
	// LastSyncAt is when the last cycle for this account finished.
	LastSyncAt time.Time
	// Errors is the bounded error log (most recent last).
	Errors []SyncErrorEntry

	// CreatedAt is when the account was connected.
	CreatedAt time.Time
	// UpdatedAt is when the account document was last written.
	UpdatedAt time.Time
}

// IsActive returns true if the account takes part in scheduled cycles.
func (a *IntegrationAccount) IsActive() bool {
	return a.Status == AccountActive
}

// RecordError appends to the bounded error log, dropping the oldest
// entries beyond MaxAccountErrors.
func (a *IntegrationAccount) RecordError(scope, message string) {
	a.Errors = append(a.Errors, SyncErrorEntry{
		At:      time.Now().UTC(),
		Scope:   scope,
		Message: message,
	})
	if len(a.Errors) > MaxAccountErrors {
		a.Errors = a.Errors[len(a.Errors)-MaxAccountErrors:]
	}
}

// AccountSummary is the sanitized external view of an account.
// It carries no token material.
type AccountSummary struct {
	ID            string           `json:"id"`
	WorkspaceID   string           `json:"workspace_id"`
	ExternalEmail string           `json:"external_email"`
	Status        AccountStatus    `json:"status"`
	Settings      SyncSettings     `json:"settings"`
	LastSyncAt    time.Time        `json:"last_sync_at"`
	TokenExpiry   time.Time        `json:"token_expiry"`
	Errors        []SyncErrorEntry `json:"errors,omitempty"`
}

// Summary returns the sanitized view of the account.
func (a *IntegrationAccount) Summary() AccountSummary {
	return AccountSummary{
		ID:            a.ID,
		WorkspaceID:   a.WorkspaceID,
		ExternalEmail: a.ExternalEmail,
		Status:        a.Status,
		Settings:      a.Settings,
		LastSyncAt:    a.LastSyncAt,
		TokenExpiry:   a.TokenExpiry,
		Errors:        a.Errors,
	}
}
