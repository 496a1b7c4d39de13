package driven

import (
	"context"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// CalendarClient reads calendar state from the remote provider.
// Implementations page through the provider listing internally and return
// the full window.
type CalendarClient interface {
	// ListCalendars returns the calendars visible to the account.
	ListCalendars(ctx context.Context) ([]domain.RemoteCalendar, error)

	// ListEvents returns every event in the calendar within the window.
	ListEvents(ctx context.Context, calendarID string, window domain.SyncWindow) ([]domain.RemoteEvent, error)
}

// TaskClient reads task state from the remote provider.
type TaskClient interface {
	// ListTaskLists returns the task lists visible to the account.
	ListTaskLists(ctx context.Context) ([]domain.RemoteTaskList, error)

	// ListTasks returns every task in a list, completed ones included.
	ListTasks(ctx context.Context, listID string) ([]domain.RemoteTask, error)
}

// TaskWriter pushes task mutations to the remote provider. The four update
// methods are the ordered write-back strategies: two request-body
// conventions through the client library, then raw HTTP PUT and PATCH.
type TaskWriter interface {
	// GetTask fetches the current remote copy, for conflict detection.
	GetTask(ctx context.Context, listID, taskID string) (*domain.RemoteTask, error)

	// UpdateTask sends a full-body update through the client library.
	UpdateTask(ctx context.Context, listID, taskID string, task domain.RemoteTask) error

	// PatchTask sends only the user-editable fields through the client
	// library's patch call.
	PatchTask(ctx context.Context, listID, taskID string, task domain.RemoteTask) error

	// RawPut issues a direct HTTP PUT against the provider endpoint.
	RawPut(ctx context.Context, listID, taskID string, task domain.RemoteTask) error

	// RawPatch issues a direct HTTP PATCH against the provider endpoint.
	RawPatch(ctx context.Context, listID, taskID string, task domain.RemoteTask) error

	// DeleteTask removes a task remotely.
	DeleteTask(ctx context.Context, listID, taskID string) error

	// ListSubtasks returns the direct children of a task.
	ListSubtasks(ctx context.Context, listID, parentID string) ([]domain.RemoteTask, error)
}

// RemoteFactory builds provider clients bound to an access token.
// A fresh client is created per cycle so the token is always the one just
// read (and possibly refreshed) from storage.
type RemoteFactory interface {
	CalendarClient(ctx context.Context, accessToken string) (CalendarClient, error)
	TaskClient(ctx context.Context, accessToken string) (TaskClient, error)
	TaskWriter(ctx context.Context, accessToken string) (TaskWriter, error)
}
