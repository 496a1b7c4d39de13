package google

import (
	"context"
	"time"

	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure TaskClient implements the interface.
var _ driven.TaskClient = (*TaskClient)(nil)

// taskPageSize is the API page size for task listings.
const taskPageSize = 100

// TaskClient reads task state through the Google Tasks API.
type TaskClient struct {
	svc     *tasksapi.Service
	limiter *RateLimiter
}

// ListTaskLists returns the task lists visible to the account.
func (c *TaskClient) ListTaskLists(ctx context.Context) ([]domain.RemoteTaskList, error) {
	var result []domain.RemoteTaskList
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Tasklists.List().MaxResults(taskPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if IsRateLimited(err) {
				c.limiter.RecordRateLimitError(0)
			}
			return nil, wrapErr(err)
		}

		for _, item := range resp.Items {
			result = append(result, domain.RemoteTaskList{
				ID:    item.Id,
				Title: item.Title,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}
}

// ListTasks returns every task in a list, completed and deleted ones
// included so the deletion diff sees the full remote state.
func (c *TaskClient) ListTasks(ctx context.Context, listID string) ([]domain.RemoteTask, error) {
	var result []domain.RemoteTask
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Tasks.List(listID).
			ShowCompleted(true).
			ShowHidden(true).
			ShowDeleted(true).
			MaxResults(taskPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			if IsRateLimited(err) {
				c.limiter.RecordRateLimitError(0)
			}
			return nil, wrapErr(err)
		}

		for _, item := range resp.Items {
			if item == nil || item.Id == "" {
				continue
			}
			result = append(result, toRemoteTask(item, listID))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}
}

// toRemoteTask normalizes a Google Tasks task.
func toRemoteTask(task *tasksapi.Task, listID string) domain.RemoteTask {
	return domain.RemoteTask{
		ID:        task.Id,
		ListID:    listID,
		Title:     task.Title,
		Notes:     task.Notes,
		Status:    task.Status,
		Due:       parseDue(task.Due),
		ParentID:  task.Parent,
		Position:  task.Position,
		Deleted:   task.Deleted,
		UpdatedAt: parseTimestamp(task.Updated),
	}
}

// parseDue parses the due timestamp. The Tasks API carries due dates as
// RFC3339 with a zeroed time portion.
func parseDue(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
