package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure TaskWriter implements the interface.
var _ driven.TaskWriter = (*TaskWriter)(nil)

// tasksEndpoint is the REST base used by the raw HTTP strategies.
const tasksEndpoint = "https://tasks.googleapis.com/tasks/v1"

// TaskWriter pushes task mutations through the Google Tasks API. The raw
// PUT and PATCH strategies bypass the generated client and hit the REST
// endpoint directly.
type TaskWriter struct {
	svc         *tasksapi.Service
	limiter     *RateLimiter
	httpClient  *http.Client
	accessToken string
}

// GetTask fetches the current remote copy.
func (w *TaskWriter) GetTask(ctx context.Context, listID, taskID string) (*domain.RemoteTask, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	task, err := w.svc.Tasks.Get(listID, taskID).Context(ctx).Do()
	if err != nil {
		return nil, wrapErr(err)
	}
	remote := toRemoteTask(task, listID)
	return &remote, nil
}

// UpdateTask sends a full-body update through the client library.
func (w *TaskWriter) UpdateTask(ctx context.Context, listID, taskID string, task domain.RemoteTask) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := w.svc.Tasks.Update(listID, taskID, toAPITask(taskID, task)).Context(ctx).Do()
	return wrapErr(err)
}

// PatchTask sends only the user-editable fields through the client
// library's patch call.
func (w *TaskWriter) PatchTask(ctx context.Context, listID, taskID string, task domain.RemoteTask) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	patch := &tasksapi.Task{
		Title:  task.Title,
		Notes:  task.Notes,
		Status: task.Status,
		Due:    formatDue(task.Due),
	}
	_, err := w.svc.Tasks.Patch(listID, taskID, patch).Context(ctx).Do()
	return wrapErr(err)
}

// RawPut issues a direct HTTP PUT against the provider endpoint.
func (w *TaskWriter) RawPut(ctx context.Context, listID, taskID string, task domain.RemoteTask) error {
	return w.raw(ctx, http.MethodPut, listID, taskID, task)
}

// RawPatch issues a direct HTTP PATCH against the provider endpoint.
func (w *TaskWriter) RawPatch(ctx context.Context, listID, taskID string, task domain.RemoteTask) error {
	return w.raw(ctx, http.MethodPatch, listID, taskID, task)
}

func (w *TaskWriter) raw(ctx context.Context, method, listID, taskID string, task domain.RemoteTask) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"id":     taskID,
		"title":  task.Title,
		"notes":  task.Notes,
		"status": task.Status,
		"due":    formatDue(task.Due),
	})
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}

	url := fmt.Sprintf("%s/lists/%s/tasks/%s", tasksEndpoint, listID, taskID)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return wrapErr(&googleapi.Error{
			Code: resp.StatusCode,
			Body: string(detail),
		})
	}
	return nil
}

// DeleteTask removes a task remotely.
func (w *TaskWriter) DeleteTask(ctx context.Context, listID, taskID string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	return wrapErr(w.svc.Tasks.Delete(listID, taskID).Context(ctx).Do())
}

// ListSubtasks returns the direct children of a task.
func (w *TaskWriter) ListSubtasks(ctx context.Context, listID, parentID string) ([]domain.RemoteTask, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result []domain.RemoteTask
	pageToken := ""
	for {
		call := w.svc.Tasks.List(listID).
			ShowCompleted(true).
			ShowHidden(true).
			MaxResults(taskPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, wrapErr(err)
		}

		for _, item := range resp.Items {
			if item != nil && item.Parent == parentID {
				result = append(result, toRemoteTask(item, listID))
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}
}

// toAPITask builds the full-body update payload.
func toAPITask(taskID string, task domain.RemoteTask) *tasksapi.Task {
	return &tasksapi.Task{
		Id:     taskID,
		Title:  task.Title,
		Notes:  task.Notes,
		Status: task.Status,
		Due:    formatDue(task.Due),
	}
}
