package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

type taskUpdateRequest struct {
	AccountID string     `json:"accountId"`
	Title     *string    `json:"title,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	Status    *string    `json:"status,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	ClearDue  bool       `json:"clearDueDate,omitempty"`
}

type resolveRequest struct {
	AccountID  string `json:"accountId"`
	Resolution string `json:"resolution"`
}

// handleUpdateTask applies a local edit to the mirror and pushes it to
// the remote task. A detected conflict answers 409 with the mirror, both
// versions retained.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	var req taskUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AccountID == "" {
		writeError(w, fmt.Errorf("%w: accountId is required", domain.ErrValidation))
		return
	}

	account, task, err := s.loadAccountAndTask(r, workspaceID, req.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.ClearDue {
		task.DueDate = nil
	}
	task.SyncStatus = domain.StatusPending

	if err := s.tasks.Save(r.Context(), *task); err != nil {
		writeError(w, err)
		return
	}

	err = s.writeback.PushTaskUpdate(r.Context(), account, task)
	if errors.Is(err, domain.ErrConflict) {
		writeJSON(w, http.StatusConflict, toTaskJSON(*task))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(*task))
}

// handleDeleteTask removes the remote task and soft-deletes the mirror.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, fmt.Errorf("%w: accountId is required", domain.ErrValidation))
		return
	}

	account, task, err := s.loadAccountAndTask(r, workspaceID, accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.writeback.DeleteTask(r.Context(), account, task); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolveConflict applies an explicit keep-local or accept-remote
// decision to a conflicted mirror.
func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AccountID == "" {
		writeError(w, fmt.Errorf("%w: accountId is required", domain.ErrValidation))
		return
	}

	account, task, err := s.loadAccountAndTask(r, workspaceID, req.AccountID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.writeback.ResolveConflict(r.Context(), account, task, req.Resolution); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskJSON(*task))
}

func (s *Server) loadAccountAndTask(r *http.Request, workspaceID, accountID string) (*domain.IntegrationAccount, *domain.MirroredTask, error) {
	account, err := s.accounts.Get(r.Context(), workspaceID, accountID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.tasks.GetByID(r.Context(), workspaceID, r.PathValue("task"))
	if err != nil {
		return nil, nil, err
	}
	if task.AccountID != accountID {
		return nil, nil, fmt.Errorf("%w: task %s does not belong to account %s", domain.ErrValidation, task.ID, accountID)
	}
	return account, task, nil
}
