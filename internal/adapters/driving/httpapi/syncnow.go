package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

type syncRequest struct {
	SyncType string `json:"syncType"`
}

// handleSyncNow triggers an immediate cycle through the scheduler's slot
// path. A busy account yields 202 with skipped=true rather than an error.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	_, _ = io.Copy(io.Discard, r.Body)

	syncType, err := domain.ParseSyncType(req.SyncType)
	if err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.scheduler.SyncNow(r.Context(), workspaceID, r.PathValue("account"), syncType)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Skipped {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

// handleActiveSlots exposes the workspace's running cycle keys, for
// observability. Gated like every other workspace route.
func (s *Server) handleActiveSlots(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	active := make([]string, 0)
	for _, key := range s.scheduler.ActiveSlots() {
		if strings.HasPrefix(key, workspaceID+"/") {
			active = append(active, key)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active})
}
