package httpapi

import (
	"net/http"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/logger"
)

// handleListAccounts returns sanitized summaries for a workspace. Token
// material never leaves the store.
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	accounts, err := s.accounts.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		writeError(w, err)
		return
	}

	summaries := make([]domain.AccountSummary, 0, len(accounts))
	for i := range accounts {
		summaries = append(summaries, accounts[i].Summary())
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": summaries})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	account, err := s.accounts.Get(r.Context(), workspaceID, r.PathValue("account"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Summary())
}

// handleUpdateSettings replaces the per-capability sync settings.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}

	var settings domain.SyncSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, err)
		return
	}
	if err := validateSettings(settings); err != nil {
		writeError(w, err)
		return
	}

	account, err := s.accounts.Get(r.Context(), workspaceID, r.PathValue("account"))
	if err != nil {
		writeError(w, err)
		return
	}

	account.Settings = settings
	account.UpdatedAt = time.Now().UTC()
	if err := s.accounts.Save(r.Context(), *account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Summary())
}

func validateSettings(settings domain.SyncSettings) error {
	for _, capability := range []domain.CapabilitySettings{settings.Calendar, settings.Tasks} {
		switch capability.Direction {
		case domain.DirectionReadOnly, domain.DirectionBidirectional:
		default:
			return domain.ErrValidation
		}
	}
	return nil
}

// handleDisconnectAccount removes the account and cascades to its
// mirrors.
func (s *Server) handleDisconnectAccount(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspace")
	if !s.authorize(w, r, workspaceID) {
		return
	}
	accountID := r.PathValue("account")

	if err := s.accounts.Delete(r.Context(), workspaceID, accountID); err != nil {
		writeError(w, err)
		return
	}

	// Mirror cleanup is best-effort; the account is already gone.
	if err := s.events.DeleteByAccount(r.Context(), workspaceID, accountID); err != nil {
		logger.Warn("http: removing event mirrors for %s: %v", accountID, err)
	}
	if err := s.tasks.DeleteByAccount(r.Context(), workspaceID, accountID); err != nil {
		logger.Warn("http: removing task mirrors for %s: %v", accountID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}
