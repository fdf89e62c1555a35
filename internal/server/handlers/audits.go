package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/engine"
	"github.com/sitelens/sitelens/internal/core/store"
	apperrors "github.com/sitelens/sitelens/internal/errors"
)

// AuditHandlers serves the audit lifecycle endpoints.
type AuditHandlers struct {
	Engine *engine.Engine
	Store  *store.Store
}

type createAuditRequest struct {
	Type  string  `json:"type"`
	URL   string  `json:"url"`
	OrgID *string `json:"org_id,omitempty"`
}

// Create starts a new audit and returns it in pending/crawling state.
func (h *AuditHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createAuditRequest
	if err := decodeJSON(r, &req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(err, "Request body is not valid JSON"))
		return
	}

	audit, err := h.Engine.Start(r.Context(), core.AuditType(req.Type), req.URL, req.OrgID)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(err, "Audit request is invalid"))
		return
	}

	respondJSON(w, http.StatusCreated, audit)
}

// Get returns one audit by id.
func (h *AuditHandlers) Get(w http.ResponseWriter, r *http.Request) {
	audit, err := h.Store.GetAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperrors.RespondWithError(w, r, auditLoadError(err))
		return
	}
	respondJSON(w, http.StatusOK, audit)
}

// List returns audits for an organization, newest first.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("org_id query parameter is required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	audits, err := h.Store.ListAudits(r.Context(), orgID, limit)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabase(err, "Failed to list audits"))
		return
	}
	if audits == nil {
		audits = []*core.Audit{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"audits": audits})
}

// Progress returns the polling snapshot for an in-flight audit.
func (h *AuditHandlers) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.Engine.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperrors.RespondWithError(w, r, auditLoadError(err))
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// Checks returns every persisted check result for an audit.
func (h *AuditHandlers) Checks(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "id")
	if _, err := h.Store.GetAudit(r.Context(), auditID); err != nil {
		apperrors.RespondWithError(w, r, auditLoadError(err))
		return
	}

	results, err := h.Store.ListCheckResults(r.Context(), auditID)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabase(err, "Failed to load check results"))
		return
	}
	if results == nil {
		results = []core.CheckResult{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit_id": auditID, "checks": results})
}

// Stop requests cancellation. Stopping a terminal audit is a no-op.
func (h *AuditHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	audit, err := h.Engine.Stop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperrors.RespondWithError(w, r, auditLoadError(err))
		return
	}
	respondJSON(w, http.StatusOK, audit)
}

// Resume restarts a failed audit from its persisted pages.
func (h *AuditHandlers) Resume(w http.ResponseWriter, r *http.Request) {
	audit, err := h.Engine.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNotResumable):
			apperrors.RespondWithError(w, r, apperrors.WrapConflict(err, "Audit is not in a resumable state"))
		case errors.Is(err, engine.ErrNothingToResume):
			apperrors.RespondWithError(w, r, apperrors.WrapValidation(err, "Audit has no crawled pages to resume from"))
		default:
			apperrors.RespondWithError(w, r, auditLoadError(err))
		}
		return
	}
	respondJSON(w, http.StatusOK, audit)
}

func auditLoadError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFoundError("Audit not found")
	}
	return apperrors.WrapDatabase(err, "Failed to load audit")
}
