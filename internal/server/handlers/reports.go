package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitelens/sitelens/internal/core"
	"github.com/sitelens/sitelens/internal/core/report"
	"github.com/sitelens/sitelens/internal/core/store"
	apperrors "github.com/sitelens/sitelens/internal/errors"
)

// ReportHandlers serves the combined-report endpoints.
type ReportHandlers struct {
	Store    *store.Store
	Combiner *report.Combiner
}

type createReportRequest struct {
	SiteAuditID        string `json:"site_audit_id"`
	PerformanceAuditID string `json:"performance_audit_id"`
	AIOAuditID         string `json:"aio_audit_id"`
}

// Create combines three completed audits into one report. Eligibility
// violations come back as a validation failure listing every reason.
func (h *ReportHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(err, "Request body is not valid JSON"))
		return
	}
	if req.SiteAuditID == "" || req.PerformanceAuditID == "" || req.AIOAuditID == "" {
		apperrors.RespondWithError(w, r,
			apperrors.NewInvalidInputError("site_audit_id, performance_audit_id, and aio_audit_id are required"))
		return
	}

	site, err := h.loadAudit(r, req.SiteAuditID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	performance, err := h.loadAudit(r, req.PerformanceAuditID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	aio, err := h.loadAudit(r, req.AIOAuditID)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}

	combined, err := h.Combiner.Combine(site, performance, aio)
	if err != nil {
		var invalid *report.ValidationError
		if errors.As(err, &invalid) {
			apperrors.RespondWithError(w, r,
				apperrors.NewValidationError("Audits are not eligible for a combined report").
					WithDetails(map[string]any{"reasons": invalid.Reasons}))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(err, "Failed to combine audits"))
		return
	}

	if err := h.Store.InsertReport(r.Context(), combined); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabase(err, "Failed to persist report"))
		return
	}
	respondJSON(w, http.StatusCreated, combined)
}

// Get returns one report by id.
func (h *ReportHandlers) Get(w http.ResponseWriter, r *http.Request) {
	combined, err := h.Store.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperrors.RespondWithError(w, r, apperrors.NewNotFoundError("Report not found"))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.WrapDatabase(err, "Failed to load report"))
		return
	}
	respondJSON(w, http.StatusOK, combined)
}

func (h *ReportHandlers) loadAudit(r *http.Request, id string) (*core.Audit, error) {
	audit, err := h.Store.GetAudit(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Audit " + id + " not found")
		}
		return nil, apperrors.WrapDatabase(err, "Failed to load audit")
	}
	return audit, nil
}
