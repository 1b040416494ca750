package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/newthinker/stratboard/internal/analytics"
	"github.com/newthinker/stratboard/internal/api/middleware"
	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/ingest"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
)

// ReportsHandler handles single reports and batch submission.
type ReportsHandler struct {
	store    reportdb.Store
	ingest   *ingest.Service
	maxBytes int64
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(store reportdb.Store, svc *ingest.Service, maxBytes int64) *ReportsHandler {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &ReportsHandler{store: store, ingest: svc, maxBytes: maxBytes}
}

// BatchRequest is the body of POST /api/strategy-reports.
type BatchRequest struct {
	Reports []ingest.BatchReport `json:"reports"`
}

// BatchResponse reports how many entries were stored.
type BatchResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// CreateBatch handles POST /api/strategy-reports.
func (h *ReportsHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBytes)).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, err))
		return
	}
	if len(req.Reports) == 0 {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, errors.New("reports array is required")))
		return
	}

	n, err := h.ingest.IngestBatch(r.Context(), req.Reports)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, BatchResponse{Success: true, Count: n})
}

// ReportResponse is a report with its equity curve.
type ReportResponse struct {
	*core.ReportDetail
	EquityCurve []analytics.EquityPoint `json:"equity_curve"`
	MaxDrawdown float64                 `json:"equity_max_drawdown_usdt"`
}

// Get handles GET /api/reports/{id}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.store.GetReport(r.Context(), id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	if user, ok := middleware.UserFrom(r.Context()); ok {
		summary, err := h.store.RatingSummary(r.Context(), id, user.ID)
		if err != nil {
			response.Fail(w, err)
			return
		}
		detail.Rating = &summary
	}

	curve := analytics.EquityCurve(detail.Trades)
	response.JSON(w, http.StatusOK, ReportResponse{
		ReportDetail: detail,
		EquityCurve:  curve,
		MaxDrawdown:  analytics.MaxDrawdown(curve),
	})
}

// Raw handles GET /api/reports/{id}/raw, returning the archived export.
func (h *ReportsHandler) Raw(w http.ResponseWriter, r *http.Request) {
	data, err := h.ingest.RawDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
