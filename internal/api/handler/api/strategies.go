// internal/api/handler/api/strategies.go
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/newthinker/stratboard/internal/analytics"
	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/ingest"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
)

// UploadLimits bounds multipart uploads.
type UploadLimits struct {
	MaxBytes int64
	MaxFiles int
}

// StrategiesHandler handles strategy listing, detail and upload.
type StrategiesHandler struct {
	store  reportdb.Store
	ingest *ingest.Service
	limits UploadLimits
}

// NewStrategiesHandler creates a new strategies handler.
func NewStrategiesHandler(store reportdb.Store, svc *ingest.Service, limits UploadLimits) *StrategiesHandler {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = 32 << 20
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = 50
	}
	return &StrategiesHandler{store: store, ingest: svc, limits: limits}
}

// ListResponse is one page of strategies.
type ListResponse struct {
	Strategies []core.StrategyDetail `json:"strategies"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
}

// List handles GET /api/strategies.
func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q, "page")
	if err != nil {
		response.Fail(w, err)
		return
	}
	limit, err := intParam(q, "limit")
	if err != nil {
		response.Fail(w, err)
		return
	}

	filter, err := reportdb.ListFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		Symbol:    strings.TrimSpace(q.Get("symbol")),
		Timeframe: strings.TrimSpace(q.Get("timeframe")),
		SortBy:    q.Get("sortBy"),
		Page:      page,
		Limit:     limit,
	}.Normalize()
	if err != nil {
		response.Fail(w, err)
		return
	}

	strategies, total, err := h.store.ListStrategies(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, ListResponse{
		Strategies: strategies,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
}

// StrategyResponse is a strategy with its aggregates and equity curves
// keyed by report ID.
type StrategyResponse struct {
	*core.StrategyDetail
	Summary      analytics.Summary                  `json:"summary"`
	EquityCurves map[string][]analytics.EquityPoint `json:"equity_curves"`
}

// Get handles GET /api/strategies/{id}.
func (h *StrategiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.store.GetStrategy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, err)
		return
	}

	curves := make(map[string][]analytics.EquityPoint, len(detail.Reports))
	for _, rep := range detail.Reports {
		curves[rep.ID] = analytics.EquityCurve(rep.Trades)
	}

	response.JSON(w, http.StatusOK, StrategyResponse{
		StrategyDetail: detail,
		Summary:        analytics.Summarize(*detail),
		EquityCurves:   curves,
	})
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Success bool `json:"success"`
	*ingest.UploadResult
}

// UploadFailure is returned when an upload fails after the strategy was
// created. It reports what was committed before the failure.
type UploadFailure struct {
	response.ErrorResponse
	*ingest.UploadResult
}

// Create handles POST /api/strategies as a multipart form with fields
// name, description and one or more files.
func (h *StrategiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBytes)
	if err := r.ParseMultipartForm(h.limits.MaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(w, core.WrapError(core.ErrInvalidInput,
				fmt.Errorf("upload exceeds %d bytes", h.limits.MaxBytes)))
			return
		}
		response.Fail(w, core.WrapError(core.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) > h.limits.MaxFiles {
		response.Fail(w, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("at most %d files per upload, got %d", h.limits.MaxFiles, len(headers))))
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			response.Fail(w, core.WrapError(core.ErrInvalidInput, err))
			return
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	res, err := h.ingest.Upload(r.Context(), ingest.UploadRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Files:       files,
	})
	if err != nil {
		status := response.StatusFor(err)
		if res == nil || res.StrategyID == "" {
			response.Error(w, status, err)
			return
		}
		response.JSON(w, status, UploadFailure{
			ErrorResponse: response.Body(status, err),
			UploadResult:  res,
		})
		return
	}

	response.JSON(w, http.StatusCreated, UploadResponse{Success: true, UploadResult: res})
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return data, nil
}
