package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/newthinker/stratboard/internal/api/middleware"
	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/metrics"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
)

// Comment and rating limits.
const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000

	// MaxCommunityBody caps rating and comment request bodies.
	MaxCommunityBody = 64 << 10
)

// CommunityHandler handles ratings and comments on reports.
type CommunityHandler struct {
	store   reportdb.Store
	metrics *metrics.Registry
}

// NewCommunityHandler creates a new community handler. m may be nil.
func NewCommunityHandler(store reportdb.Store, m *metrics.Registry) *CommunityHandler {
	return &CommunityHandler{store: store, metrics: m}
}

// Ratings handles GET /api/reports/{id}/ratings.
func (h *CommunityHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	var userID string
	if user, ok := middleware.UserFrom(r.Context()); ok {
		userID = user.ID
	}

	summary, err := h.store.RatingSummary(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

// RateRequest is the body of a rating submission.
type RateRequest struct {
	Rating int `json:"rating"`
}

// Rate handles POST /api/reports/{id}/ratings. A user's later rating
// replaces the earlier one.
func (h *CommunityHandler) Rate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var req RateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxCommunityBody)).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, err))
		return
	}
	if req.Rating < MinRating || req.Rating > MaxRating {
		response.Fail(w, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("rating must be between %d and %d", MinRating, MaxRating)))
		return
	}

	reportID := chi.URLParam(r, "id")
	if err := h.store.UpsertRating(r.Context(), &core.Rating{
		ReportID: reportID,
		UserID:   user.ID,
		Value:    req.Rating,
	}); err != nil {
		response.Fail(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordRating()
	}

	summary, err := h.store.RatingSummary(r.Context(), reportID, user.ID)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

// Comments handles GET /api/reports/{id}/comments.
func (h *CommunityHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.store.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	if comments == nil {
		comments = []core.Comment{}
	}
	response.JSON(w, http.StatusOK, comments)
}

// CommentRequest is the body of a comment submission.
type CommentRequest struct {
	Content string `json:"content"`
}

// Comment handles POST /api/reports/{id}/comments.
func (h *CommunityHandler) Comment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFrom(r.Context())

	var req CommentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxCommunityBody)).Decode(&req); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, err))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, errors.New("content is required")))
		return
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		response.Fail(w, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("content exceeds %d characters", MaxCommentLength)))
		return
	}

	c := &core.Comment{
		ReportID: chi.URLParam(r, "id"),
		UserID:   user.ID,
		Username: user.Name,
		Content:  content,
	}
	if err := h.store.AddComment(r.Context(), c); err != nil {
		response.Fail(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordComment()
	}

	response.JSON(w, http.StatusCreated, c)
}
