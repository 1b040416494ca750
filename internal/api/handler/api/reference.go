package api

import (
	"net/http"

	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
)

// ReferenceHandler lists the symbols and timeframes seen so far.
type ReferenceHandler struct {
	store reportdb.Store
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(store reportdb.Store) *ReferenceHandler {
	return &ReferenceHandler{store: store}
}

// Symbols handles GET /api/symbols.
func (h *ReferenceHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.ListSymbols(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	if symbols == nil {
		symbols = []core.Symbol{}
	}
	response.JSON(w, http.StatusOK, symbols)
}

// Timeframes handles GET /api/timeframes.
func (h *ReferenceHandler) Timeframes(w http.ResponseWriter, r *http.Request) {
	timeframes, err := h.store.ListTimeframes(r.Context())
	if err != nil {
		response.Fail(w, err)
		return
	}
	if timeframes == nil {
		timeframes = []core.Timeframe{}
	}
	response.JSON(w, http.StatusOK, timeframes)
}
