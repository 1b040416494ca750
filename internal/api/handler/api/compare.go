package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/newthinker/stratboard/internal/analytics"
	"github.com/newthinker/stratboard/internal/api/response"
	"github.com/newthinker/stratboard/internal/core"
	"github.com/newthinker/stratboard/internal/storage/reportdb"
)

// CompareHandler lines strategies up side by side.
type CompareHandler struct {
	store reportdb.Store
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(store reportdb.Store) *CompareHandler {
	return &CompareHandler{store: store}
}

// Compare handles GET /api/compare?ids=a,b,c.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	ids := listParam(r.URL.Query(), "ids")
	if len(ids) == 0 {
		response.Fail(w, core.WrapError(core.ErrInvalidInput, errors.New("ids parameter is required")))
		return
	}
	if len(ids) > analytics.MaxCompare {
		response.Fail(w, core.WrapError(core.ErrInvalidInput,
			fmt.Errorf("at most %d strategies can be compared, got %d", analytics.MaxCompare, len(ids))))
		return
	}

	strategies := make([]core.StrategyDetail, 0, len(ids))
	for _, id := range ids {
		s, err := h.store.GetStrategy(r.Context(), id)
		if err != nil {
			response.Fail(w, err)
			return
		}
		strategies = append(strategies, *s)
	}

	cmp, err := analytics.Compare(strategies)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cmp)
}
