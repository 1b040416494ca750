package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/stratboard/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusCreated, map[string]any{"success": true, "count": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"count":2}`, w.Body.String())
}

func TestError_WithCoreError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidInput, errors.New("name is required")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_INPUT", resp.Code)
	assert.Equal(t, "invalid input: name is required", resp.Error)
}

func TestError_HidesCauseOnServerError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusInternalServerError, core.WrapError(core.ErrStoreFailed, errors.New("disk I/O error at /var/lib")))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "STORE_FAILED", resp.Code)
	assert.Equal(t, core.ErrStoreFailed.Message, resp.Error)
}

func TestError_WithStandardError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusInternalServerError, errors.New("boom"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, InternalCode, resp.Code)
	assert.NotContains(t, resp.Error, "boom")
}

func TestBody(t *testing.T) {
	err := core.WrapError(core.ErrNotFound, errors.New(`report "r1"`))
	assert.Equal(t, ErrorResponse{Error: "record not found: report \"r1\"", Code: "NOT_FOUND"},
		Body(http.StatusNotFound, err))

	err = core.WrapError(core.ErrStoreFailed, errors.New("disk full"))
	assert.Equal(t, ErrorResponse{Error: core.ErrStoreFailed.Message, Code: "STORE_FAILED"},
		Body(http.StatusInternalServerError, err))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrInvalidInput, http.StatusBadRequest},
		{core.WrapError(core.ErrParseFailed, errors.New("eof")), http.StatusBadRequest},
		{fmt.Errorf("loading: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrUnauthorized, http.StatusUnauthorized},
		{core.ErrStoreFailed, http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()

	Fail(w, core.WrapError(core.ErrNotFound, errors.New(`report "x"`)))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"record not found: report \"x\"","code":"NOT_FOUND"}`, w.Body.String())
}
