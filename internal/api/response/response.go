// Package response writes JSON bodies for the HTTP API.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newthinker/stratboard/internal/core"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// InternalCode is reported for errors that carry no code.
const InternalCode = "INTERNAL_ERROR"

// JSON writes data as the response body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return http.StatusInternalServerError
	}
	switch coreErr.Code {
	case core.ErrInvalidInput.Code, core.ErrParseFailed.Code:
		return http.StatusBadRequest
	case core.ErrNotFound.Code:
		return http.StatusNotFound
	case core.ErrUnauthorized.Code:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Body builds the error body for err. Causes are only exposed for client
// errors; server errors report the generic message of their code.
func Body(status int, err error) ErrorResponse {
	resp := ErrorResponse{
		Error: "internal server error",
		Code:  InternalCode,
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		resp.Code = coreErr.Code
		resp.Error = coreErr.Message
		if coreErr.Cause != nil && status < http.StatusInternalServerError {
			resp.Error += ": " + coreErr.Cause.Error()
		}
	}
	return resp
}

// Error writes an error response built by Body.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, Body(status, err))
}

// Fail writes err with the status StatusFor assigns it.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}
