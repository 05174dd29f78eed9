// Package response is the §6 task API's JSON envelope, grounded on
// internal/http/response/response.go in the teacher: a flat success
// payload via RespondOK, and an {error:{message,code}, trace_id,
// request_id} envelope via RespondError that maps an *apierr.Error onto
// its carried transport status.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/riverglen/coursecraft/internal/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error     APIError `json:"error"`
	TraceID   string   `json:"trace_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondError unwraps err for an *apierr.Error to recover its transport
// status/code; anything else is surfaced as a 500 internal_error.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		status = apiErr.Status
		code = apiErr.Code
	}

	c.JSON(status, ErrorEnvelope{
		Error:     APIError{Message: err.Error(), Code: code},
		TraceID:   c.GetString("trace_id"),
		RequestID: c.GetString("request_id"),
	})
}
