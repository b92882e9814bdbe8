package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	analysisdomain "github.com/solvetrace/solvetrace/internal/analysis/domain"
	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

// ErrorHandlingMiddleware renders the last handler error as the structured
// error response, after the handler chain finishes.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	case errors.Is(err, analysisdomain.ErrNoActivity):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "no_activity",
			Message: "no coding activity found for the specified period",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, sessiondomain.ErrInvalidUserID),
		errors.Is(err, sessiondomain.ErrInvalidPayload),
		errors.Is(err, sessiondomain.ErrInvalidEventID),
		errors.Is(err, sessiondomain.ErrInvalidProblem),
		errors.Is(err, analysisdomain.ErrInvalidUserID),
		errors.Is(err, analysisdomain.ErrInvalidPeriod):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, sessiondomain.ErrEventNotFound),
		errors.Is(err, sessiondomain.ErrSessionNotFound),
		errors.Is(err, analysisdomain.ErrAnalysisNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "analysis_period_out_of_range":
		return "period days must be between 1 and 365"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog maps handler errors to low-cardinality (type, code)
// pairs for the request log.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation", err.Error()
	case errors.Is(err, analysisdomain.ErrNoActivity):
		return "no_data", err.Error()
	case isNotFoundError(err):
		return "not_found", "not_found"
	case errors.Is(err, ErrTooManyRequests):
		return "rate_limited", "too_many_requests"
	default:
		return "internal", "internal_error"
	}
}
