package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/dkeye/meetsync/internal/domain"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorInfo `json:"error,omitempty"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errNoSession = errors.New("no meeting session")

func success(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, envelope{Error: &errorInfo{Code: code, Message: message}})
}

// failWith maps an intent error onto a status code.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNoSession):
		fail(c, http.StatusServiceUnavailable, "no_session", err.Error())
	case errors.Is(err, domain.ErrNotAdmitted):
		fail(c, http.StatusConflict, "not_admitted", err.Error())
	case errors.Is(err, domain.ErrTerminated):
		fail(c, http.StatusConflict, "terminated", err.Error())
	case errors.Is(err, domain.ErrNotHost):
		fail(c, http.StatusForbidden, "not_host", err.Error())
	case errors.Is(err, domain.ErrInvalidIntent):
		fail(c, http.StatusBadRequest, "invalid_intent", err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		fail(c, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, domain.ErrDeviceUnavailable), errors.Is(err, domain.ErrNotOpen):
		fail(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	default:
		fail(c, http.StatusInternalServerError, "internal", err.Error())
	}
}

// failBinding reports request validation failures field by field.
func failBinding(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fe.Field()+" failed on "+fe.Tag()+"="+fe.Param())
		} else {
			parts = append(parts, fe.Field()+" failed on "+fe.Tag())
		}
	}
	fail(c, http.StatusBadRequest, "validation", strings.Join(parts, "; "))
}
