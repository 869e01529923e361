package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/leases"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/maintenance"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/tenants"
	"github.com/MarcoPoloResearchLab/rentdesk/internal/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorPayload struct {
	Error  string              `json:"error"`
	Code   string              `json:"code,omitempty"`
	Fields []leases.FieldError `json:"fields,omitempty"`
}

type codedError interface {
	Code() string
}

func (h *httpHandler) writeError(c *gin.Context, operation string, err error) {
	var validationErr *leases.ValidationError
	var coded codedError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, errorPayload{Error: "not_found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, errorPayload{Error: "validation_failed", Fields: validationErr.Fields})
	case errors.Is(err, leases.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorPayload{Error: "invalid_transition"})
	case errors.Is(err, maintenance.ErrInvalidStatus), errors.Is(err, tenants.ErrInvalidStatus):
		c.JSON(http.StatusUnprocessableEntity, errorPayload{Error: "invalid_status"})
	case errors.As(err, &coded):
		h.logger.Error("request failed", zap.String("operation", operation), zap.String("code", coded.Code()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorPayload{Error: "internal_error", Code: coded.Code()})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorPayload{Error: "internal_error"})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorPayload{Error: "invalid_request"})
}
