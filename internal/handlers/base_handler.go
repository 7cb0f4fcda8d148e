package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/services"
	"github.com/SAP-F-2025/academic-service/internal/utils"
	"github.com/SAP-F-2025/academic-service/internal/validator"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message   string      `json:"message"`
	Code      string      `json:"code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Path      string      `json:"path,omitempty"`
}

// BaseHandler carries the request-scoped logging shared by all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	if actor, err := GetUserIDFromContext(c); err == nil {
		args = append(args, "actor_id", actor)
	}
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Error(msg, append(args, "error", err)...)
}

func (h BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

func (h BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid request payload", err.Error())
		return false
	}
	return true
}

// parseIDParam returns 0 after answering 400 when the parameter is not a
// positive integer.
func (h BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		details := "must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		h.respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid "+param, details)
		return 0
	}
	return uint(id)
}

func (h BaseHandler) parseStringIDParam(c *gin.Context, param string) string {
	id := strings.TrimSpace(c.Param(param))
	if id == "" {
		h.respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid "+param, "ID cannot be empty")
	}
	return id
}

func (h BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(param))
	if err != nil {
		return defaultValue
	}
	return value
}

// handleServiceError maps service errors to HTTP answers. A partial failure
// is checked before its cause so the inconsistency is never reported as a
// plain client error.
func (h BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", validationErrors)
		return
	}

	if partial, ok := services.IsPartialFailure(err); ok {
		h.LogError(c, err, "Partial failure", "operation", partial.Operation, "identity_id", partial.IdentityID,
			"reconciliation_required", partial.ReconciliationRequired())
		switch {
		case partial.ReconciliationRequired():
			h.respondError(c, http.StatusInternalServerError, "RECONCILIATION_REQUIRED",
				"Operation failed and the identity provider could not be restored", partial.Error())
		case errors.Is(partial.Cause, repositories.ErrDuplicate):
			h.respondError(c, http.StatusConflict, "CONFLICT", "Record already exists", partial.Cause.Error())
		default:
			h.respondError(c, http.StatusInternalServerError, "PARTIAL_FAILURE",
				"Operation failed, identity provider changes were reverted", partial.Cause.Error())
		}
		return
	}

	var rejected *services.GatewayRejectedError
	if errors.As(err, &rejected) {
		h.respondError(c, http.StatusUnprocessableEntity, "IDENTITY_PROVIDER_REJECTED", rejected.Message, map[string]interface{}{
			"operation": rejected.Operation,
			"status":    rejected.Status,
		})
		return
	}

	switch {
	case errors.Is(err, validator.ErrAssociationNotFound):
		h.respondError(c, http.StatusNotFound, "ASSOCIATION_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, services.ErrUserNotFound):
		h.respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
	case errors.Is(err, services.ErrNotFound):
		h.respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, services.ErrSyncInProgress):
		h.respondError(c, http.StatusConflict, "SYNC_IN_PROGRESS", "A reconciliation sweep is already running", nil)
	case errors.Is(err, services.ErrConflict), errors.Is(err, repositories.ErrDuplicate):
		h.respondError(c, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, services.ErrGatewayUnreachable):
		h.respondError(c, http.StatusServiceUnavailable, "IDENTITY_PROVIDER_UNAVAILABLE", "Identity provider is unreachable", nil)
	default:
		h.LogError(c, err, "Unhandled service error")
		h.respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
