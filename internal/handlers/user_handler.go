package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/services"
	"github.com/SAP-F-2025/academic-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type UserHandler struct {
	BaseHandler
	provisioning   services.ProvisioningService
	reconciliation services.ReconciliationService
	listing        services.UserListingService
	export         services.ExportService
}

func NewUserHandler(
	provisioning services.ProvisioningService,
	reconciliation services.ReconciliationService,
	listing services.UserListingService,
	export services.ExportService,
	logger utils.Logger,
) *UserHandler {
	return &UserHandler{
		BaseHandler:    NewBaseHandler(logger),
		provisioning:   provisioning,
		reconciliation: reconciliation,
		listing:        listing,
		export:         export,
	}
}

// CreateUser provisions an identity and its role profile
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Param user body models.ProvisioningRequest true "User to provision"
// @Success 201 {object} models.UserView
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 404 {object} ErrorResponse "Course or discipline not found"
// @Failure 422 {object} ErrorResponse "Rejected by the identity provider"
// @Failure 503 {object} ErrorResponse "Identity provider unreachable"
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.ProvisioningRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating user", "email", req.Email, "role", req.Role)

	view, err := h.provisioning.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// ListUsers returns every identity holding a relevant role
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} models.ListResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	views, err := h.listing.ListAll(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse{
		Content:       views,
		TotalElements: int64(len(views)),
	})
}

// GetUser
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "Identity ID"
// @Success 200 {object} models.UserView
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Getting user", "identity_id", id)

	view, err := h.listing.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// UpdateUser replaces the identity attributes, role and profile
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "Identity ID"
// @Param user body models.ProvisioningRequest true "Replacement data"
// @Success 200 {object} models.UserView
// @Failure 400 {object} ErrorResponse "Validation failed"
// @Failure 404 {object} ErrorResponse "User, course or discipline not found"
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req models.ProvisioningRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating user", "identity_id", id, "role", req.Role)

	view, err := h.provisioning.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// DeleteUser removes the identity and every local profile
// @Summary Delete user
// @Tags users
// @Param id path string true "Identity ID"
// @Success 204
// @Failure 404 {object} ErrorResponse "User not found"
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id := h.parseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Deleting user", "identity_id", id)

	if err := h.provisioning.Delete(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncUsers runs one reconciliation sweep
// @Summary Reconcile identities
// @Tags users
// @Produce json
// @Success 200 {object} models.SyncResult
// @Failure 409 {object} ErrorResponse "Sweep already running"
// @Router /users/sync [post]
func (h *UserHandler) SyncUsers(c *gin.Context) {
	h.LogRequest(c, "Starting reconciliation sweep")

	result, err := h.reconciliation.Sync(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListSyncRecords
// @Summary List reconciliation records
// @Tags users
// @Produce json
// @Param status query string false "needs_completion, failed or resolved"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} models.ListResponse
// @Router /users/sync/records [get]
func (h *UserHandler) ListSyncRecords(c *gin.Context) {
	filters := repositories.ReconciliationFilters{
		Limit:  h.parseIntQuery(c, "limit", 0),
		Offset: h.parseIntQuery(c, "offset", 0),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ReconciliationStatus(strings.ToLower(raw))
		if !status.IsValid() {
			h.respondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid status", raw)
			return
		}
		filters.Status = &status
	}

	records, total, err := h.reconciliation.ListRecords(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse{
		Content:       records,
		TotalElements: total,
	})
}

// ListProviderRoles returns the role names known to the identity provider
// @Summary List provider roles
// @Tags users
// @Produce json
// @Success 200 {array} string
// @Router /users/roles [get]
func (h *UserHandler) ListProviderRoles(c *gin.Context) {
	roles, err := h.listing.ListProviderRoles(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, roles)
}

// ExportUsers streams the user listing as an xlsx workbook
// @Summary Export users
// @Tags users
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /users/export [get]
func (h *UserHandler) ExportUsers(c *gin.Context) {
	h.LogRequest(c, "Exporting users")

	data, err := h.export.ExportUsers(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("users-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
