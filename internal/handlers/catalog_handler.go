package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/services"
	"github.com/SAP-F-2025/academic-service/internal/utils"
)

// CatalogHandler serves the course and discipline records that profiles
// reference.
type CatalogHandler struct {
	BaseHandler
	catalog services.CatalogService
}

func NewCatalogHandler(catalog services.CatalogService, logger utils.Logger) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: NewBaseHandler(logger),
		catalog:     catalog,
	}
}

// ===== COURSES =====

// CreateCourse
// @Summary Create course
// @Tags catalog
// @Accept json
// @Produce json
// @Param course body models.CourseCreateRequest true "Course"
// @Success 201 {object} models.Course
// @Failure 409 {object} ErrorResponse "Name or code already used"
// @Router /courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req models.CourseCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating course", "code", req.Code)

	course, err := h.catalog.CreateCourse(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse{
		Content:       courses,
		TotalElements: int64(len(courses)),
	})
}

func (h *CatalogHandler) GetCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	course, err := h.catalog.GetCourse(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// DeleteCourse fails with 409 while a profile still references the course.
func (h *CatalogHandler) DeleteCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting course", "course_id", id)

	if err := h.catalog.DeleteCourse(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== DISCIPLINES =====

func (h *CatalogHandler) CreateDiscipline(c *gin.Context) {
	var req models.DisciplineCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating discipline", "code", req.Code)

	discipline, err := h.catalog.CreateDiscipline(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, discipline)
}

func (h *CatalogHandler) ListDisciplines(c *gin.Context) {
	disciplines, err := h.catalog.ListDisciplines(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse{
		Content:       disciplines,
		TotalElements: int64(len(disciplines)),
	})
}

func (h *CatalogHandler) GetDiscipline(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	discipline, err := h.catalog.GetDiscipline(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, discipline)
}

func (h *CatalogHandler) DeleteDiscipline(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting discipline", "discipline_id", id)

	if err := h.catalog.DeleteDiscipline(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
