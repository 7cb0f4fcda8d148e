package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/config"
	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/services"
	"github.com/SAP-F-2025/academic-service/internal/utils"
)

type HandlerManager struct {
	userHandler    *UserHandler
	catalogHandler *CatalogHandler
	healthHandler  *HealthHandler
	authMiddleware *CasdoorAuthMiddleware
	metricsHandler http.Handler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	health HealthChecker,
	metricsHandler http.Handler,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	listing := serviceManager.Listing()

	return &HandlerManager{
		userHandler: NewUserHandler(
			serviceManager.Provisioning(),
			serviceManager.Reconciliation(),
			listing,
			serviceManager.Export(),
			logger,
		),
		catalogHandler: NewCatalogHandler(serviceManager.Catalog(), logger),
		healthHandler:  NewHealthHandler(health, listing, logger),
		authMiddleware: NewCasdoorAuthMiddleware(casdoorConfig),
		metricsHandler: metricsHandler,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// User provisioning - Admins only
		users := v1.Group("/users")
		users.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			users.POST("", hm.userHandler.CreateUser)
			users.GET("", hm.userHandler.ListUsers)

			// Static paths before /:id
			users.POST("/sync", hm.userHandler.SyncUsers)
			users.GET("/sync/records", hm.userHandler.ListSyncRecords)
			users.GET("/roles", hm.userHandler.ListProviderRoles)
			users.GET("/export", hm.userHandler.ExportUsers)

			users.GET("/:id", hm.userHandler.GetUser)
			users.PUT("/:id", hm.userHandler.UpdateUser)
			users.DELETE("/:id", hm.userHandler.DeleteUser)
		}

		// Course routes - writes are Admin only
		courses := v1.Group("/courses")
		{
			courses.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.catalogHandler.CreateCourse)
			courses.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.catalogHandler.DeleteCourse)
			courses.GET("", hm.catalogHandler.ListCourses)
			courses.GET("/:id", hm.catalogHandler.GetCourse)
		}

		// Discipline routes - writes are Admin only
		disciplines := v1.Group("/disciplines")
		{
			disciplines.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.catalogHandler.CreateDiscipline)
			disciplines.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.catalogHandler.DeleteDiscipline)
			disciplines.GET("", hm.catalogHandler.ListDisciplines)
			disciplines.GET("/:id", hm.catalogHandler.GetDiscipline)
		}
	}

	// Prometheus scrape endpoint
	if hm.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(hm.metricsHandler))
	}

	// Health check endpoints
	router.GET("/health", hm.healthHandler.Health)
	router.GET("/health/identity-provider", hm.healthHandler.IdentityProvider)
}
