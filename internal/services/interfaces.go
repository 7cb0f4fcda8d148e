package services

import (
	"context"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// ===== SERVICE INTERFACES =====

// ProvisioningService creates, replaces and removes an identity together with
// its local role profile.
type ProvisioningService interface {
	Create(ctx context.Context, req *models.ProvisioningRequest) (*models.UserView, error)
	Update(ctx context.Context, id string, req *models.ProvisioningRequest) (*models.UserView, error)
	Delete(ctx context.Context, id string) error
}

// ReconciliationService imports identities that exist in the identity provider
// but have no local profile.
type ReconciliationService interface {
	Sync(ctx context.Context) (*models.SyncResult, error)
	ListRecords(ctx context.Context, filters repositories.ReconciliationFilters) ([]*models.ReconciliationRecord, int64, error)
}

// UserListingService is the read side over identities and profiles.
type UserListingService interface {
	ListAll(ctx context.Context) ([]*models.UserView, error)
	GetByID(ctx context.Context, id string) (*models.UserView, error)
	ListProviderRoles(ctx context.Context) ([]string, error)
	IsProviderReachable(ctx context.Context) bool
}

type CatalogService interface {
	CreateCourse(ctx context.Context, req *models.CourseCreateRequest) (*models.Course, error)
	GetCourse(ctx context.Context, id uint) (*models.Course, error)
	ListCourses(ctx context.Context) ([]*models.Course, error)
	DeleteCourse(ctx context.Context, id uint) error

	CreateDiscipline(ctx context.Context, req *models.DisciplineCreateRequest) (*models.Discipline, error)
	GetDiscipline(ctx context.Context, id uint) (*models.Discipline, error)
	ListDisciplines(ctx context.Context) ([]*models.Discipline, error)
	DeleteDiscipline(ctx context.Context, id uint) error
}

// ExportService renders the user listing as a spreadsheet.
type ExportService interface {
	ExportUsers(ctx context.Context) ([]byte, error)
}

// ServiceManager owns the lifecycle of every service.
type ServiceManager interface {
	Initialize(ctx context.Context) error

	Provisioning() ProvisioningService
	Reconciliation() ReconciliationService
	Listing() UserListingService
	Catalog() CatalogService
	Export() ExportService
	Scheduler() *ReconciliationScheduler

	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
