package repositories

import (
	"context"

	"github.com/SAP-F-2025/academic-service/internal/models"
)

// ===== ACADEMIC CATALOG =====

// AssociationLookup gives read access to the records a profile may reference.
type AssociationLookup interface {
	FindCourse(ctx context.Context, id uint) (*models.Course, error)
	FindDiscipline(ctx context.Context, id uint) (*models.Discipline, error)
	ListDisciplines(ctx context.Context, ids []uint) ([]*models.Discipline, error)
	FirstCourse(ctx context.Context) (*models.Course, error)
}

type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uint) (*models.Course, error)
	First(ctx context.Context) (*models.Course, error)
	List(ctx context.Context) ([]*models.Course, error)
	Delete(ctx context.Context, id uint) error
	ExistsByNameOrCode(ctx context.Context, name, code string) (bool, error)
	IsReferenced(ctx context.Context, id uint) (bool, error)
}

type DisciplineRepository interface {
	Create(ctx context.Context, discipline *models.Discipline) error
	GetByID(ctx context.Context, id uint) (*models.Discipline, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Discipline, error)
	List(ctx context.Context) ([]*models.Discipline, error)
	Delete(ctx context.Context, id uint) error
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// ===== LOCAL PROFILE STORES =====

type StudentProfileRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.StudentProfile, error)
	Save(ctx context.Context, profile *models.StudentProfile) error
	DeleteByExternalID(ctx context.Context, externalID string) error
}

type ProfessorProfileRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.ProfessorProfile, error)
	Save(ctx context.Context, profile *models.ProfessorProfile) error
	DeleteByExternalID(ctx context.Context, externalID string) error
}

type CoordinatorProfileRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.CoordinatorProfile, error)
	Save(ctx context.Context, profile *models.CoordinatorProfile) error
	DeleteByExternalID(ctx context.Context, externalID string) error
}

// ===== RECONCILIATION =====

type ReconciliationFilters struct {
	Status *models.ReconciliationStatus `json:"status"`
	Limit  int                          `json:"limit"`
	Offset int                          `json:"offset"`
}

type ReconciliationRepository interface {
	Create(ctx context.Context, record *models.ReconciliationRecord) error
	List(ctx context.Context, filters ReconciliationFilters) ([]*models.ReconciliationRecord, int64, error)
	// ResolveByExternalID marks every open record of the identity resolved.
	ResolveByExternalID(ctx context.Context, externalID string) error
}
