package postgres

import (
	"context"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// associationLookup exposes the catalog repositories as a read-only
// repositories.AssociationLookup.
type associationLookup struct {
	courses     repositories.CourseRepository
	disciplines repositories.DisciplineRepository
}

func NewAssociationLookup(courses repositories.CourseRepository, disciplines repositories.DisciplineRepository) repositories.AssociationLookup {
	return &associationLookup{courses: courses, disciplines: disciplines}
}

func (l *associationLookup) FindCourse(ctx context.Context, id uint) (*models.Course, error) {
	return l.courses.GetByID(ctx, id)
}

func (l *associationLookup) FindDiscipline(ctx context.Context, id uint) (*models.Discipline, error) {
	return l.disciplines.GetByID(ctx, id)
}

func (l *associationLookup) ListDisciplines(ctx context.Context, ids []uint) ([]*models.Discipline, error) {
	return l.disciplines.GetByIDs(ctx, ids)
}

func (l *associationLookup) FirstCourse(ctx context.Context) (*models.Course, error) {
	return l.courses.First(ctx)
}
