package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/validator"
)

type catalogService struct {
	repo      repositories.Repository
	validator *validator.Validator
	logger    *slog.Logger
}

func NewCatalogService(repo repositories.Repository, v *validator.Validator, logger *slog.Logger) CatalogService {
	if v == nil {
		v = validator.New()
	}
	return &catalogService{repo: repo, validator: v, logger: logger}
}

// ===== COURSES =====

func (s *catalogService) CreateCourse(ctx context.Context, req *models.CourseCreateRequest) (*models.Course, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	code := strings.TrimSpace(req.Code)
	exists, err := s.repo.Course().ExistsByNameOrCode(ctx, name, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check course uniqueness: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: course with name %q or code %q already exists", ErrConflict, name, code)
	}

	course := &models.Course{Name: name, Code: code}
	if err := s.repo.Course().Create(ctx, course); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to create course: %w", err)
	}

	s.logger.Info("Course created", "course_id", course.ID, "code", course.Code)
	return course, nil
}

func (s *catalogService) GetCourse(ctx context.Context, id uint) (*models.Course, error) {
	course, err := s.repo.Course().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "course", id)
	}
	return course, nil
}

func (s *catalogService) ListCourses(ctx context.Context) ([]*models.Course, error) {
	courses, err := s.repo.Course().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// DeleteCourse refuses to remove a course that a profile still references.
func (s *catalogService) DeleteCourse(ctx context.Context, id uint) error {
	referenced, err := s.repo.Course().IsReferenced(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check course references: %w", err)
	}
	if referenced {
		return fmt.Errorf("%w: course %d is referenced by student or coordinator profiles", ErrConflict, id)
	}
	if err := s.repo.Course().Delete(ctx, id); err != nil {
		return notFoundOr(err, "course", id)
	}
	s.logger.Info("Course deleted", "course_id", id)
	return nil
}

// ===== DISCIPLINES =====

func (s *catalogService) CreateDiscipline(ctx context.Context, req *models.DisciplineCreateRequest) (*models.Discipline, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(req.Code)
	exists, err := s.repo.Discipline().ExistsByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check discipline uniqueness: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: discipline with code %q already exists", ErrConflict, code)
	}

	discipline := &models.Discipline{Name: strings.TrimSpace(req.Name), Code: code}
	for _, courseID := range req.CourseIDs {
		course, err := s.repo.Course().GetByID(ctx, courseID)
		if err != nil {
			return nil, notFoundOr(err, "course", courseID)
		}
		discipline.Courses = append(discipline.Courses, *course)
	}

	if err := s.repo.Discipline().Create(ctx, discipline); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("failed to create discipline: %w", err)
	}

	s.logger.Info("Discipline created", "discipline_id", discipline.ID, "code", discipline.Code)
	return discipline, nil
}

func (s *catalogService) GetDiscipline(ctx context.Context, id uint) (*models.Discipline, error) {
	discipline, err := s.repo.Discipline().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "discipline", id)
	}
	return discipline, nil
}

func (s *catalogService) ListDisciplines(ctx context.Context) ([]*models.Discipline, error) {
	disciplines, err := s.repo.Discipline().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list disciplines: %w", err)
	}
	return disciplines, nil
}

func (s *catalogService) DeleteDiscipline(ctx context.Context, id uint) error {
	if err := s.repo.Discipline().Delete(ctx, id); err != nil {
		return notFoundOr(err, "discipline", id)
	}
	s.logger.Info("Discipline deleted", "discipline_id", id)
	return nil
}

func notFoundOr(err error, resource string, id uint) error {
	if repositories.IsNotFoundError(err) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, resource, id)
	}
	return fmt.Errorf("%s %d: %w", resource, id, err)
}
