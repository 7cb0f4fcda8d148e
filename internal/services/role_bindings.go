package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// profileData is the role-independent input used to build a profile.
type profileData struct {
	Name               string
	RegistrationNumber string
	Course             *models.Course
	Disciplines        []*models.Discipline
	PendingCompletion  bool
	Source             models.ProfileSource
}

// roleBinding holds the local-store operations of one mirrored role.
type roleBinding struct {
	requiresCourse bool
	build          func(externalID string, data profileData) *models.RoleProfile
	find           func(ctx context.Context, repo repositories.Repository, externalID string) (*models.RoleProfile, error)
	save           func(ctx context.Context, repo repositories.Repository, profile *models.RoleProfile) error
	remove         func(ctx context.Context, repo repositories.Repository, externalID string) error
	describe       func(profile *models.RoleProfile, view *models.UserView)
}

var roleBindings = map[models.Role]roleBinding{
	models.RoleStudent: {
		requiresCourse: true,
		build: func(externalID string, data profileData) *models.RoleProfile {
			return &models.RoleProfile{Role: models.RoleStudent, Student: &models.StudentProfile{
				ExternalID:         externalID,
				Name:               data.Name,
				RegistrationNumber: data.RegistrationNumber,
				CourseID:           data.Course.ID,
				Course:             data.Course,
				PendingCompletion:  data.PendingCompletion,
				Source:             data.Source,
			}}
		},
		find: func(ctx context.Context, repo repositories.Repository, externalID string) (*models.RoleProfile, error) {
			p, err := repo.StudentProfile().FindByExternalID(ctx, externalID)
			if err != nil {
				return nil, err
			}
			return &models.RoleProfile{Role: models.RoleStudent, Student: p}, nil
		},
		save: func(ctx context.Context, repo repositories.Repository, profile *models.RoleProfile) error {
			return repo.StudentProfile().Save(ctx, profile.Student)
		},
		remove: func(ctx context.Context, repo repositories.Repository, externalID string) error {
			return repo.StudentProfile().DeleteByExternalID(ctx, externalID)
		},
		describe: func(profile *models.RoleProfile, view *models.UserView) {
			describeCourse(view, profile.Student.CourseID, profile.Student.Course)
		},
	},
	models.RoleProfessor: {
		build: func(externalID string, data profileData) *models.RoleProfile {
			disciplines := make([]models.Discipline, 0, len(data.Disciplines))
			for _, d := range data.Disciplines {
				disciplines = append(disciplines, *d)
			}
			return &models.RoleProfile{Role: models.RoleProfessor, Professor: &models.ProfessorProfile{
				ExternalID:         externalID,
				Name:               data.Name,
				RegistrationNumber: data.RegistrationNumber,
				Disciplines:        disciplines,
				PendingCompletion:  data.PendingCompletion,
				Source:             data.Source,
			}}
		},
		find: func(ctx context.Context, repo repositories.Repository, externalID string) (*models.RoleProfile, error) {
			p, err := repo.ProfessorProfile().FindByExternalID(ctx, externalID)
			if err != nil {
				return nil, err
			}
			return &models.RoleProfile{Role: models.RoleProfessor, Professor: p}, nil
		},
		save: func(ctx context.Context, repo repositories.Repository, profile *models.RoleProfile) error {
			return repo.ProfessorProfile().Save(ctx, profile.Professor)
		},
		remove: func(ctx context.Context, repo repositories.Repository, externalID string) error {
			return repo.ProfessorProfile().DeleteByExternalID(ctx, externalID)
		},
		describe: func(profile *models.RoleProfile, view *models.UserView) {
			view.DisciplineIDs = make([]uint, 0, len(profile.Professor.Disciplines))
			view.DisciplineNames = make([]string, 0, len(profile.Professor.Disciplines))
			for _, d := range profile.Professor.Disciplines {
				view.DisciplineIDs = append(view.DisciplineIDs, d.ID)
				view.DisciplineNames = append(view.DisciplineNames, d.Name)
			}
		},
	},
	models.RoleCoordinator: {
		requiresCourse: true,
		build: func(externalID string, data profileData) *models.RoleProfile {
			return &models.RoleProfile{Role: models.RoleCoordinator, Coordinator: &models.CoordinatorProfile{
				ExternalID:         externalID,
				Name:               data.Name,
				RegistrationNumber: data.RegistrationNumber,
				CourseID:           data.Course.ID,
				Course:             data.Course,
				PendingCompletion:  data.PendingCompletion,
				Source:             data.Source,
			}}
		},
		find: func(ctx context.Context, repo repositories.Repository, externalID string) (*models.RoleProfile, error) {
			p, err := repo.CoordinatorProfile().FindByExternalID(ctx, externalID)
			if err != nil {
				return nil, err
			}
			return &models.RoleProfile{Role: models.RoleCoordinator, Coordinator: p}, nil
		},
		save: func(ctx context.Context, repo repositories.Repository, profile *models.RoleProfile) error {
			return repo.CoordinatorProfile().Save(ctx, profile.Coordinator)
		},
		remove: func(ctx context.Context, repo repositories.Repository, externalID string) error {
			return repo.CoordinatorProfile().DeleteByExternalID(ctx, externalID)
		},
		describe: func(profile *models.RoleProfile, view *models.UserView) {
			describeCourse(view, profile.Coordinator.CourseID, profile.Coordinator.Course)
		},
	},
}

func bindingFor(role models.Role) (roleBinding, error) {
	binding, ok := roleBindings[role]
	if !ok {
		return roleBinding{}, fmt.Errorf("role %s has no local profile", role)
	}
	return binding, nil
}

func describeCourse(view *models.UserView, courseID uint, course *models.Course) {
	id := courseID
	view.CourseID = &id
	if course != nil {
		name := course.Name
		view.CourseName = &name
	}
}

// findAnyProfile returns the profile of externalID from whichever store holds
// it, or repositories.ErrNotFound.
func findAnyProfile(ctx context.Context, repo repositories.Repository, externalID string) (*models.RoleProfile, error) {
	for _, role := range models.MirroredRoles {
		profile, err := roleBindings[role].find(ctx, repo, externalID)
		if err == nil {
			return profile, nil
		}
		if !repositories.IsNotFoundError(err) {
			return nil, err
		}
	}
	return nil, repositories.ErrNotFound
}

// removeAllProfiles deletes the profile of externalID from all three stores so
// at most one profile exists once a new one is saved.
func removeAllProfiles(ctx context.Context, repo repositories.Repository, externalID string) error {
	var errs []error
	for _, role := range models.MirroredRoles {
		if err := roleBindings[role].remove(ctx, repo, externalID); err != nil && !repositories.IsNotFoundError(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// composeView merges identity attributes with the local profile. profile may
// be nil for ADMIN or for identities not yet mirrored.
func composeView(identity *models.ExternalIdentity, role models.Role, profile *models.RoleProfile) *models.UserView {
	view := &models.UserView{
		ID:      identity.ID,
		Name:    identity.DisplayName,
		Email:   identity.Email,
		Role:    role,
		Enabled: identity.Enabled,
	}
	if view.Name == "" {
		view.Name = identity.Username
	}
	if profile == nil {
		return view
	}
	view.RegistrationNumber = profile.RegistrationNumber()
	view.PendingCompletion = profile.PendingCompletion()
	if binding, ok := roleBindings[profile.Role]; ok {
		binding.describe(profile, view)
	}
	return view
}
