package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// Profiles are hard-deleted so a replaced profile frees its unique
// registration number and external id at once.

// ===== STUDENT PROFILES =====

type studentProfilePostgreSQL struct {
	db *gorm.DB
}

func NewStudentProfilePostgreSQL(db *gorm.DB) repositories.StudentProfileRepository {
	return &studentProfilePostgreSQL{db: db}
}

func (r *studentProfilePostgreSQL) FindByExternalID(ctx context.Context, externalID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("external_id = ?", externalID).
		First(&profile).Error
	if err != nil {
		return nil, handleDBError(err, "find student profile")
	}
	return &profile, nil
}

func (r *studentProfilePostgreSQL) Save(ctx context.Context, profile *models.StudentProfile) error {
	if err := r.db.WithContext(ctx).Omit("Course").Save(profile).Error; err != nil {
		return handleDBError(err, "save student profile")
	}
	return nil
}

func (r *studentProfilePostgreSQL) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Delete(&models.StudentProfile{}).Error
	return handleDBError(err, "delete student profile")
}

// ===== PROFESSOR PROFILES =====

type professorProfilePostgreSQL struct {
	db *gorm.DB
}

func NewProfessorProfilePostgreSQL(db *gorm.DB) repositories.ProfessorProfileRepository {
	return &professorProfilePostgreSQL{db: db}
}

func (r *professorProfilePostgreSQL) FindByExternalID(ctx context.Context, externalID string) (*models.ProfessorProfile, error) {
	var profile models.ProfessorProfile
	err := r.db.WithContext(ctx).
		Preload("Disciplines", func(db *gorm.DB) *gorm.DB {
			return db.Order("disciplines.id ASC")
		}).
		Where("external_id = ?", externalID).
		First(&profile).Error
	if err != nil {
		return nil, handleDBError(err, "find professor profile")
	}
	return &profile, nil
}

// Save stores the profile and links its disciplines. Disciplines must already
// exist; they are never created or updated from here.
func (r *professorProfilePostgreSQL) Save(ctx context.Context, profile *models.ProfessorProfile) error {
	disciplines := profile.Disciplines
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Disciplines").Save(profile).Error; err != nil {
			return err
		}
		if len(disciplines) == 0 {
			return tx.Model(profile).Association("Disciplines").Clear()
		}
		return tx.Model(profile).Association("Disciplines").Replace(disciplines)
	})
	if err != nil {
		return handleDBError(err, "save professor profile")
	}
	return nil
}

func (r *professorProfilePostgreSQL) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profiles []models.ProfessorProfile
		if err := tx.Where("external_id = ?", externalID).Find(&profiles).Error; err != nil {
			return err
		}
		for i := range profiles {
			if err := tx.Model(&profiles[i]).Association("Disciplines").Clear(); err != nil {
				return err
			}
			if err := tx.Delete(&profiles[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return handleDBError(err, "delete professor profile")
}

// ===== COORDINATOR PROFILES =====

type coordinatorProfilePostgreSQL struct {
	db *gorm.DB
}

func NewCoordinatorProfilePostgreSQL(db *gorm.DB) repositories.CoordinatorProfileRepository {
	return &coordinatorProfilePostgreSQL{db: db}
}

func (r *coordinatorProfilePostgreSQL) FindByExternalID(ctx context.Context, externalID string) (*models.CoordinatorProfile, error) {
	var profile models.CoordinatorProfile
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("external_id = ?", externalID).
		First(&profile).Error
	if err != nil {
		return nil, handleDBError(err, "find coordinator profile")
	}
	return &profile, nil
}

func (r *coordinatorProfilePostgreSQL) Save(ctx context.Context, profile *models.CoordinatorProfile) error {
	if err := r.db.WithContext(ctx).Omit("Course").Save(profile).Error; err != nil {
		return handleDBError(err, "save coordinator profile")
	}
	return nil
}

func (r *coordinatorProfilePostgreSQL) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		Delete(&models.CoordinatorProfile{}).Error
	return handleDBError(err, "delete coordinator profile")
}
