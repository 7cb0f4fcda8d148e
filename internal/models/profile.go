package models

import "time"

// ProfileSource records how a local profile came to exist.
type ProfileSource string

const (
	SourceProvisioned ProfileSource = "provisioned"
	SourceReconciled  ProfileSource = "reconciled"
)

// StudentProfile mirrors a STUDENT identity.
type StudentProfile struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	ExternalID         string        `json:"external_id" gorm:"uniqueIndex;not null;size:255"`
	Name               string        `json:"name" gorm:"not null;size:200"`
	RegistrationNumber string        `json:"registration_number" gorm:"uniqueIndex;not null;size:100"`
	CourseID           uint          `json:"course_id" gorm:"not null;index"`
	Course             *Course       `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	PendingCompletion  bool          `json:"pending_completion" gorm:"default:false"`
	Source             ProfileSource `json:"source" gorm:"size:20;default:provisioned"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

// ProfessorProfile mirrors a PROFESSOR identity. Disciplines may be empty.
type ProfessorProfile struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	ExternalID         string        `json:"external_id" gorm:"uniqueIndex;not null;size:255"`
	Name               string        `json:"name" gorm:"not null;size:200"`
	RegistrationNumber string        `json:"registration_number" gorm:"uniqueIndex;not null;size:100"`
	Disciplines        []Discipline  `json:"disciplines,omitempty" gorm:"many2many:professor_disciplines"`
	PendingCompletion  bool          `json:"pending_completion" gorm:"default:false"`
	Source             ProfileSource `json:"source" gorm:"size:20;default:provisioned"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (ProfessorProfile) TableName() string {
	return "professor_profiles"
}

// CoordinatorProfile mirrors a COORDINATOR identity.
type CoordinatorProfile struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	ExternalID         string        `json:"external_id" gorm:"uniqueIndex;not null;size:255"`
	Name               string        `json:"name" gorm:"not null;size:200"`
	RegistrationNumber string        `json:"registration_number" gorm:"uniqueIndex;not null;size:100"`
	CourseID           uint          `json:"course_id" gorm:"not null;index"`
	Course             *Course       `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	PendingCompletion  bool          `json:"pending_completion" gorm:"default:false"`
	Source             ProfileSource `json:"source" gorm:"size:20;default:provisioned"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (CoordinatorProfile) TableName() string {
	return "coordinator_profiles"
}

// RoleProfile is the role-shaped local mirror of one identity. Exactly one of
// the three pointers is set, matching Role.
type RoleProfile struct {
	Role        Role
	Student     *StudentProfile
	Professor   *ProfessorProfile
	Coordinator *CoordinatorProfile
}

func (p *RoleProfile) RegistrationNumber() string {
	switch {
	case p.Student != nil:
		return p.Student.RegistrationNumber
	case p.Professor != nil:
		return p.Professor.RegistrationNumber
	case p.Coordinator != nil:
		return p.Coordinator.RegistrationNumber
	}
	return ""
}

func (p *RoleProfile) PendingCompletion() bool {
	switch {
	case p.Student != nil:
		return p.Student.PendingCompletion
	case p.Professor != nil:
		return p.Professor.PendingCompletion
	case p.Coordinator != nil:
		return p.Coordinator.PendingCompletion
	}
	return false
}
