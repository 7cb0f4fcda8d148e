package models

import "time"

// ===== PROVISIONING DTOS =====

// ProvisioningRequest is the input of create and update. Role-specific
// references are interpreted according to Role.
type ProvisioningRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Password           string `json:"password,omitempty"`
	RegistrationNumber string `json:"registration_number"`
	Role               string `json:"role"`
	CourseID           *uint  `json:"course_id,omitempty"`
	DisciplineIDs      []uint `json:"discipline_ids,omitempty"`
}

// UserView is the unified read model combining identity attributes and the
// local profile.
type UserView struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	RegistrationNumber string   `json:"registration_number,omitempty"`
	Role               Role     `json:"role"`
	Enabled            bool     `json:"enabled"`
	CourseID           *uint    `json:"course_id,omitempty"`
	CourseName         *string  `json:"course_name,omitempty"`
	DisciplineIDs      []uint   `json:"discipline_ids"`
	DisciplineNames    []string `json:"discipline_names"`
	PendingCompletion  bool     `json:"pending_completion"`
}

// SyncResult summarizes one reconciliation sweep.
type SyncResult struct {
	Synced          int       `json:"synced"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	NeedsCompletion int       `json:"needs_completion"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// ===== CATALOG DTOS =====

type CourseCreateRequest struct {
	Name string `json:"name" validate:"required,notblank,max=200"`
	Code string `json:"code" validate:"required,notblank,max=50"`
}

type DisciplineCreateRequest struct {
	Name      string `json:"name" validate:"required,notblank,max=200"`
	Code      string `json:"code" validate:"required,notblank,max=50"`
	CourseIDs []uint `json:"course_ids" validate:"omitempty,dive,gt=0"`
}

// ===== LIST RESPONSES =====

type ListResponse struct {
	Content       interface{} `json:"content"`
	TotalElements int64       `json:"total_elements"`
}
