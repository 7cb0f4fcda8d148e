package validator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// Mode selects the rules that differ between create and update.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// ErrAssociationNotFound matches every *AssociationNotFoundError.
var ErrAssociationNotFound = errors.New("association not found")

// AssociationNotFoundError reports a course or discipline reference that does
// not resolve.
type AssociationNotFoundError struct {
	Resource string
	ID       uint
}

func (e *AssociationNotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Resource, e.ID)
}

func (e *AssociationNotFoundError) Is(target error) bool {
	return target == ErrAssociationNotFound
}

// Associations are the references resolved while validating a request.
type Associations struct {
	Course      *models.Course
	Disciplines []*models.Discipline
}

// associationRule describes which references a mirrored role carries.
type associationRule struct {
	requiresCourse    bool
	allowsDisciplines bool
}

var associationRules = map[models.Role]associationRule{
	models.RoleStudent:     {requiresCourse: true},
	models.RoleCoordinator: {requiresCourse: true},
	models.RoleProfessor:   {allowsDisciplines: true},
}

type provisioningShape struct {
	Name               string `validate:"notblank,max=200"`
	Email              string `validate:"notblank,email,max=255"`
	Password           string `validate:"notblank,max=128"`
	RegistrationNumber string `validate:"notblank,max=100"`
}

// RoleValidationPolicy validates provisioning requests before any call to the
// identity provider is made.
type RoleValidationPolicy struct {
	validator *Validator
	lookup    repositories.AssociationLookup
}

func NewRoleValidationPolicy(v *Validator, lookup repositories.AssociationLookup) *RoleValidationPolicy {
	if v == nil {
		v = New()
	}
	return &RoleValidationPolicy{validator: v, lookup: lookup}
}

// Validate checks, in order: presence of the request, the role name, the
// required fields, and the role-specific references. It returns the parsed
// role and the resolved references. Shape failures are ValidationErrors and
// unresolved references are *AssociationNotFoundError.
func (p *RoleValidationPolicy) Validate(ctx context.Context, req *models.ProvisioningRequest, mode Mode) (models.Role, *Associations, error) {
	if req == nil {
		return "", nil, ValidationErrors{{Field: "request", Message: "request is required", Rule: "required"}}
	}

	role, err := models.ParseRole(req.Role)
	if err != nil || !role.IsMirrored() {
		return "", nil, ValidationErrors{{
			Field:   "role",
			Message: fmt.Sprintf("role must be one of %s", mirroredRoleNames()),
			Value:   req.Role,
			Rule:    "oneof",
		}}
	}

	shape := provisioningShape{
		Name:               req.Name,
		Email:              req.Email,
		Password:           req.Password,
		RegistrationNumber: req.RegistrationNumber,
	}
	if mode == ModeUpdate {
		err = p.validator.ValidateExcept(shape, "Password")
	} else {
		err = p.validator.Validate(shape)
	}
	if err != nil {
		return "", nil, err
	}

	associations, err := p.validateAssociations(ctx, role, req)
	if err != nil {
		return "", nil, err
	}
	return role, associations, nil
}

func (p *RoleValidationPolicy) validateAssociations(ctx context.Context, role models.Role, req *models.ProvisioningRequest) (*Associations, error) {
	rule := associationRules[role]
	associations := &Associations{}

	if rule.requiresCourse {
		if req.CourseID == nil || *req.CourseID == 0 {
			return nil, ValidationErrors{{
				Field:   "course_id",
				Message: fmt.Sprintf("Course ID is required for %s", role),
				Rule:    "required",
			}}
		}
		course, err := p.lookup.FindCourse(ctx, *req.CourseID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, &AssociationNotFoundError{Resource: "course", ID: *req.CourseID}
			}
			return nil, fmt.Errorf("failed to look up course: %w", err)
		}
		associations.Course = course
	}

	if rule.allowsDisciplines && len(req.DisciplineIDs) > 0 {
		ids := uniqueIDs(req.DisciplineIDs)
		disciplines, err := p.lookup.ListDisciplines(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to look up disciplines: %w", err)
		}
		found := make(map[uint]bool, len(disciplines))
		for _, d := range disciplines {
			found[d.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, &AssociationNotFoundError{Resource: "discipline", ID: id}
			}
		}
		associations.Disciplines = disciplines
	}

	return associations, nil
}

func uniqueIDs(ids []uint) []uint {
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(unique, id) {
			unique = append(unique, id)
		}
	}
	return unique
}

func mirroredRoleNames() string {
	names := make([]string, len(models.MirroredRoles))
	for i, role := range models.MirroredRoles {
		names[i] = string(role)
	}
	return strings.Join(names, ", ")
}
