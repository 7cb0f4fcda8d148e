package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/SAP-F-2025/academic-service/internal/events"
	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/validator"
)

const compensationTimeout = 30 * time.Second

// undoStack holds the inverse of every external change made so far.
type undoStack []func(context.Context) error

func (u *undoStack) push(fn func(context.Context) error) {
	*u = append(*u, fn)
}

// run applies the inverses in reverse order and joins their failures.
func (u undoStack) run(ctx context.Context) error {
	var errs []error
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type provisioningService struct {
	repo      repositories.Repository
	policy    *validator.RoleValidationPolicy
	publisher events.EventPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewProvisioningService(repo repositories.Repository, v *validator.Validator, publisher events.EventPublisher, metrics *observability.Metrics, logger *slog.Logger) ProvisioningService {
	return &provisioningService{
		repo:      repo,
		policy:    validator.NewRoleValidationPolicy(v, repo.Associations()),
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// ===== CREATE =====

// Create validates the request, creates the identity with its role and then
// stores the local profile. A local failure deletes the identity again.
func (s *provisioningService) Create(ctx context.Context, req *models.ProvisioningRequest) (view *models.UserView, err error) {
	start := time.Now()
	defer func() { s.record("create", err, start) }()

	role, associations, err := s.policy.Validate(ctx, req, validator.ModeCreate)
	if err != nil {
		return nil, err
	}
	binding, err := bindingFor(role)
	if err != nil {
		return nil, err
	}

	gateway := s.repo.Identity()
	if err := ensureReachable(ctx, gateway); err != nil {
		return nil, err
	}

	s.logger.Info("Provisioning identity", "role", role, "email", req.Email)

	attrs := models.IdentityAttributes{
		Username:    req.Email,
		Email:       req.Email,
		DisplayName: req.Name,
		Enabled:     true,
	}
	id, err := gateway.CreateIdentity(ctx, attrs, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	var undo undoStack
	undo.push(func(ctx context.Context) error {
		return gateway.DeleteIdentity(ctx, id)
	})

	if err := gateway.AssignRole(ctx, id, role); err != nil {
		return nil, s.compensate(ctx, "create", id, fmt.Errorf("failed to assign role %s: %w", role, err), undo)
	}

	profile := binding.build(id, profileData{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		Course:             associations.Course,
		Disciplines:        associations.Disciplines,
		Source:             models.SourceProvisioned,
	})
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := removeAllProfiles(ctx, tx, id); err != nil {
			return err
		}
		return binding.save(ctx, tx, profile)
	})
	if err != nil {
		return nil, s.compensate(ctx, "create", id, fmt.Errorf("failed to persist %s profile: %w", role, err), undo)
	}

	identity := &models.ExternalIdentity{
		ID:          id,
		Username:    attrs.Username,
		Email:       attrs.Email,
		DisplayName: attrs.DisplayName,
		Enabled:     attrs.Enabled,
		Roles:       []string{role.String()},
	}
	view = composeView(identity, role, profile)

	s.publish(ctx, events.IdentityProvisioned, viewEventData(view))
	s.logger.Info("Identity provisioned", "identity_id", id, "role", role, "outcome", observability.OutcomeSuccess)
	return view, nil
}

// ===== UPDATE =====

// Update replaces the profile of id wholesale. Local writes are staged in a
// transaction that commits only after the identity provider accepted every
// change.
func (s *provisioningService) Update(ctx context.Context, id string, req *models.ProvisioningRequest) (view *models.UserView, err error) {
	start := time.Now()
	defer func() { s.record("update", err, start) }()

	role, associations, err := s.policy.Validate(ctx, req, validator.ModeUpdate)
	if err != nil {
		return nil, err
	}
	binding, err := bindingFor(role)
	if err != nil {
		return nil, err
	}

	if err := ensureReachable(ctx, s.repo.Identity()); err != nil {
		return nil, err
	}

	current, err := s.repo.Identity().GetIdentity(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	s.logger.Info("Updating identity", "identity_id", id, "role", role)

	attrs := models.IdentityAttributes{
		Username:    req.Email,
		Email:       req.Email,
		DisplayName: req.Name,
		Enabled:     current.Enabled,
	}
	profile := binding.build(id, profileData{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		Course:             associations.Course,
		Disciplines:        associations.Disciplines,
		Source:             models.SourceProvisioned,
	})

	var undo undoStack
	externalDone := false
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := removeAllProfiles(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to remove previous profile: %w", err)
		}
		if err := binding.save(ctx, tx, profile); err != nil {
			return fmt.Errorf("failed to persist %s profile: %w", role, err)
		}
		if err := tx.Reconciliation().ResolveByExternalID(ctx, id); err != nil {
			return fmt.Errorf("failed to resolve reconciliation records: %w", err)
		}
		if err := s.applyIdentityChanges(ctx, current, attrs, role, req.Password, &undo); err != nil {
			return err
		}
		externalDone = true
		return nil
	})
	if err != nil {
		if len(undo) == 0 {
			return nil, err
		}
		if externalDone {
			err = fmt.Errorf("failed to commit local changes: %w", err)
		}
		return nil, s.compensate(ctx, "update", id, err, undo)
	}

	identity := &models.ExternalIdentity{
		ID:          id,
		Username:    attrs.Username,
		Email:       attrs.Email,
		DisplayName: attrs.DisplayName,
		Enabled:     attrs.Enabled,
	}
	view = composeView(identity, role, profile)

	s.publish(ctx, events.IdentityUpdated, viewEventData(view))
	s.logger.Info("Identity updated", "identity_id", id, "role", role, "outcome", observability.OutcomeSuccess)
	return view, nil
}

// applyIdentityChanges pushes attribute, role and credential changes to the
// identity provider, recording an inverse for each one applied. The
// credential goes last because it cannot be reverted.
func (s *provisioningService) applyIdentityChanges(ctx context.Context, current *models.ExternalIdentity, attrs models.IdentityAttributes, role models.Role, credential string, undo *undoStack) error {
	gateway := s.repo.Identity()
	id := current.ID
	previous := models.IdentityAttributes{
		Username:    current.Username,
		Email:       current.Email,
		DisplayName: current.DisplayName,
		Enabled:     current.Enabled,
	}

	if attrs != previous {
		if err := gateway.UpdateIdentity(ctx, id, attrs); err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}
		undo.push(func(ctx context.Context) error {
			return gateway.UpdateIdentity(ctx, id, previous)
		})
	}

	held := false
	for _, name := range current.Roles {
		granted, err := models.ParseRole(name)
		if err != nil || !granted.IsMirrored() {
			continue
		}
		if granted == role {
			held = true
			continue
		}
		if err := gateway.RemoveRole(ctx, id, granted); err != nil {
			return fmt.Errorf("failed to remove role %s: %w", granted, err)
		}
		undo.push(func(ctx context.Context) error {
			return gateway.AssignRole(ctx, id, granted)
		})
	}
	if !held {
		if err := gateway.AssignRole(ctx, id, role); err != nil {
			return fmt.Errorf("failed to assign role %s: %w", role, err)
		}
		undo.push(func(ctx context.Context) error {
			return gateway.RemoveRole(ctx, id, role)
		})
	}

	if credential != "" {
		if err := gateway.ResetCredential(ctx, id, credential); err != nil {
			return fmt.Errorf("failed to reset credential: %w", err)
		}
		undo.push(func(context.Context) error {
			return fmt.Errorf("credential reset: %w", errNotRevertible)
		})
	}
	return nil
}

// ===== DELETE =====

// Delete stages the local removal, deletes the identity and then commits.
func (s *provisioningService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.record("delete", err, start) }()

	gateway := s.repo.Identity()
	if err := ensureReachable(ctx, gateway); err != nil {
		return err
	}
	if _, err := gateway.GetIdentity(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get identity: %w", err)
	}

	s.logger.Info("Deprovisioning identity", "identity_id", id)

	externalDone := false
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := removeAllProfiles(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to remove profile: %w", err)
		}
		if err := tx.Reconciliation().ResolveByExternalID(ctx, id); err != nil {
			return fmt.Errorf("failed to resolve reconciliation records: %w", err)
		}
		if err := gateway.DeleteIdentity(ctx, id); err != nil {
			return fmt.Errorf("failed to delete identity: %w", err)
		}
		externalDone = true
		return nil
	})
	if err != nil {
		if !externalDone {
			return err
		}
		undo := undoStack{func(context.Context) error {
			return fmt.Errorf("identity deletion: %w", errNotRevertible)
		}}
		return s.compensate(ctx, "delete", id, fmt.Errorf("failed to commit local deletion: %w", err), undo)
	}

	s.publish(ctx, events.IdentityDeprovisioned, map[string]interface{}{"identity_id": id})
	s.logger.Info("Identity deprovisioned", "identity_id", id, "outcome", observability.OutcomeSuccess)
	return nil
}

// ===== HELPERS =====

// compensate reverts the external changes of a failed operation. It runs
// detached from ctx so a cancelled request still gets cleaned up.
func (s *provisioningService) compensate(ctx context.Context, operation, id string, cause error, undo undoStack) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	partial := &PartialFailureError{
		Operation:       operation,
		IdentityID:      id,
		Cause:           cause,
		CompensationErr: undo.run(cctx),
	}

	if partial.ReconciliationRequired() {
		s.logger.Error("Compensation failed",
			"operation", operation,
			"identity_id", id,
			"error", cause,
			"compensation_error", partial.CompensationErr,
			"outcome", observability.OutcomeReconciliationRequired,
			"reconciliation_required", true)
		s.publish(cctx, events.IdentityReconciliationRequired, map[string]interface{}{
			"identity_id":  id,
			"operation":    operation,
			"error":        cause.Error(),
			"compensation": partial.CompensationErr.Error(),
		})
		return partial
	}

	s.logger.Error("Operation failed after external changes, compensated",
		"operation", operation,
		"identity_id", id,
		"error", cause,
		"outcome", observability.OutcomePartialCompensated,
		"reconciliation_required", false)
	return partial
}

func (s *provisioningService) publish(ctx context.Context, eventType events.EventType, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

func (s *provisioningService) record(operation string, err error, start time.Time) {
	outcome := outcomeOf(err)
	s.metrics.RecordProvisioning(operation, outcome, start)
	if err != nil && outcome != observability.OutcomePartialCompensated && outcome != observability.OutcomeReconciliationRequired {
		s.logger.Warn("Provisioning operation failed", "operation", operation, "outcome", outcome, "error", err)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	if partial, ok := IsPartialFailure(err); ok {
		if partial.ReconciliationRequired() {
			return observability.OutcomeReconciliationRequired
		}
		return observability.OutcomePartialCompensated
	}
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return observability.OutcomeValidationError
	case errors.Is(err, validator.ErrAssociationNotFound), errors.Is(err, ErrUserNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, ErrGatewayUnreachable):
		return observability.OutcomeGatewayUnreachable
	case repositories.IsGatewayRejected(err):
		return observability.OutcomeGatewayRejected
	default:
		return observability.OutcomeError
	}
}

func viewEventData(view *models.UserView) map[string]interface{} {
	data := map[string]interface{}{
		"identity_id":         view.ID,
		"email":               view.Email,
		"role":                view.Role.String(),
		"registration_number": view.RegistrationNumber,
	}
	if view.CourseID != nil {
		data["course_id"] = *view.CourseID
	}
	if len(view.DisciplineIDs) > 0 {
		data["discipline_ids"] = slices.Clone(view.DisciplineIDs)
	}
	return data
}
