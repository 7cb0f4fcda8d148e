package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/academic-service/internal/cache"
	"github.com/SAP-F-2025/academic-service/internal/events"
	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

const placeholderRegistrationPrefix = "SYNC_"

// SweepLocker serializes sweeps across processes.
type SweepLocker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

type reconciliationService struct {
	repo      repositories.Repository
	lock      SweepLocker
	publisher events.EventPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger

	// mu keeps sweeps of this process from overlapping
	mu sync.Mutex
}

func NewReconciliationService(repo repositories.Repository, lock SweepLocker, publisher events.EventPublisher, metrics *observability.Metrics, logger *slog.Logger) ReconciliationService {
	if lock == nil {
		lock = cache.NewDistributedLock(nil, "", 0)
	}
	return &reconciliationService{
		repo:      repo,
		lock:      lock,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Sync mirrors every identity that holds a mirrored role but has no local
// profile yet. Placeholders are flagged for completion and recorded.
func (s *reconciliationService) Sync(ctx context.Context) (*models.SyncResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	release, err := s.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sweep lock", "error", err)
		}
	}()

	result := &models.SyncResult{StartedAt: time.Now()}
	s.logger.Info("Starting reconciliation sweep", "priority_version", models.RolePriorityVersion)

	if err := ensureReachable(ctx, s.repo.Identity()); err != nil {
		s.metrics.RecordSync("error", 0, 0, 0, result.StartedAt)
		return nil, err
	}

	identities, err := s.repo.Identity().ListIdentities(ctx)
	if err != nil {
		s.metrics.RecordSync("error", 0, 0, 0, result.StartedAt)
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	placeholderCourse := newCourseOnce(s.repo.Associations())
	for _, identity := range identities {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordSync("cancelled", result.Synced, result.Skipped, result.Failed, result.StartedAt)
			return nil, err
		}
		s.syncIdentity(ctx, identity, placeholderCourse, result)
	}

	result.FinishedAt = time.Now()
	s.metrics.RecordSync("success", result.Synced, result.Skipped, result.Failed, result.StartedAt)
	s.publish(ctx, result)
	s.logger.Info("Reconciliation sweep finished",
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"needs_completion", result.NeedsCompletion,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

func (s *reconciliationService) syncIdentity(ctx context.Context, identity *models.ExternalIdentity, placeholderCourse *courseOnce, result *models.SyncResult) {
	role, ok := models.HighestMirroredRole(identity.Roles)
	if !ok {
		result.Skipped++
		return
	}

	_, err := findAnyProfile(ctx, s.repo, identity.ID)
	if err == nil {
		result.Skipped++
		return
	}
	if !repositories.IsNotFoundError(err) {
		s.skip(ctx, identity, role, "profile lookup failed", err, result)
		return
	}

	binding := roleBindings[role]
	data := profileData{
		Name:               identity.DisplayName,
		RegistrationNumber: placeholderRegistrationPrefix + identity.Username,
		PendingCompletion:  true,
		Source:             models.SourceReconciled,
	}
	if data.Name == "" {
		data.Name = identity.Username
	}
	if binding.requiresCourse {
		course, err := placeholderCourse.get(ctx)
		if err != nil {
			s.skip(ctx, identity, role, "no course available for placeholder profile", err, result)
			return
		}
		data.Course = course
	}

	profile := binding.build(identity.ID, data)
	record := &models.ReconciliationRecord{
		ExternalID:  identity.ID,
		Username:    identity.Username,
		Role:        role,
		Status:      models.ReconciliationNeedsCompletion,
		Reason:      "profile created from identity provider data; academic fields are placeholders",
		Details:     placeholderDetails(identity, data),
		PriorityVer: models.RolePriorityVersion,
	}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := binding.save(ctx, tx, profile); err != nil {
			return fmt.Errorf("failed to persist %s placeholder: %w", role, err)
		}
		return tx.Reconciliation().Create(ctx, record)
	})
	if err != nil {
		s.skip(ctx, identity, role, "placeholder persistence failed", err, result)
		return
	}

	result.Synced++
	result.NeedsCompletion++
	s.logger.Debug("Identity mirrored with placeholder profile", "identity_id", identity.ID, "role", role)
}

// skip counts a per-identity failure and records it. It never aborts the sweep.
func (s *reconciliationService) skip(ctx context.Context, identity *models.ExternalIdentity, role models.Role, reason string, cause error, result *models.SyncResult) {
	result.Failed++
	s.logger.Warn("Identity skipped by reconciliation", "identity_id", identity.ID, "role", role, "reason", reason, "error", cause)

	record := &models.ReconciliationRecord{
		ExternalID:  identity.ID,
		Username:    identity.Username,
		Role:        role,
		Status:      models.ReconciliationFailed,
		Reason:      reason,
		Details:     mustJSON(map[string]interface{}{"error": cause.Error(), "roles": identity.Roles}),
		PriorityVer: models.RolePriorityVersion,
	}
	if err := s.repo.Reconciliation().Create(ctx, record); err != nil {
		s.logger.Error("Failed to store reconciliation record", "identity_id", identity.ID, "error", err)
	}
}

func (s *reconciliationService) ListRecords(ctx context.Context, filters repositories.ReconciliationFilters) ([]*models.ReconciliationRecord, int64, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	records, total, err := s.repo.Reconciliation().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reconciliation records: %w", err)
	}
	return records, total, nil
}

func (s *reconciliationService) publish(ctx context.Context, result *models.SyncResult) {
	if s.publisher == nil {
		return
	}
	event := events.NewEvent(events.IdentitySyncCompleted, map[string]interface{}{
		"synced":           result.Synced,
		"skipped":          result.Skipped,
		"failed":           result.Failed,
		"needs_completion": result.NeedsCompletion,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// courseOnce fetches the placeholder course at most once per sweep.
type courseOnce struct {
	lookup  repositories.AssociationLookup
	fetched bool
	course  *models.Course
	err     error
}

func newCourseOnce(lookup repositories.AssociationLookup) *courseOnce {
	return &courseOnce{lookup: lookup}
}

func (c *courseOnce) get(ctx context.Context) (*models.Course, error) {
	if !c.fetched {
		c.course, c.err = c.lookup.FirstCourse(ctx)
		c.fetched = true
	}
	return c.course, c.err
}

func placeholderDetails(identity *models.ExternalIdentity, data profileData) datatypes.JSON {
	details := map[string]interface{}{
		"placeholder_registration_number": data.RegistrationNumber,
		"roles":                           identity.Roles,
	}
	if data.Course != nil {
		details["placeholder_course_id"] = data.Course.ID
	}
	return mustJSON(details)
}

func mustJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
