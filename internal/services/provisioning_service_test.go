package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/academic-service/internal/events"
	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/validator"
)

type provisioningFixture struct {
	repo      *fakeRepo
	gateway   *fakeGateway
	publisher *events.MockEventPublisher
	metrics   *observability.Metrics
	service   ProvisioningService
	listing   UserListingService
}

func newProvisioningFixture(t *testing.T) *provisioningFixture {
	t.Helper()
	repo := newFakeRepo()
	repo.seedCourse(7, "Computer Science")
	repo.seedDiscipline(1, "Algorithms")
	repo.seedDiscipline(2, "Databases")

	publisher := events.NewMockEventPublisher(discardLogger())
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return &provisioningFixture{
		repo:      repo,
		gateway:   repo.gateway,
		publisher: publisher,
		metrics:   metrics,
		service:   NewProvisioningService(repo, validator.New(), publisher, metrics, discardLogger()),
		listing:   NewUserListingService(repo, discardLogger()),
	}
}

func (f *provisioningFixture) outcomes(operation, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.ProvisioningTotal.WithLabelValues(operation, outcome))
}

func uintPtr(v uint) *uint { return &v }

func studentRequest(courseID *uint) *models.ProvisioningRequest {
	return &models.ProvisioningRequest{
		Name:               "Ada Lovelace",
		Email:              "ada@example.edu",
		Password:           "initial-secret",
		RegistrationNumber: "2024001",
		Role:               "STUDENT",
		CourseID:           courseID,
	}
}

// ===== CREATE =====

func TestProvisioning_CreateRejectsUnknownRoleWithoutGatewayCalls(t *testing.T) {
	for _, role := range []string{"JANITOR", "", "ADMIN", "superuser", "STUDENTS"} {
		t.Run(fmt.Sprintf("role=%q", role), func(t *testing.T) {
			f := newProvisioningFixture(t)
			req := studentRequest(uintPtr(7))
			req.Role = role

			_, err := f.service.Create(context.Background(), req)

			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, "role", verrs[0].Field)
			assert.Zero(t, f.gateway.callCount())
			assert.Equal(t, 1.0, f.outcomes("create", observability.OutcomeValidationError))
		})
	}
}

func TestProvisioning_CreateStudent(t *testing.T) {
	f := newProvisioningFixture(t)

	view, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, view.Role)
	require.NotNil(t, view.CourseID)
	assert.Equal(t, uint(7), *view.CourseID)
	require.NotNil(t, view.CourseName)
	assert.Equal(t, "Computer Science", *view.CourseName)
	assert.Equal(t, "2024001", view.RegistrationNumber)
	assert.True(t, view.Enabled)
	assert.False(t, view.PendingCompletion)

	profile, ok := f.repo.store.students[view.ID]
	require.True(t, ok)
	assert.Equal(t, "2024001", profile.RegistrationNumber)
	assert.Equal(t, models.SourceProvisioned, profile.Source)

	identity := f.gateway.snapshot(view.ID)
	require.NotNil(t, identity)
	assert.Equal(t, []string{"STUDENT"}, identity.Roles)
	assert.Equal(t, "ada@example.edu", identity.Username)
	assert.Equal(t, "initial-secret", f.gateway.credentials[view.ID])
	assert.Equal(t, []string{"CreateIdentity", "AssignRole"}, f.gateway.calls)

	assert.Len(t, f.publisher.EventsOfType(events.IdentityProvisioned), 1)
	assert.Equal(t, 1.0, f.outcomes("create", observability.OutcomeSuccess))
}

func TestProvisioning_CreateProfessorWithoutDisciplines(t *testing.T) {
	f := newProvisioningFixture(t)
	req := studentRequest(nil)
	req.Role = "PROFESSOR"

	view, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.RoleProfessor, view.Role)
	assert.NotNil(t, view.DisciplineIDs)
	assert.Empty(t, view.DisciplineIDs)
	assert.Nil(t, view.CourseID)
	assert.Contains(t, f.repo.store.professors, view.ID)
}

func TestProvisioning_CreateProfessorWithDisciplines(t *testing.T) {
	f := newProvisioningFixture(t)
	req := studentRequest(nil)
	req.Role = "PROFESSOR"
	req.DisciplineIDs = []uint{2, 1}

	view, err := f.service.Create(context.Background(), req)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{1, 2}, view.DisciplineIDs)
	assert.ElementsMatch(t, []string{"Algorithms", "Databases"}, view.DisciplineNames)
	assert.Len(t, f.repo.store.professors[view.ID].Disciplines, 2)
}

func TestProvisioning_CreateCoordinatorWithoutCourse(t *testing.T) {
	f := newProvisioningFixture(t)
	req := studentRequest(nil)
	req.Role = "COORDINATOR"

	_, err := f.service.Create(context.Background(), req)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, err.Error(), "Course ID is required for COORDINATOR")
	assert.Zero(t, f.gateway.callCount())
}

func TestProvisioning_CreateStudentWithUnknownCourse(t *testing.T) {
	f := newProvisioningFixture(t)

	_, err := f.service.Create(context.Background(), studentRequest(uintPtr(999999)))

	require.ErrorIs(t, err, validator.ErrAssociationNotFound)
	assert.Zero(t, f.gateway.callCount())
	assert.Equal(t, 1.0, f.outcomes("create", observability.OutcomeNotFound))
}

func TestProvisioning_CreateCompensatesWhenProfilePersistenceFails(t *testing.T) {
	f := newProvisioningFixture(t)
	f.repo.saveErr[models.RoleStudent] = errors.New("disk full")

	_, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))

	partial, ok := IsPartialFailure(err)
	require.True(t, ok, "expected partial failure, got %v", err)
	assert.False(t, partial.ReconciliationRequired())
	assert.Equal(t, "create", partial.Operation)
	assert.Nil(t, f.gateway.snapshot(partial.IdentityID), "identity must be removed by compensation")
	assert.Empty(t, f.gateway.identities)
	assert.Empty(t, f.repo.store.students)
	assert.Equal(t, []string{"CreateIdentity", "AssignRole", "DeleteIdentity"}, f.gateway.calls)
	assert.Equal(t, 1.0, f.outcomes("create", observability.OutcomePartialCompensated))
	assert.Empty(t, f.publisher.GetPublishedEvents())
}

func TestProvisioning_CreateCompensatesWhenRoleAssignmentFails(t *testing.T) {
	f := newProvisioningFixture(t)
	f.gateway.failOn["AssignRole"] = &repositories.GatewayRejectedError{Operation: "assign role", Status: "unknown_role", Message: "role not found"}

	_, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))

	partial, ok := IsPartialFailure(err)
	require.True(t, ok)
	assert.False(t, partial.ReconciliationRequired())
	assert.True(t, repositories.IsGatewayRejected(err))
	assert.Empty(t, f.gateway.identities)
	assert.Empty(t, f.repo.store.students)
}

func TestProvisioning_CreateSurfacesFailedCompensation(t *testing.T) {
	f := newProvisioningFixture(t)
	f.repo.saveErr[models.RoleStudent] = errors.New("disk full")
	f.gateway.failOn["DeleteIdentity"] = fmt.Errorf("delete: %w", repositories.ErrGatewayUnreachable)

	_, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))

	partial, ok := IsPartialFailure(err)
	require.True(t, ok)
	assert.True(t, partial.ReconciliationRequired())
	assert.ErrorIs(t, partial.CompensationErr, repositories.ErrGatewayUnreachable)
	assert.Len(t, f.publisher.EventsOfType(events.IdentityReconciliationRequired), 1)
	assert.Equal(t, 1.0, f.outcomes("create", observability.OutcomeReconciliationRequired))
}

func TestProvisioning_CreateGatewayFailuresLeaveNoState(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"unreachable", fmt.Errorf("dial tcp: %w", repositories.ErrGatewayUnreachable), observability.OutcomeGatewayUnreachable},
		{"rejected", &repositories.GatewayRejectedError{Operation: "create identity", Status: "duplicate", Message: "exists"}, observability.OutcomeGatewayRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProvisioningFixture(t)
			f.gateway.failOn["CreateIdentity"] = tt.err

			_, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))

			require.Error(t, err)
			_, partial := IsPartialFailure(err)
			assert.False(t, partial)
			assert.Empty(t, f.repo.store.students)
			assert.Zero(t, f.repo.writes)
			assert.Equal(t, 1.0, f.outcomes("create", tt.outcome))
		})
	}
}

func TestProvisioning_PublishFailureDoesNotFailCreate(t *testing.T) {
	f := newProvisioningFixture(t)
	f.publisher.Err = errors.New("broker down")

	_, err := f.service.Create(context.Background(), studentRequest(uintPtr(7)))
	assert.NoError(t, err)
}

// ===== UPDATE =====

func TestProvisioning_UpdateReplacesProfileAcrossRoles(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.gateway.calls = nil

	req := &models.ProvisioningRequest{
		Name:               "Ada King",
		Email:              "ada.king@example.edu",
		RegistrationNumber: "P-77",
		Role:               "professor",
		DisciplineIDs:      []uint{1},
	}
	view, err := f.service.Update(ctx, created.ID, req)
	require.NoError(t, err)

	assert.Equal(t, models.RoleProfessor, view.Role)
	assert.Equal(t, []uint{1}, view.DisciplineIDs)
	assert.Equal(t, "P-77", view.RegistrationNumber)
	assert.NotContains(t, f.repo.store.students, created.ID)
	assert.Contains(t, f.repo.store.professors, created.ID)

	identity := f.gateway.snapshot(created.ID)
	assert.Equal(t, []string{"PROFESSOR"}, identity.Roles)
	assert.Equal(t, "ada.king@example.edu", identity.Email)
	assert.Equal(t, "Ada King", identity.DisplayName)
	assert.Equal(t, "initial-secret", f.gateway.credentials[created.ID])
	assert.NotContains(t, f.gateway.calls, "ResetCredential")
	assert.Len(t, f.publisher.EventsOfType(events.IdentityUpdated), 1)
}

func TestProvisioning_UpdateSameRoleKeepsGrant(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.gateway.calls = nil

	req := studentRequest(uintPtr(7))
	req.Password = "rotated"
	_, err = f.service.Update(ctx, created.ID, req)
	require.NoError(t, err)

	assert.Equal(t, []string{"GetIdentity", "ResetCredential"}, f.gateway.calls)
	assert.Equal(t, "rotated", f.gateway.credentials[created.ID])
}

func TestProvisioning_UpdateUnknownIdentity(t *testing.T) {
	f := newProvisioningFixture(t)

	_, err := f.service.Update(context.Background(), "missing", studentRequest(uintPtr(7)))

	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, f.repo.writes)
}

func TestProvisioning_UpdateGatewayFailureRollsBackLocalChanges(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.gateway.failOn["UpdateIdentity"] = fmt.Errorf("timeout: %w", repositories.ErrGatewayUnreachable)

	req := studentRequest(uintPtr(7))
	req.Name = "Renamed"
	req.RegistrationNumber = "2024999"
	_, err = f.service.Update(ctx, created.ID, req)

	require.ErrorIs(t, err, ErrGatewayUnreachable)
	_, partial := IsPartialFailure(err)
	assert.False(t, partial)
	assert.Equal(t, "2024001", f.repo.store.students[created.ID].RegistrationNumber)
}

func TestProvisioning_UpdateCompensatesWhenLaterGatewayStepFails(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.gateway.failOn["RemoveRole"] = &repositories.GatewayRejectedError{Operation: "remove role", Message: "boom"}

	req := studentRequest(uintPtr(7))
	req.Role = "COORDINATOR"
	req.Name = "Coordinator Ada"
	_, err = f.service.Update(ctx, created.ID, req)

	partial, ok := IsPartialFailure(err)
	require.True(t, ok)
	assert.False(t, partial.ReconciliationRequired())
	identity := f.gateway.snapshot(created.ID)
	assert.Equal(t, "Ada Lovelace", identity.DisplayName)
	assert.Equal(t, []string{"STUDENT"}, identity.Roles)
	assert.Contains(t, f.repo.store.students, created.ID)
	assert.Empty(t, f.repo.store.coordinators)
}

func TestProvisioning_UpdateCommitFailure(t *testing.T) {
	t.Run("attributes are reverted", func(t *testing.T) {
		f := newProvisioningFixture(t)
		ctx := context.Background()
		created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
		require.NoError(t, err)
		f.repo.commitErr = errors.New("serialization failure")

		req := studentRequest(uintPtr(7))
		req.Password = ""
		req.Name = "Renamed"
		_, err = f.service.Update(ctx, created.ID, req)

		partial, ok := IsPartialFailure(err)
		require.True(t, ok)
		assert.False(t, partial.ReconciliationRequired())
		assert.Equal(t, "Ada Lovelace", f.gateway.snapshot(created.ID).DisplayName)
	})

	t.Run("credential reset requires reconciliation", func(t *testing.T) {
		f := newProvisioningFixture(t)
		ctx := context.Background()
		created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
		require.NoError(t, err)
		f.repo.commitErr = errors.New("serialization failure")

		req := studentRequest(uintPtr(7))
		req.Password = "rotated"
		_, err = f.service.Update(ctx, created.ID, req)

		partial, ok := IsPartialFailure(err)
		require.True(t, ok)
		assert.True(t, partial.ReconciliationRequired())
		assert.ErrorIs(t, partial.CompensationErr, errNotRevertible)
	})
}

func TestProvisioning_UpdateResolvesPlaceholder(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	f.gateway.seed("ext-1", "grace", models.RoleStudent)

	sweeper := NewReconciliationService(f.repo, nil, nil, nil, discardLogger())
	result, err := sweeper.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.NeedsCompletion)
	require.True(t, f.repo.store.students["ext-1"].PendingCompletion)

	req := studentRequest(uintPtr(7))
	req.Email = "grace@example.edu"
	req.Password = ""
	view, err := f.service.Update(ctx, "ext-1", req)
	require.NoError(t, err)

	assert.False(t, view.PendingCompletion)
	assert.Equal(t, models.SourceProvisioned, f.repo.store.students["ext-1"].Source)
	require.Len(t, f.repo.store.records, 1)
	assert.Equal(t, models.ReconciliationResolved, f.repo.store.records[0].Status)
	assert.NotNil(t, f.repo.store.records[0].ResolvedAt)
}

// ===== DELETE =====

func TestProvisioning_DeleteThenGetIsNotFound(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, created.ID))

	_, err = f.listing.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.repo.store.students)
	assert.Len(t, f.publisher.EventsOfType(events.IdentityDeprovisioned), 1)
}

func TestProvisioning_DeleteUnknownIdentity(t *testing.T) {
	f := newProvisioningFixture(t)
	assert.ErrorIs(t, f.service.Delete(context.Background(), "missing"), ErrUserNotFound)
}

func TestProvisioning_DeleteGatewayFailureKeepsProfile(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.gateway.failOn["DeleteIdentity"] = fmt.Errorf("reset: %w", repositories.ErrGatewayUnreachable)

	err = f.service.Delete(ctx, created.ID)

	require.ErrorIs(t, err, ErrGatewayUnreachable)
	assert.Contains(t, f.repo.store.students, created.ID)
	assert.NotNil(t, f.gateway.snapshot(created.ID))
}

func TestProvisioning_DeleteCommitFailureRequiresReconciliation(t *testing.T) {
	f := newProvisioningFixture(t)
	ctx := context.Background()
	created, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	require.NoError(t, err)
	f.repo.commitErr = errors.New("connection lost")

	err = f.service.Delete(ctx, created.ID)

	partial, ok := IsPartialFailure(err)
	require.True(t, ok)
	assert.True(t, partial.ReconciliationRequired())
	assert.Nil(t, f.gateway.snapshot(created.ID))
	assert.Contains(t, f.repo.store.students, created.ID)
	assert.Len(t, f.publisher.EventsOfType(events.IdentityReconciliationRequired), 1)
}

func TestProvisioning_UnreachableProviderFailsFast(t *testing.T) {
	f := newProvisioningFixture(t)
	f.gateway.seed("ext-1", "ada", models.RoleStudent)
	f.gateway.unreachable = true
	ctx := context.Background()
	before := f.gateway.callCount()

	_, err := f.service.Create(ctx, studentRequest(uintPtr(7)))
	assert.ErrorIs(t, err, ErrGatewayUnreachable)

	_, err = f.service.Update(ctx, "ext-1", studentRequest(uintPtr(7)))
	assert.ErrorIs(t, err, ErrGatewayUnreachable)

	err = f.service.Delete(ctx, "ext-1")
	assert.ErrorIs(t, err, ErrGatewayUnreachable)

	_, err = f.listing.ListAll(ctx)
	assert.ErrorIs(t, err, ErrGatewayUnreachable)

	_, err = NewReconciliationService(f.repo, nil, nil, nil, discardLogger()).Sync(ctx)
	assert.ErrorIs(t, err, ErrGatewayUnreachable)

	assert.Equal(t, before, f.gateway.callCount())
	assert.Equal(t, float64(1), f.outcomes("create", observability.OutcomeGatewayUnreachable))
}
