package repositories

import "context"

// Repository aggregates the local stores and the identity gateway.
type Repository interface {
	// Academic catalog
	Course() CourseRepository
	Discipline() DisciplineRepository
	Associations() AssociationLookup

	// Local profile stores
	StudentProfile() StudentProfileRepository
	ProfessorProfile() ProfessorProfileRepository
	CoordinatorProfile() CoordinatorProfileRepository

	// Reconciliation bookkeeping
	Reconciliation() ReconciliationRepository

	// External identity provider (never part of a local transaction)
	Identity() IdentityGateway

	// Transaction support. Local writes made through the Repository passed to
	// fn are committed only when fn returns nil.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
