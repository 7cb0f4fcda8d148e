package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/academic-service/internal/cache"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	// Repository instances
	course         repositories.CourseRepository
	discipline     repositories.DisciplineRepository
	associations   repositories.AssociationLookup
	student        repositories.StudentProfileRepository
	professor      repositories.ProfessorProfileRepository
	coordinator    repositories.CoordinatorProfileRepository
	reconciliation repositories.ReconciliationRepository
	identity       repositories.IdentityGateway
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	Identity    repositories.IdentityGateway
}

// NewPostgreSQLRepository creates a new repository manager with all sub-repositories
func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	repo := newScopedRepository(config.DB, config.RedisClient, cache.NewCacheManager(config.RedisClient))

	// The identity provider is external and never joins a local transaction
	repo.identity = config.Identity

	return repo
}

func newScopedRepository(db *gorm.DB, redisClient *redis.Client, cacheManager *cache.CacheManager) *PostgreSQLRepository {
	repo := &PostgreSQLRepository{
		db:           db,
		redisClient:  redisClient,
		cacheManager: cacheManager,
	}

	repo.course = NewCoursePostgreSQL(db, redisClient)
	repo.discipline = NewDisciplinePostgreSQL(db, redisClient)
	repo.associations = NewAssociationLookup(repo.course, repo.discipline)
	repo.student = NewStudentProfilePostgreSQL(db)
	repo.professor = NewProfessorProfilePostgreSQL(db)
	repo.coordinator = NewCoordinatorProfilePostgreSQL(db)
	repo.reconciliation = NewReconciliationPostgreSQL(db)

	return repo
}

// Course returns the course repository
func (r *PostgreSQLRepository) Course() repositories.CourseRepository {
	return r.course
}

// Discipline returns the discipline repository
func (r *PostgreSQLRepository) Discipline() repositories.DisciplineRepository {
	return r.discipline
}

// Associations returns the read-only catalog lookup
func (r *PostgreSQLRepository) Associations() repositories.AssociationLookup {
	return r.associations
}

// StudentProfile returns the student profile repository
func (r *PostgreSQLRepository) StudentProfile() repositories.StudentProfileRepository {
	return r.student
}

// ProfessorProfile returns the professor profile repository
func (r *PostgreSQLRepository) ProfessorProfile() repositories.ProfessorProfileRepository {
	return r.professor
}

// CoordinatorProfile returns the coordinator profile repository
func (r *PostgreSQLRepository) CoordinatorProfile() repositories.CoordinatorProfileRepository {
	return r.coordinator
}

// Reconciliation returns the reconciliation record repository
func (r *PostgreSQLRepository) Reconciliation() repositories.ReconciliationRepository {
	return r.reconciliation
}

// Identity returns the identity provider gateway
func (r *PostgreSQLRepository) Identity() repositories.IdentityGateway {
	return r.identity
}

// WithTransaction executes a function within a database transaction
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := newScopedRepository(tx, r.redisClient, r.cacheManager)
		txRepo.identity = r.identity
		return fn(txRepo)
	})
}

// Ping checks the health of database and cache connections
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	// Check database connection
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Check cache connection
	if r.cacheManager.Enabled() {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}

	return nil
}

// Close closes all connections
func (r *PostgreSQLRepository) Close() error {
	// Close database connection
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// Close Redis connection
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}

	return nil
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize initializes all repositories and connections
func (rm *RepositoryManager) Initialize() error {
	// Validate configuration
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}
	if rm.config.Identity == nil {
		return fmt.Errorf("identity gateway is required")
	}

	// Test database connection
	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	// Test Redis connection if provided
	if rm.config.RedisClient != nil {
		if _, err := rm.config.RedisClient.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("Redis connection failed: %w", err)
		}
	}

	// Initialize repository
	rm.repo = NewPostgreSQLRepository(rm.config)

	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
