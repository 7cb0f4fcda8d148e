package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/academic-service/internal/events"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
	"github.com/SAP-F-2025/academic-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Cron spec of the scheduled sweep, empty disables it
	SyncSchedule string

	// Time given to a running sweep on shutdown
	ShutdownTimeout time.Duration
}

// ServiceDependencies are the collaborators shared by every service.
type ServiceDependencies struct {
	Repo      repositories.Repository
	Validator *validator.Validator
	Publisher events.EventPublisher
	Metrics   *observability.Metrics
	SweepLock SweepLocker
	Logger    *slog.Logger
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDependencies
	config ServiceManagerConfig
	logger *slog.Logger

	// Service instances
	provisioningService   ProvisioningService
	reconciliationService ReconciliationService
	listingService        UserListingService
	catalogService        CatalogService
	exportService         ExportService
	scheduler             *ReconciliationScheduler

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	return &serviceManager{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices() error {
	d := sm.deps
	if d.Repo == nil {
		return fmt.Errorf("repository is required")
	}

	sm.provisioningService = NewProvisioningService(d.Repo, d.Validator, d.Publisher, d.Metrics, d.Logger)
	sm.logger.Info("Provisioning service initialized")

	sm.reconciliationService = NewReconciliationService(d.Repo, d.SweepLock, d.Publisher, d.Metrics, d.Logger)
	sm.logger.Info("Reconciliation service initialized")

	sm.listingService = NewUserListingService(d.Repo, d.Logger)
	sm.logger.Info("User listing service initialized")

	sm.catalogService = NewCatalogService(d.Repo, d.Validator, d.Logger)
	sm.logger.Info("Catalog service initialized")

	sm.exportService = NewExportService(sm.listingService, d.Logger)
	sm.logger.Info("Export service initialized")

	scheduler, err := NewReconciliationScheduler(sm.config.SyncSchedule, sm.reconciliationService, d.Logger)
	if err != nil {
		return err
	}
	sm.scheduler = scheduler
	return nil
}

// Service getters
func (sm *serviceManager) Provisioning() ProvisioningService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.provisioningService
}

func (sm *serviceManager) Reconciliation() ReconciliationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.reconciliationService
}

func (sm *serviceManager) Listing() UserListingService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.listingService
}

func (sm *serviceManager) Catalog() CatalogService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.catalogService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.exportService
}

// Scheduler is nil when no sync schedule is configured.
func (sm *serviceManager) Scheduler() *ReconciliationScheduler {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.scheduler
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	stopCtx, cancel := context.WithTimeout(ctx, sm.config.ShutdownTimeout)
	defer cancel()
	sm.scheduler.Stop(stopCtx)

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
