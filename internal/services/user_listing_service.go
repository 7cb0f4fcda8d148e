package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

type userListingService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewUserListingService(repo repositories.Repository, logger *slog.Logger) UserListingService {
	return &userListingService{repo: repo, logger: logger}
}

// ListAll returns every identity whose highest-priority role is relevant,
// merged with its local profile.
func (s *userListingService) ListAll(ctx context.Context) ([]*models.UserView, error) {
	if err := ensureReachable(ctx, s.repo.Identity()); err != nil {
		return nil, err
	}
	identities, err := s.repo.Identity().ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	views := make([]*models.UserView, 0, len(identities))
	for _, identity := range identities {
		view, err := s.describe(ctx, identity)
		if err != nil {
			return nil, err
		}
		if view != nil {
			views = append(views, view)
		}
	}
	return views, nil
}

// GetByID reports ErrUserNotFound for identities without a relevant role.
func (s *userListingService) GetByID(ctx context.Context, id string) (*models.UserView, error) {
	identity, err := s.repo.Identity().GetIdentity(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	view, err := s.describe(ctx, identity)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, ErrUserNotFound
	}
	return view, nil
}

// describe returns nil for identities hidden from the listing.
func (s *userListingService) describe(ctx context.Context, identity *models.ExternalIdentity) (*models.UserView, error) {
	role, ok := models.HighestPriorityRole(identity.Roles)
	if !ok {
		return nil, nil
	}

	binding, mirrored := roleBindings[role]
	if !mirrored {
		return composeView(identity, role, nil), nil
	}

	profile, err := binding.find(ctx, s.repo, identity.ID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load %s profile: %w", role, err)
		}
		s.logger.Debug("Identity has no local profile", "identity_id", identity.ID, "role", role)
		profile = nil
	}
	return composeView(identity, role, profile), nil
}

func (s *userListingService) ListProviderRoles(ctx context.Context) ([]string, error) {
	roles, err := s.repo.Identity().ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider roles: %w", err)
	}
	return roles, nil
}

func (s *userListingService) IsProviderReachable(ctx context.Context) bool {
	return s.repo.Identity().IsReachable(ctx)
}
