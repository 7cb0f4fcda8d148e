package repositories

import (
	"context"

	"github.com/SAP-F-2025/academic-service/internal/models"
)

// IdentityGateway is the client of the external identity provider's
// administrative API. Network failures surface as ErrGatewayUnreachable and
// provider refusals as *GatewayRejectedError.
type IdentityGateway interface {
	// CreateIdentity creates an enabled identity with its credential set and
	// returns the provider-assigned id.
	CreateIdentity(ctx context.Context, attrs models.IdentityAttributes, credential string) (string, error)
	GetIdentity(ctx context.Context, id string) (*models.ExternalIdentity, error)
	ListIdentities(ctx context.Context) ([]*models.ExternalIdentity, error)
	UpdateIdentity(ctx context.Context, id string, attrs models.IdentityAttributes) error
	ResetCredential(ctx context.Context, id, credential string) error
	DeleteIdentity(ctx context.Context, id string) error

	AssignRole(ctx context.Context, id string, role models.Role) error
	RemoveRole(ctx context.Context, id string, role models.Role) error
	EffectiveRoles(ctx context.Context, id string) ([]string, error)
	ListRoles(ctx context.Context) ([]string, error)

	// IsReachable probes the provider without authentication.
	IsReachable(ctx context.Context) bool
}
