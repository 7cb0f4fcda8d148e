package casdoor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/observability"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string

	// MaxConcurrency bounds the number of client handles in use at once.
	MaxConcurrency int64
	// ProbeTimeout bounds a single reachability probe.
	ProbeTimeout time.Duration
	// ProbeRetries is the number of extra probe attempts before giving up.
	ProbeRetries uint64
}

// casdoorAPI is the subset of the Casdoor admin client used by the gateway.
type casdoorAPI interface {
	GetUsers() ([]*casdoorsdk.User, error)
	GetUserByUserId(userId string) (*casdoorsdk.User, error)
	AddUser(user *casdoorsdk.User) (bool, error)
	UpdateUserById(id string, user *casdoorsdk.User) (bool, error)
	UpdateUserForColumns(user *casdoorsdk.User, columns []string) (bool, error)
	DeleteUser(user *casdoorsdk.User) (bool, error)
	GetRoles() ([]*casdoorsdk.Role, error)
	GetRole(name string) (*casdoorsdk.Role, error)
	UpdateRole(role *casdoorsdk.Role) (bool, error)
}

// IdentityCasdoor implements repositories.IdentityGateway over the Casdoor
// admin API.
type IdentityCasdoor struct {
	api     casdoorAPI
	config  CasdoorConfig
	handles *semaphore.Weighted
	http    *http.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewIdentityCasdoor(config CasdoorConfig, metrics *observability.Metrics, logger *slog.Logger) repositories.IdentityGateway {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return newIdentityCasdoor(client, config, metrics, logger)
}

func newIdentityCasdoor(api casdoorAPI, config CasdoorConfig, metrics *observability.Metrics, logger *slog.Logger) *IdentityCasdoor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IdentityCasdoor{
		api:     api,
		config:  config,
		handles: semaphore.NewWeighted(config.MaxConcurrency),
		http:    &http.Client{Timeout: config.ProbeTimeout},
		metrics: metrics,
		logger:  logger,
	}
}

// ===== CLIENT HANDLES =====

// withHandle runs fn with a client handle. The handle is released on every
// exit path, including panics raised by fn.
func (g *IdentityCasdoor) withHandle(ctx context.Context, operation string, fn func(api casdoorAPI) error) (err error) {
	if err := g.handles.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: acquire client handle: %w", operation, err)
	}
	defer g.handles.Release(1)

	start := time.Now()
	defer func() {
		g.metrics.RecordGatewayCall(operation, callStatus(err), start)
	}()

	return fn(g.api)
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repositories.ErrGatewayUnreachable):
		return "unreachable"
	case errors.Is(err, repositories.ErrNotFound):
		return "not_found"
	default:
		return "rejected"
	}
}

// classify maps a Casdoor client error to the gateway error taxonomy.
func classify(operation string, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", operation, repositories.ErrGatewayUnreachable, err)
	}
	return &repositories.GatewayRejectedError{Operation: operation, Message: err.Error()}
}

// ===== CONVERSION METHODS =====

func (g *IdentityCasdoor) memberKey(user *casdoorsdk.User) string {
	owner := user.Owner
	if owner == "" {
		owner = g.config.OrganizationName
	}
	return owner + "/" + user.Name
}

func convertCasdoorUser(user *casdoorsdk.User, roles []string) *models.ExternalIdentity {
	return &models.ExternalIdentity{
		ID:          user.Id,
		Username:    user.Name,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Enabled:     !user.IsForbidden,
		Roles:       roles,
	}
}

// rolesByMember indexes role names by "owner/name" member key.
func rolesByMember(roles []*casdoorsdk.Role) map[string][]string {
	index := make(map[string][]string)
	for _, role := range roles {
		if role == nil {
			continue
		}
		for _, member := range role.Users {
			index[member] = append(index[member], role.Name)
		}
	}
	return index
}

func (g *IdentityCasdoor) lookupUser(api casdoorAPI, operation, id string) (*casdoorsdk.User, error) {
	user, err := api.GetUserByUserId(id)
	if err != nil {
		return nil, classify(operation, err)
	}
	if user == nil || user.Id == "" {
		return nil, fmt.Errorf("%s: identity %s: %w", operation, id, repositories.ErrNotFound)
	}
	return user, nil
}

// ===== IDENTITY OPERATIONS =====

func (g *IdentityCasdoor) CreateIdentity(ctx context.Context, attrs models.IdentityAttributes, credential string) (string, error) {
	id := uuid.New().String()

	err := g.withHandle(ctx, "create_identity", func(api casdoorAPI) error {
		user := &casdoorsdk.User{
			Owner:       g.config.OrganizationName,
			Name:        attrs.Username,
			Id:          id,
			DisplayName: attrs.DisplayName,
			Email:       attrs.Email,
			Password:    credential,
			IsForbidden: !attrs.Enabled,
			CreatedTime: time.Now().UTC().Format(time.RFC3339),
		}

		affected, err := api.AddUser(user)
		if err != nil {
			return classify("create identity", err)
		}
		if !affected {
			return &repositories.GatewayRejectedError{
				Operation: "create identity",
				Status:    "not_created",
				Message:   fmt.Sprintf("identity %s was not created", attrs.Username),
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	g.logger.Info("Identity created", "identity_id", id, "username", attrs.Username)
	return id, nil
}

func (g *IdentityCasdoor) GetIdentity(ctx context.Context, id string) (*models.ExternalIdentity, error) {
	var identity *models.ExternalIdentity
	err := g.withHandle(ctx, "get_identity", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "get identity", id)
		if err != nil {
			return err
		}
		roles, err := api.GetRoles()
		if err != nil {
			return classify("get identity roles", err)
		}
		identity = convertCasdoorUser(user, g.effectiveRoles(user, roles))
		return nil
	})
	return identity, err
}

func (g *IdentityCasdoor) ListIdentities(ctx context.Context) ([]*models.ExternalIdentity, error) {
	var identities []*models.ExternalIdentity
	err := g.withHandle(ctx, "list_identities", func(api casdoorAPI) error {
		users, err := api.GetUsers()
		if err != nil {
			return classify("list identities", err)
		}
		roles, err := api.GetRoles()
		if err != nil {
			return classify("list roles", err)
		}

		index := rolesByMember(roles)
		identities = make([]*models.ExternalIdentity, 0, len(users))
		for _, user := range users {
			if user == nil || user.Id == "" {
				continue
			}
			names := index[g.memberKey(user)]
			if user.IsAdmin && !slices.Contains(names, string(models.RoleAdmin)) {
				names = append(names, string(models.RoleAdmin))
			}
			identities = append(identities, convertCasdoorUser(user, names))
		}
		return nil
	})
	return identities, err
}

func (g *IdentityCasdoor) UpdateIdentity(ctx context.Context, id string, attrs models.IdentityAttributes) error {
	return g.withHandle(ctx, "update_identity", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "update identity", id)
		if err != nil {
			return err
		}
		previous := g.memberKey(user)

		user.Name = attrs.Username
		user.Email = attrs.Email
		user.DisplayName = attrs.DisplayName
		user.IsForbidden = !attrs.Enabled
		user.UpdatedTime = time.Now().UTC().Format(time.RFC3339)

		if _, err := api.UpdateUserById(previous, user); err != nil {
			return classify("update identity", err)
		}

		// Role membership is keyed by name, so a rename must carry it along.
		if current := g.memberKey(user); current != previous {
			if err := g.renameMember(api, previous, current); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *IdentityCasdoor) renameMember(api casdoorAPI, previous, current string) error {
	roles, err := api.GetRoles()
	if err != nil {
		return classify("list roles", err)
	}
	for _, role := range roles {
		if role == nil || !slices.Contains(role.Users, previous) {
			continue
		}
		role.Users = slices.DeleteFunc(role.Users, func(member string) bool { return member == previous })
		role.Users = append(role.Users, current)
		if err := updateRole(api, "update role membership", role); err != nil {
			return err
		}
	}
	return nil
}

// dropMember removes member from every role that lists it.
func (g *IdentityCasdoor) dropMember(api casdoorAPI, member string) error {
	roles, err := api.GetRoles()
	if err != nil {
		return classify("list roles", err)
	}
	for _, role := range roles {
		if role == nil || !slices.Contains(role.Users, member) {
			continue
		}
		role.Users = slices.DeleteFunc(role.Users, func(m string) bool { return m == member })
		if err := updateRole(api, "revoke role membership", role); err != nil {
			return err
		}
	}
	return nil
}

// updateRole treats an update that changed nothing as a rejection.
func updateRole(api casdoorAPI, operation string, role *casdoorsdk.Role) error {
	affected, err := api.UpdateRole(role)
	if err != nil {
		return classify(operation, err)
	}
	if !affected {
		return &repositories.GatewayRejectedError{
			Operation: operation,
			Status:    "not_updated",
			Message:   fmt.Sprintf("role %s was not updated", role.Name),
		}
	}
	return nil
}

func (g *IdentityCasdoor) ResetCredential(ctx context.Context, id, credential string) error {
	return g.withHandle(ctx, "reset_credential", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "reset credential", id)
		if err != nil {
			return err
		}
		user.Password = credential
		if _, err := api.UpdateUserForColumns(user, []string{"password"}); err != nil {
			return classify("reset credential", err)
		}
		return nil
	})
}

func (g *IdentityCasdoor) DeleteIdentity(ctx context.Context, id string) error {
	err := g.withHandle(ctx, "delete_identity", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "delete identity", id)
		if err != nil {
			return err
		}
		// Grants are keyed by name and would pass to a later identity
		// with the same username.
		if err := g.dropMember(api, g.memberKey(user)); err != nil {
			return err
		}
		if _, err := api.DeleteUser(user); err != nil {
			return classify("delete identity", err)
		}
		return nil
	})
	if err == nil {
		g.logger.Info("Identity deleted", "identity_id", id)
	}
	return err
}

// ===== ROLE OPERATIONS =====

func (g *IdentityCasdoor) AssignRole(ctx context.Context, id string, role models.Role) error {
	return g.withHandle(ctx, "assign_role", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "assign role", id)
		if err != nil {
			return err
		}
		providerRole, err := g.lookupRole(api, "assign role", role)
		if err != nil {
			return err
		}

		member := g.memberKey(user)
		if slices.Contains(providerRole.Users, member) {
			return nil
		}
		providerRole.Users = append(providerRole.Users, member)
		return updateRole(api, "assign role", providerRole)
	})
}

func (g *IdentityCasdoor) RemoveRole(ctx context.Context, id string, role models.Role) error {
	return g.withHandle(ctx, "remove_role", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "remove role", id)
		if err != nil {
			return err
		}
		providerRole, err := g.lookupRole(api, "remove role", role)
		if err != nil {
			return err
		}

		member := g.memberKey(user)
		if !slices.Contains(providerRole.Users, member) {
			return nil
		}
		providerRole.Users = slices.DeleteFunc(providerRole.Users, func(m string) bool { return m == member })
		return updateRole(api, "remove role", providerRole)
	})
}

func (g *IdentityCasdoor) lookupRole(api casdoorAPI, operation string, role models.Role) (*casdoorsdk.Role, error) {
	providerRole, err := api.GetRole(string(role))
	if err != nil {
		return nil, classify(operation, err)
	}
	if providerRole == nil || providerRole.Name == "" {
		return nil, &repositories.GatewayRejectedError{
			Operation: operation,
			Status:    "unknown_role",
			Message:   fmt.Sprintf("role %s does not exist", role),
		}
	}
	return providerRole, nil
}

func (g *IdentityCasdoor) EffectiveRoles(ctx context.Context, id string) ([]string, error) {
	var names []string
	err := g.withHandle(ctx, "effective_roles", func(api casdoorAPI) error {
		user, err := g.lookupUser(api, "effective roles", id)
		if err != nil {
			return err
		}
		roles, err := api.GetRoles()
		if err != nil {
			return classify("effective roles", err)
		}
		names = g.effectiveRoles(user, roles)
		return nil
	})
	return names, err
}

func (g *IdentityCasdoor) effectiveRoles(user *casdoorsdk.User, roles []*casdoorsdk.Role) []string {
	names := rolesByMember(roles)[g.memberKey(user)]
	if user.IsAdmin && !slices.Contains(names, string(models.RoleAdmin)) {
		names = append(names, string(models.RoleAdmin))
	}
	return names
}

func (g *IdentityCasdoor) ListRoles(ctx context.Context) ([]string, error) {
	var names []string
	err := g.withHandle(ctx, "list_roles", func(api casdoorAPI) error {
		roles, err := api.GetRoles()
		if err != nil {
			return classify("list roles", err)
		}
		for _, role := range roles {
			if role != nil && role.Name != "" {
				names = append(names, role.Name)
			}
		}
		return nil
	})
	return names, err
}

// ===== REACHABILITY =====

// IsReachable probes the unauthenticated health endpoint, retrying with
// exponential backoff up to ProbeRetries times.
func (g *IdentityCasdoor) IsReachable(ctx context.Context) bool {
	probeURL := strings.TrimRight(g.config.Endpoint, "/") + "/api/health"

	probe := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health probe returned %d", resp.StatusCode)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, g.config.ProbeRetries), ctx)

	err := backoff.Retry(probe, retry)
	g.metrics.SetGatewayReachable(err == nil)
	if err != nil {
		g.logger.Warn("Identity provider not reachable", "endpoint", g.config.Endpoint, "error", err)
		return false
	}
	return true
}
