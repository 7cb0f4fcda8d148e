package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/academic-service/internal/config"
	"github.com/SAP-F-2025/academic-service/internal/models"
)

// Principal is the authenticated caller extracted from a Casdoor token.
type Principal struct {
	ID       string
	Username string
	Email    string
	Name     string
	Roles    []string
	IsAdmin  bool
}

// HasRole reports whether the caller holds role. Provider administrators hold
// every role.
func (p *Principal) HasRole(role models.Role) bool {
	if p.IsAdmin {
		return true
	}
	for _, name := range p.Roles {
		if parsed, err := models.ParseRole(name); err == nil && parsed == role {
			return true
		}
	}
	return false
}

type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parser tokenParser
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig) *CasdoorAuthMiddleware {
	gateway := cfg.GatewayConfig()
	client := casdoorsdk.NewClient(
		gateway.Endpoint,
		gateway.ClientID,
		gateway.ClientSecret,
		gateway.Certificate,
		gateway.OrganizationName,
		gateway.ApplicationName,
	)
	return &CasdoorAuthMiddleware{parser: client}
}

// AuthMiddleware rejects requests without a valid bearer token.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "authorization header missing or malformed")
			return
		}

		claims, err := cam.parser.ParseJwtToken(token)
		if err != nil {
			abortUnauthorized(c, fmt.Sprintf("invalid token: %v", err))
			return
		}

		principal, err := principalFromClaims(claims)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		setPrincipal(c, principal)
		c.Next()
	}
}

// RequireRoleMiddleware checks if user has one of the required roles
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := GetPrincipalFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Access denied",
				Code:    "FORBIDDEN",
				Details: err.Error(),
			})
			return
		}

		for _, role := range requiredRoles {
			if principal.HasRole(role) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Code:    "FORBIDDEN",
			Details: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Message: "Unauthorized",
		Code:    "UNAUTHORIZED",
		Details: details,
	})
}

func principalFromClaims(claims *casdoorsdk.Claims) (*Principal, error) {
	if claims == nil || claims.User.Id == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	roles := make([]string, 0, len(claims.User.Roles))
	for _, role := range claims.User.Roles {
		if role != nil && role.Name != "" {
			roles = append(roles, role.Name)
		}
	}

	return &Principal{
		ID:       claims.User.Id,
		Username: claims.User.Name,
		Email:    claims.User.Email,
		Name:     claims.User.DisplayName,
		Roles:    roles,
		IsAdmin:  claims.User.IsAdmin,
	}, nil
}

func setPrincipal(c *gin.Context, principal *Principal) {
	c.Set("user", principal)
	c.Set("user_id", principal.ID)
	c.Set("user_email", principal.Email)
	if principal.IsAdmin {
		c.Set("user_role", models.RoleAdmin)
	} else if role, ok := models.HighestPriorityRole(principal.Roles); ok {
		c.Set("user_role", role)
	}
}

// GetPrincipalFromContext extracts the caller set by AuthMiddleware.
func GetPrincipalFromContext(c *gin.Context) (*Principal, error) {
	value, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	principal, ok := value.(*Principal)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return principal, nil
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}
