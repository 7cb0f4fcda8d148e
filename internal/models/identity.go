package models

// ExternalIdentity is an identity as held by the identity provider. It is never
// cached beyond a single request.
type ExternalIdentity struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Enabled     bool     `json:"enabled"`
	Roles       []string `json:"roles"`
}

// IdentityAttributes are the writable attributes of an identity.
type IdentityAttributes struct {
	Username    string
	Email       string
	DisplayName string
	Enabled     bool
}
