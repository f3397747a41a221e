package provider

import "time"

// Client is a registered OAuth2 client. Immutable once registered;
// looked up by internal ID and by the protocol-facing client_id.
type Client struct {
	ID           string `yaml:"id" json:"id" validate:"required"`
	ClientID     string `yaml:"client_id" json:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" json:"-" validate:"required"`
	Name         string `yaml:"name" json:"name"`
}

// User is a registry entry of a resource owner. Passwords are compared in
// plaintext; this is a teaching setup, not a production credential store.
type User struct {
	ID       string `yaml:"id" json:"id" validate:"required"`
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"-" validate:"required"`
	Name     string `yaml:"name" json:"name"`
}

// AuthorizationCode binds a one-time code to the client, redirect URI and
// user it was issued for. Deleted on first successful exchange.
type AuthorizationCode struct {
	Code        string
	ClientID    string
	RedirectURI string
	UserID      string
	Scope       string
	Nonce       string
	ExpiresAt   time.Time
}

func (c *AuthorizationCode) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

// AccessToken is an opaque bearer credential. UserID is empty for tokens
// issued through the client_credentials grant.
type AccessToken struct {
	Token     string
	UserID    string
	ClientID  string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t *AccessToken) Expired() bool {
	return time.Now().After(t.ExpiresAt)
}
