package provider

import (
	"errors"

	"github.com/labstack/echo/v4"
)

var ErrAuthenticationRequired = errors.New("authentication required")

// Authenticator resolves the resource owner behind an authorization
// request. The default implementation reads HTTP basic auth; an embedding
// application can substitute session cookies or any other scheme.
type Authenticator interface {
	Authenticate(c echo.Context) (*User, error)
}

type BasicAuthenticator struct {
	Users UserStore
}

func (a *BasicAuthenticator) Authenticate(c echo.Context) (*User, error) {
	username, password, ok := c.Request().BasicAuth()
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	user, err := a.Users.FindByUsername(username)
	if err != nil || user.Password != password {
		return nil, ErrAuthenticationRequired
	}

	return user, nil
}
