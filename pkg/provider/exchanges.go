package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/authlab/oidc-lab/pkg/oauth2"
	"github.com/labstack/echo/v4"
)

// TokenEndpoint handles POST /oauth/token, dispatched on grant_type.
// Every exchange authenticates the calling client before touching any
// grant material.
func (s *Server) TokenEndpoint(c echo.Context) error {
	r := c.Request()
	if !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm) {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: "content type must be application/x-www-form-urlencoded",
		}
	}
	if err := r.ParseForm(); err != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: fmt.Errorf("unable to parse form: %w", err).Error(),
		}
	}

	grantType := r.FormValue("grant_type")
	switch grantType {
	case oauth2.GrantTypeAuthorizationCode:
		return s.exchangeAuthorizationCode(c)
	case oauth2.GrantTypePassword:
		return s.exchangePassword(c)
	case oauth2.GrantTypeClientCredentials:
		return s.exchangeClientCredentials(c)
	default:
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "unsupported_grant_type",
			Description: fmt.Sprintf("unsupported grant_type: %q", grantType),
		}
	}
}

// verifyClient authenticates the caller's client credentials, presented
// either as form fields or as HTTP basic auth.
func (s *Server) verifyClient(c echo.Context) (*Client, *oauth2.Error) {
	clientID := c.FormValue("client_id")
	clientSecret := c.FormValue("client_secret")

	if clientID == "" {
		var ok bool
		clientID, clientSecret, ok = c.Request().BasicAuth()
		if !ok {
			return nil, &oauth2.Error{
				HttpStatus:  http.StatusUnauthorized,
				Code:        "invalid_client",
				Description: "missing client credentials",
			}
		}
	}

	client, err := s.clients.FindByClientID(clientID)
	if err != nil {
		return nil, &oauth2.Error{
			HttpStatus:  http.StatusUnauthorized,
			Code:        "invalid_client",
			Description: "unknown client",
		}
	}

	if client.ClientSecret != clientSecret {
		return nil, &oauth2.Error{
			HttpStatus:  http.StatusUnauthorized,
			Code:        "invalid_client",
			Description: "invalid client credentials",
		}
	}

	return client, nil
}

func (s *Server) exchangeAuthorizationCode(c echo.Context) error {
	client, clientErr := s.verifyClient(c)
	if clientErr != nil {
		return clientErr
	}

	var code string
	var redirectURI string
	binderr := echo.FormFieldBinder(c).
		MustString("code", &code).
		MustString("redirect_uri", &redirectURI).
		BindError()
	if binderr != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: binderr.Error(),
		}
	}

	record, err := s.codes.Find(code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &oauth2.Error{
				HttpStatus:  http.StatusBadRequest,
				Code:        "invalid_grant",
				Description: "unknown authorization code",
			}
		}
		return fmt.Errorf("unable to look up authorization code: %w", err)
	}

	if record.Expired() {
		s.codes.Delete(code)
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "authorization code expired",
		}
	}

	if record.ClientID != client.ClientID {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "authorization code was issued to another client",
		}
	}

	if record.RedirectURI != redirectURI {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "redirect_uri mismatch",
		}
	}

	// one-time use: invalidate before issuing so the code can never be
	// replayed, even if token issuance fails
	if err := s.codes.Delete(code); err != nil {
		return fmt.Errorf("unable to invalidate authorization code: %w", err)
	}

	token, err := s.issueAccessToken(record.UserID, record.ClientID, record.Scope)
	if err != nil {
		return err
	}

	response := &oauth2.TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
		Scope:       token.Scope,
	}

	if hasOpenidScope(record.Scope) {
		idToken, err := s.issueIDToken(record.UserID, record.ClientID, record.Nonce)
		if err != nil {
			return err
		}
		response.IDToken = idToken
	}

	return tokenJSON(c, response)
}

func (s *Server) exchangePassword(c echo.Context) error {
	client, clientErr := s.verifyClient(c)
	if clientErr != nil {
		return clientErr
	}

	var username string
	var password string
	binderr := echo.FormFieldBinder(c).
		MustString("username", &username).
		MustString("password", &password).
		BindError()
	if binderr != nil {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_request",
			Description: binderr.Error(),
		}
	}

	user, err := s.users.FindByUsername(username)
	if err != nil || user.Password != password {
		return &oauth2.Error{
			HttpStatus:  http.StatusBadRequest,
			Code:        "invalid_grant",
			Description: "invalid resource owner credentials",
		}
	}

	token, err := s.issueAccessToken(user.ID, client.ClientID, c.FormValue("scope"))
	if err != nil {
		return err
	}

	return tokenJSON(c, &oauth2.TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
		Scope:       token.Scope,
	})
}

func (s *Server) exchangeClientCredentials(c echo.Context) error {
	client, clientErr := s.verifyClient(c)
	if clientErr != nil {
		return clientErr
	}

	// no user behind this grant: the token is bound to the client alone
	token, err := s.issueAccessToken("", client.ClientID, c.FormValue("scope"))
	if err != nil {
		return err
	}

	return tokenJSON(c, &oauth2.TokenResponse{
		AccessToken: token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(token.ExpiresAt).Seconds()),
		Scope:       token.Scope,
	})
}

// tokenJSON writes a successful token response with the cache headers
// required by RFC 6749 section 5.1.
func tokenJSON(c echo.Context, response *oauth2.TokenResponse) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")
	return c.JSON(http.StatusOK, response)
}

func hasOpenidScope(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if s == "openid" {
			return true
		}
	}
	return false
}
