package provider

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/authlab/oidc-lab/pkg/idtoken"
	"github.com/authlab/oidc-lab/pkg/oauth2"
)

// GrantHandler issues the artifacts for one response_type combination and
// returns them as redirect parameters. Handlers are pure with respect to
// the transaction: all state they create lives in the injected stores.
type GrantHandler interface {
	ResponseType() string
	Grant(tx *Transaction) (url.Values, error)
}

// NormalizeResponseType canonicalizes a space-separated response_type so
// that "token code" and "code token" dispatch to the same handler.
func NormalizeResponseType(responseType string) string {
	parts := strings.Fields(responseType)
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func (s *Server) registerGrantHandlers() {
	code := &codeGrant{s}
	token := &tokenGrant{s}
	idToken := &idTokenGrant{s}

	handlers := []GrantHandler{
		code,
		token,
		idToken,
		&compositeGrant{"code id_token", []GrantHandler{code, idToken}},
		&compositeGrant{"code token", []GrantHandler{code, token}},
		&compositeGrant{"id_token token", []GrantHandler{idToken, token}},
		&compositeGrant{"code id_token token", []GrantHandler{code, idToken, token}},
	}

	s.grants = make(map[string]GrantHandler, len(handlers))
	for _, h := range handlers {
		s.grants[h.ResponseType()] = h
	}
}

// codeGrant issues a one-time authorization code bound to the client,
// redirect URI and user.
type codeGrant struct {
	server *Server
}

func (g *codeGrant) ResponseType() string { return "code" }

func (g *codeGrant) Grant(tx *Transaction) (url.Values, error) {
	code := &AuthorizationCode{
		Code:        oauth2.GenerateUID(16),
		ClientID:    tx.Client.ClientID,
		RedirectURI: tx.RedirectURI,
		UserID:      tx.User.ID,
		Scope:       tx.Scope,
		Nonce:       tx.Nonce,
		ExpiresAt:   time.Now().Add(g.server.codeTTL),
	}
	if err := g.server.codes.Save(code); err != nil {
		return nil, fmt.Errorf("unable to save authorization code: %w", err)
	}

	params := url.Values{}
	params.Set("code", code.Code)
	return params, nil
}

// tokenGrant issues an access token directly from the authorization
// endpoint (implicit flow).
type tokenGrant struct {
	server *Server
}

func (g *tokenGrant) ResponseType() string { return "token" }

func (g *tokenGrant) Grant(tx *Transaction) (url.Values, error) {
	token, err := g.server.issueAccessToken(tx.User.ID, tx.Client.ClientID, tx.Scope)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", token.Token)
	params.Set("token_type", "Bearer")
	params.Set("expires_in", strconv.Itoa(int(time.Until(token.ExpiresAt).Seconds())))
	return params, nil
}

// idTokenGrant issues a signed ID Token asserting the authentication.
type idTokenGrant struct {
	server *Server
}

func (g *idTokenGrant) ResponseType() string { return "id_token" }

func (g *idTokenGrant) Grant(tx *Transaction) (url.Values, error) {
	serialized, err := g.server.issueIDToken(tx.User.ID, tx.Client.ClientID, tx.Nonce)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("id_token", serialized)
	return params, nil
}

// compositeGrant implements the hybrid flows: each constituent handler is
// invoked independently and the results are merged into one response.
type compositeGrant struct {
	responseType string
	parts        []GrantHandler
}

func (g *compositeGrant) ResponseType() string { return g.responseType }

func (g *compositeGrant) Grant(tx *Transaction) (url.Values, error) {
	merged := url.Values{}
	for _, part := range g.parts {
		params, err := part.Grant(tx)
		if err != nil {
			return nil, err
		}
		for key, values := range params {
			for _, value := range values {
				merged.Set(key, value)
			}
		}
	}
	return merged, nil
}

func (s *Server) issueAccessToken(userID, clientID, scope string) (*AccessToken, error) {
	now := time.Now()
	token := &AccessToken{
		Token:     oauth2.GenerateUID(32),
		UserID:    userID,
		ClientID:  clientID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.tokens.Save(token); err != nil {
		return nil, fmt.Errorf("unable to save access token: %w", err)
	}
	return token, nil
}

func (s *Server) issueIDToken(userID, clientID, nonce string) (string, error) {
	now := time.Now()
	claims := &idtoken.Claims{
		Issuer:    s.issuer,
		Subject:   userID,
		Audience:  []string{clientID},
		ExpiresAt: now.Add(s.idTokenTTL).Unix(),
		IssuedAt:  now.Unix(),
		Nonce:     nonce,
	}
	serialized, err := idtoken.Sign(claims, s.sigPrK)
	if err != nil {
		return "", fmt.Errorf("unable to sign id token: %w", err)
	}
	return serialized, nil
}
