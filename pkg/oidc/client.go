package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/authlab/oidc-lab/pkg/idtoken"
	"github.com/authlab/oidc-lab/pkg/oauth2"
	"github.com/lestrrat-go/jwx/v2/jws"
)

type Config struct {
	Issuer       string   `yaml:"issuer" validate:"required,url"`
	ClientID     string   `yaml:"client_id" validate:"required"`
	ClientSecret string   `yaml:"client_secret" validate:"required"`
	RedirectURI  string   `yaml:"redirect_uri" validate:"required,url"`
	Scopes       []string `yaml:"scopes"`
}

// Client is a relying party for one provider. Discovery and key material
// are resolved lazily and cached across calls.
type Client struct {
	config     *Config
	discoverer *Discoverer
	keys       *KeyResolver
	httpClient *http.Client
}

// TokenSet is the outcome of a completed authorization code flow.
type TokenSet struct {
	AccessToken string
	IDToken     *idtoken.Claims
	Userinfo    map[string]any
}

func NewClient(config *Config) *Client {
	return &Client{
		config:     config,
		discoverer: NewDiscoverer(),
		keys:       NewKeyResolver(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the authorization request URL the user agent is sent
// to. Discovery must have succeeded at least once before.
func (c *Client) AuthCodeURL(ctx context.Context, state string, nonce string) (string, error) {
	doc, err := c.discoverer.Discover(ctx, c.config.Issuer)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.config.ClientID)
	query.Set("redirect_uri", c.config.RedirectURI)
	query.Set("scope", strings.Join(c.config.Scopes, " "))
	query.Set("state", state)
	query.Set("nonce", nonce)

	return doc.AuthorizationEndpoint + "?" + query.Encode(), nil
}

// Exchange trades an authorization code for a token response at the
// provider's token endpoint.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.TokenResponse, error) {
	doc, err := c.discoverer.Discover(ctx, c.config.Issuer)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", c.config.RedirectURI)
	params.Set("client_id", c.config.ClientID)
	params.Set("client_secret", c.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, doc.TokenEndpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &TokenRequestError{cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TokenRequestError{cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TokenRequestError{cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr oauth2.Error
		if err := json.Unmarshal(body, &oauthErr); err != nil {
			return nil, &TokenRequestError{cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		return nil, &TokenRequestError{cause: &oauthErr}
	}

	var tokenResponse oauth2.TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, &TokenRequestError{cause: fmt.Errorf("unable to decode token response: %w", err)}
	}

	return &tokenResponse, nil
}

// VerifyIDToken checks the signature against the provider's published
// keys and validates issuer and audience. The caller compares the nonce.
func (c *Client) VerifyIDToken(ctx context.Context, serialized string) (*idtoken.Claims, error) {
	doc, err := c.discoverer.Discover(ctx, c.config.Issuer)
	if err != nil {
		return nil, err
	}

	message, err := jws.ParseString(serialized)
	if err != nil {
		return nil, &TokenValidationError{Reason: "malformed token", cause: err}
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return nil, &TokenValidationError{Reason: "token carries no signature"}
	}
	kid := signatures[0].ProtectedHeaders().KeyID()

	key, err := c.keys.ResolveKey(ctx, doc.JwksURI, kid)
	if err != nil {
		return nil, &TokenValidationError{Reason: "unable to resolve signing key", cause: err}
	}

	claims, err := idtoken.Verify(serialized, key)
	if err != nil {
		return nil, &TokenValidationError{Reason: "verification failed", cause: err}
	}

	if claims.Issuer != doc.Issuer {
		return nil, &TokenValidationError{
			Reason: fmt.Sprintf("issuer mismatch: %q", claims.Issuer),
		}
	}

	audienceMatch := false
	for _, aud := range claims.Audience {
		if aud == c.config.ClientID {
			audienceMatch = true
			break
		}
	}
	if !audienceMatch {
		return nil, &TokenValidationError{
			Reason: fmt.Sprintf("token not intended for this client: %v", claims.Audience),
		}
	}

	return claims, nil
}

// Userinfo fetches the claims behind an access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (map[string]any, error) {
	doc, err := c.discoverer.Discover(ctx, c.config.Issuer)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.UserinfoEndpoint, nil)
	if err != nil {
		return nil, &UserinfoRequestError{cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UserinfoRequestError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UserinfoRequestError{StatusCode: resp.StatusCode}
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &UserinfoRequestError{cause: err}
	}

	return info, nil
}

// AuthorizationCodeFlow completes the back-channel half of the flow:
// exchange the code, verify the ID token if one came back, fetch
// userinfo. Any step failing aborts the whole flow.
func (c *Client) AuthorizationCodeFlow(ctx context.Context, code string) (*TokenSet, error) {
	tokenResponse, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	set := &TokenSet{AccessToken: tokenResponse.AccessToken}

	if tokenResponse.IDToken != "" {
		claims, err := c.VerifyIDToken(ctx, tokenResponse.IDToken)
		if err != nil {
			return nil, err
		}
		set.IDToken = claims
	}

	info, err := c.Userinfo(ctx, tokenResponse.AccessToken)
	if err != nil {
		return nil, err
	}
	set.Userinfo = info

	return set, nil
}
