package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/authlab/oidc-lab/pkg/idtoken"
	"github.com/authlab/oidc-lab/pkg/provider"
	"github.com/labstack/echo/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// newTestProvider runs a full authorization server on a local listener
// and returns its base URL as issuer.
func newTestProvider(t *testing.T) string {
	t.Helper()

	root := echo.New()
	ts := httptest.NewServer(root)
	t.Cleanup(ts.Close)

	server, err := provider.New(
		provider.WithIssuer(ts.URL),
		provider.WithClients(
			&provider.Client{ID: "1", ClientID: "abc123", ClientSecret: "secret1", Name: "Example App"},
		),
		provider.WithUsers(
			&provider.User{ID: "1", Username: "bob", Password: "secret", Name: "Bob Smith"},
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	server.MountRoutes(root)

	return ts.URL
}

func TestDiscovererCachesDocument(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(&DiscoveryDocument{Issuer: "http://example.test"})
	}))
	defer ts.Close()

	discoverer := NewDiscoverer()
	for i := 0; i < 3; i++ {
		if _, err := discoverer.Discover(context.Background(), ts.URL); err != nil {
			t.Fatal(err)
		}
	}
	if hits != 1 {
		t.Fatalf("expected 1 fetch, got %d", hits)
	}
}

func TestDiscovererRetriesAfterFailure(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(&DiscoveryDocument{Issuer: "http://example.test"})
	}))
	defer ts.Close()

	discoverer := NewDiscoverer()

	_, err := discoverer.Discover(context.Background(), ts.URL)
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}

	// the failure must not be cached
	if _, err := discoverer.Discover(context.Background(), ts.URL); err != nil {
		t.Fatal(err)
	}
	if hits != 2 {
		t.Fatalf("expected 2 fetches, got %d", hits)
	}
}

func TestKeyResolverUnknownKid(t *testing.T) {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	key, err := jwk.FromRaw(raw.Public())
	if err != nil {
		t.Fatal(err)
	}
	key.Set(jwk.KeyIDKey, "known-kid")
	set := jwk.NewSet()
	set.AddKey(key)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(set)
	}))
	defer ts.Close()

	resolver := NewKeyResolver()

	if _, err := resolver.ResolveKey(context.Background(), ts.URL, "known-kid"); err != nil {
		t.Fatal(err)
	}

	_, err = resolver.ResolveKey(context.Background(), ts.URL, "other-kid")
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected KeyNotFoundError, got %v", err)
	}
	if notFound.KeyID != "other-kid" {
		t.Fatalf("unexpected kid in error: %q", notFound.KeyID)
	}
}

func TestPublicKeyPEM(t *testing.T) {
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := PublicKeyPEM(key)
	if err != nil {
		t.Fatal(err)
	}

	block, _ := pem.Decode([]byte(encoded))
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Fatalf("expected a PUBLIC KEY PEM block, got %q", encoded)
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	issuer := newTestProvider(t)

	client := NewClient(&Config{
		Issuer:       issuer,
		ClientID:     "abc123",
		ClientSecret: "secret1",
		RedirectURI:  "http://localhost:3001/cb",
		Scopes:       []string{"openid", "profile"},
	})

	ctx := context.Background()
	authURL, err := client.AuthCodeURL(ctx, "state-1", "nonce-1")
	if err != nil {
		t.Fatal(err)
	}

	// drive the front channel by hand: authenticate, then approve
	code := frontChannel(t, authURL)

	set, err := client.AuthorizationCodeFlow(ctx, code)
	if err != nil {
		t.Fatal(err)
	}
	if set.AccessToken == "" {
		t.Fatal("no access token")
	}
	if set.IDToken == nil {
		t.Fatal("no id token claims")
	}
	if set.IDToken.Nonce != "nonce-1" {
		t.Fatalf("nonce not carried through, got %q", set.IDToken.Nonce)
	}
	if set.IDToken.Subject != "1" {
		t.Fatalf("unexpected subject: %q", set.IDToken.Subject)
	}
	if set.Userinfo["name"] != "Bob Smith" {
		t.Fatalf("unexpected userinfo: %v", set.Userinfo)
	}
}

func TestVerifyIDTokenRejectsForeignSigner(t *testing.T) {
	issuer := newTestProvider(t)

	client := NewClient(&Config{
		Issuer:       issuer,
		ClientID:     "abc123",
		ClientSecret: "secret1",
		RedirectURI:  "http://localhost:3001/cb",
	})

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	foreignKey, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	jwk.AssignKeyID(foreignKey)

	now := time.Now()
	forged, err := idtoken.Sign(&idtoken.Claims{
		Issuer:    issuer,
		Subject:   "1",
		Audience:  []string{"abc123"},
		ExpiresAt: now.Add(time.Hour).Unix(),
		IssuedAt:  now.Unix(),
	}, foreignKey)
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.VerifyIDToken(context.Background(), forged)
	var validationErr *TokenValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected TokenValidationError, got %v", err)
	}
}

// frontChannel authenticates as bob, approves the consent and returns the
// authorization code from the redirect.
func frontChannel(t *testing.T, authURL string) string {
	t.Helper()

	httpClient := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest(http.MethodGet, authURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth("bob", "secret")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authorization request failed with status %d", resp.StatusCode)
	}

	var consent struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&consent); err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatal(err)
	}
	decisionURL := parsed.Scheme + "://" + parsed.Host + "/dialog/auth/decision"

	form := url.Values{}
	form.Set("transaction_id", consent.TransactionID)
	form.Set("decision", "allow")

	decisionResp, err := httpClient.PostForm(decisionURL, form)
	if err != nil {
		t.Fatal(err)
	}
	defer decisionResp.Body.Close()
	if decisionResp.StatusCode != http.StatusFound {
		t.Fatalf("decision failed with status %d", decisionResp.StatusCode)
	}

	redirect, err := url.Parse(decisionResp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if got := redirect.Query().Get("state"); got != "state-1" && got != "" {
		t.Fatalf("unexpected state: %q", got)
	}
	code := redirect.Query().Get("code")
	if code == "" {
		t.Fatalf("no code in redirect %q", redirect)
	}
	return code
}
