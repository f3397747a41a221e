package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DiscoveryDocument is the provider configuration published at
// /.well-known/openid-configuration.
type DiscoveryDocument struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JwksURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// Discoverer fetches and caches provider configurations by issuer.
// Documents are cached forever; providers rotate keys through the JWKS,
// not through the configuration document.
type Discoverer struct {
	client    *http.Client
	documents map[string]*DiscoveryDocument
	lock      sync.RWMutex
}

func NewDiscoverer() *Discoverer {
	return &Discoverer{
		client:    &http.Client{Timeout: 10 * time.Second},
		documents: make(map[string]*DiscoveryDocument),
	}
}

// Discover returns the configuration for the given issuer, fetching it on
// first use. A failed fetch is not cached, so the next call retries.
func (d *Discoverer) Discover(ctx context.Context, issuer string) (*DiscoveryDocument, error) {
	d.lock.RLock()
	doc, ok := d.documents[issuer]
	d.lock.RUnlock()
	if ok {
		return doc, nil
	}

	uri := issuer + "/.well-known/openid-configuration"
	doc, err := d.fetch(ctx, uri)
	if err != nil {
		return nil, &DiscoveryError{URI: uri, cause: err}
	}

	d.lock.Lock()
	d.documents[issuer] = doc
	d.lock.Unlock()

	return doc, nil
}

func (d *Discoverer) fetch(ctx context.Context, uri string) (*DiscoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc DiscoveryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("unable to decode discovery document: %w", err)
	}

	return &doc, nil
}
