package oidc

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyResolver caches JWKS documents by URI and resolves individual keys
// by kid. An unknown kid triggers one refetch before failing, which
// covers provider key rotation without a timed refresh loop.
type KeyResolver struct {
	client *http.Client
	sets   map[string]jwk.Set
	lock   sync.RWMutex
}

func NewKeyResolver() *KeyResolver {
	return &KeyResolver{
		client: &http.Client{Timeout: 10 * time.Second},
		sets:   make(map[string]jwk.Set),
	}
}

func (r *KeyResolver) ResolveKey(ctx context.Context, jwksURI string, kid string) (jwk.Key, error) {
	r.lock.RLock()
	set, ok := r.sets[jwksURI]
	r.lock.RUnlock()

	if ok {
		if key, found := set.LookupKeyID(kid); found {
			return key, nil
		}
	}

	set, err := jwk.Fetch(ctx, jwksURI, jwk.WithHTTPClient(r.client))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch key set from %s: %w", jwksURI, err)
	}

	r.lock.Lock()
	r.sets[jwksURI] = set
	r.lock.Unlock()

	key, found := set.LookupKeyID(kid)
	if !found {
		return nil, &KeyNotFoundError{KeyID: kid, JwksURI: jwksURI}
	}
	return key, nil
}

// PublicKeyPEM renders the public half of a key as a PEM block, the form
// most non-JOSE tooling expects.
func PublicKeyPEM(key jwk.Key) (string, error) {
	public, err := key.PublicKey()
	if err != nil {
		return "", fmt.Errorf("unable to derive public key: %w", err)
	}

	var raw any
	if err := public.Raw(&raw); err != nil {
		return "", fmt.Errorf("unable to materialize public key: %w", err)
	}

	der, err := x509.MarshalPKIXPublicKey(raw)
	if err != nil {
		return "", fmt.Errorf("unable to encode public key: %w", err)
	}

	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}
