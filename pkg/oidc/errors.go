package oidc

import "fmt"

// DiscoveryError reports a failed fetch of the provider configuration.
type DiscoveryError struct {
	URI   string
	cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("unable to discover provider at %s: %v", e.URI, e.cause)
}

func (e *DiscoveryError) Unwrap() error {
	return e.cause
}

// KeyNotFoundError reports a kid that is absent from the provider's JWKS.
type KeyNotFoundError struct {
	KeyID   string
	JwksURI string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q not found in %s", e.KeyID, e.JwksURI)
}

// TokenRequestError reports a failed token endpoint exchange.
type TokenRequestError struct {
	cause error
}

func (e *TokenRequestError) Error() string {
	return fmt.Sprintf("token request failed: %v", e.cause)
}

func (e *TokenRequestError) Unwrap() error {
	return e.cause
}

// TokenValidationError reports an ID token that failed verification.
type TokenValidationError struct {
	Reason string
	cause  error
}

func (e *TokenValidationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("id token validation failed: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("id token validation failed: %s", e.Reason)
}

func (e *TokenValidationError) Unwrap() error {
	return e.cause
}

// UserinfoRequestError reports a failed userinfo request.
type UserinfoRequestError struct {
	StatusCode int
	cause      error
}

func (e *UserinfoRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("userinfo request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("userinfo request failed: %v", e.cause)
}

func (e *UserinfoRequestError) Unwrap() error {
	return e.cause
}
