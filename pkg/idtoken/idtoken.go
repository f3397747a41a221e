// Package idtoken issues and verifies OpenID Connect ID Tokens as RS256
// signed JWTs, per http://openid.net/specs/openid-connect-core-1_0.html#IDToken
package idtoken

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims of an ID Token. Issuer, Subject, Audience, ExpiresAt and IssuedAt
// are required; the rest is optional per OIDC Core section 2.
type Claims struct {
	Issuer    string   `json:"iss"`
	Subject   string   `json:"sub"`
	Audience  []string `json:"aud"`
	ExpiresAt int64    `json:"exp"`
	IssuedAt  int64    `json:"iat"`
	Nonce     string   `json:"nonce,omitempty"`
	AuthTime  int64    `json:"auth_time,omitempty"`
	ACR       string   `json:"acr,omitempty"`
	AMR       []string `json:"amr,omitempty"`
	AZP       string   `json:"azp,omitempty"`
}

// ValidationError names the claim that violated the ID Token shape.
type ValidationError struct {
	Claim  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid claim %q: %s", e.Claim, e.Reason)
}

// SignatureError reports a failed signature check.
type SignatureError struct {
	cause error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("id token signature verification failed: %v", e.cause)
}

func (e *SignatureError) Unwrap() error { return e.cause }

// ExpiredError reports a structurally valid token whose exp has passed.
type ExpiredError struct {
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("id token expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

// Validate checks the claim shape invariants before signing.
func (c *Claims) Validate() error {
	if strings.TrimSpace(c.Issuer) == "" {
		return &ValidationError{Claim: "iss", Reason: "required, must be a non-empty string"}
	}
	if c.Subject == "" {
		return &ValidationError{Claim: "sub", Reason: "required, must be a non-empty string"}
	}
	if len(c.Subject) > 255 {
		return &ValidationError{Claim: "sub", Reason: "must not exceed 255 ASCII characters"}
	}
	if len(c.Audience) == 0 {
		return &ValidationError{Claim: "aud", Reason: "required, must contain at least one audience"}
	}
	for _, aud := range c.Audience {
		if strings.TrimSpace(aud) == "" {
			return &ValidationError{Claim: "aud", Reason: "audience values must be non-empty strings"}
		}
	}
	if c.ExpiresAt <= 0 {
		return &ValidationError{Claim: "exp", Reason: "required, must be a positive epoch timestamp"}
	}
	if c.IssuedAt <= 0 {
		return &ValidationError{Claim: "iat", Reason: "required, must be a positive epoch timestamp"}
	}
	if c.ExpiresAt <= c.IssuedAt {
		return &ValidationError{Claim: "exp", Reason: "must be strictly greater than iat"}
	}
	return nil
}

// Sign validates the claims and returns the compact JWS serialization,
// signed RS256 with the given private key. The key's kid travels in the
// protected header; the alg is always RS256, never none.
func Sign(claims *Claims, key jwk.Key) (string, error) {
	if err := claims.Validate(); err != nil {
		return "", err
	}

	token := jwt.New()
	token.Set(jwt.IssuerKey, claims.Issuer)
	token.Set(jwt.SubjectKey, claims.Subject)
	token.Set(jwt.AudienceKey, claims.Audience)
	token.Set(jwt.ExpirationKey, time.Unix(claims.ExpiresAt, 0))
	token.Set(jwt.IssuedAtKey, time.Unix(claims.IssuedAt, 0))
	if claims.Nonce != "" {
		token.Set("nonce", claims.Nonce)
	}
	if claims.AuthTime != 0 {
		token.Set("auth_time", claims.AuthTime)
	}
	if claims.ACR != "" {
		token.Set("acr", claims.ACR)
	}
	if len(claims.AMR) > 0 {
		token.Set("amr", claims.AMR)
	}
	if claims.AZP != "" {
		token.Set("azp", claims.AZP)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		return "", fmt.Errorf("unable to sign id token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the RS256 signature against the given public key and
// rejects expired tokens. It returns the decoded claims on success.
func Verify(serialized string, key jwk.Key) (*Claims, error) {
	token, err := jwt.ParseString(
		serialized,
		jwt.WithKey(jwa.RS256, key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, &SignatureError{cause: err}
	}

	exp := token.Expiration()
	if !exp.IsZero() && time.Now().After(exp) {
		return nil, &ExpiredError{ExpiredAt: exp}
	}

	claims := &Claims{
		Issuer:   token.Issuer(),
		Subject:  token.Subject(),
		Audience: token.Audience(),
	}
	if !exp.IsZero() {
		claims.ExpiresAt = exp.Unix()
	}
	if iat := token.IssuedAt(); !iat.IsZero() {
		claims.IssuedAt = iat.Unix()
	}
	if v, ok := token.Get("nonce"); ok {
		claims.Nonce, _ = v.(string)
	}
	if v, ok := token.Get("auth_time"); ok {
		switch t := v.(type) {
		case float64:
			claims.AuthTime = int64(t)
		case int64:
			claims.AuthTime = t
		}
	}
	if v, ok := token.Get("acr"); ok {
		claims.ACR, _ = v.(string)
	}
	if v, ok := token.Get("amr"); ok {
		if values, ok := v.([]interface{}); ok {
			for _, m := range values {
				if s, ok := m.(string); ok {
					claims.AMR = append(claims.AMR, s)
				}
			}
		}
	}
	if v, ok := token.Get("azp"); ok {
		claims.AZP, _ = v.(string)
	}

	return claims, nil
}
