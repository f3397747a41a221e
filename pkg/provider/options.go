package provider

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/authlab/oidc-lab/pkg/nonce"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

func WithIssuer(issuer string) Option {
	return func(s *Server) error {
		s.issuer = issuer
		return nil
	}
}

// WithSigningKey sets the RS256 signing key. A key ID is derived from the
// key thumbprint when the key carries none, and the public half is
// published in the JWKS.
func WithSigningKey(key jwk.Key) Option {
	return func(s *Server) error {
		if key.KeyID() == "" {
			thumbprint, err := key.Thumbprint(crypto.SHA256)
			if err != nil {
				return fmt.Errorf("unable to compute key thumbprint: %w", err)
			}
			key.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumbprint))
		}
		key.Set(jwk.AlgorithmKey, jwa.RS256)
		key.Set(jwk.KeyUsageKey, "sig")

		public, err := key.PublicKey()
		if err != nil {
			return fmt.Errorf("unable to derive public key: %w", err)
		}

		set := jwk.NewSet()
		if err := set.AddKey(public); err != nil {
			return fmt.Errorf("unable to build key set: %w", err)
		}

		s.sigPrK = key
		s.jwks = set
		return nil
	}
}

// WithRandomSigningKey generates an ephemeral RSA 2048 signing key. Tokens
// signed with it do not survive a restart, which is fine for development.
func WithRandomSigningKey() Option {
	return func(s *Server) error {
		raw, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return fmt.Errorf("unable to generate signing key: %w", err)
		}
		key, err := jwk.FromRaw(raw)
		if err != nil {
			return fmt.Errorf("unable to convert signing key: %w", err)
		}
		return WithSigningKey(key)(s)
	}
}

func WithClients(clients ...*Client) Option {
	return func(s *Server) error {
		if s.clients == nil {
			s.clients = NewMemoryClientStore()
		}
		for _, client := range clients {
			if err := s.clients.Save(client); err != nil {
				return fmt.Errorf("unable to save client %q: %w", client.ClientID, err)
			}
		}
		return nil
	}
}

func WithUsers(users ...*User) Option {
	return func(s *Server) error {
		if s.users == nil {
			s.users = NewMemoryUserStore()
		}
		for _, user := range users {
			if err := s.users.Save(user); err != nil {
				return fmt.Errorf("unable to save user %q: %w", user.Username, err)
			}
		}
		return nil
	}
}

func WithClientStore(store ClientStore) Option {
	return func(s *Server) error {
		s.clients = store
		return nil
	}
}

func WithUserStore(store UserStore) Option {
	return func(s *Server) error {
		s.users = store
		return nil
	}
}

func WithCodeStore(store CodeStore) Option {
	return func(s *Server) error {
		s.codes = store
		return nil
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(s *Server) error {
		s.tokens = store
		return nil
	}
}

func WithTransactionStore(store TransactionStore) Option {
	return func(s *Server) error {
		s.transactions = store
		return nil
	}
}

func WithAuthenticator(a Authenticator) Option {
	return func(s *Server) error {
		s.authenticator = a
		return nil
	}
}

func WithNonceService(svc nonce.Service) Option {
	return func(s *Server) error {
		s.nonces = svc
		return nil
	}
}

// WithAutoApprove skips the consent dialog and grants every authenticated
// request immediately. Test and development use only.
func WithAutoApprove() Option {
	return func(s *Server) error {
		s.autoApprove = true
		return nil
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Server) error {
		s.codeTTL = ttl
		return nil
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) error {
		s.tokenTTL = ttl
		return nil
	}
}

func WithIDTokenTTL(ttl time.Duration) Option {
	return func(s *Server) error {
		s.idTokenTTL = ttl
		return nil
	}
}

// WithConfigFile loads issuer, clients and users from a YAML file.
func WithConfigFile(path string) Option {
	return func(s *Server) error {
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}
		if config.Issuer != "" {
			s.issuer = config.Issuer
		}
		if err := WithClients(config.Clients...)(s); err != nil {
			return err
		}
		return WithUsers(config.Users...)(s)
	}
}
