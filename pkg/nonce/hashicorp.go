package nonce

import (
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

type hashicorpService struct {
	nonces nonceutil.NonceService
}

// NewService returns an in-memory Service backed by hashicorp nonceutil.
// Nonces expire after the library's default validity window.
func NewService() (Service, error) {
	nonces := nonceutil.NewNonceService()
	if err := nonces.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize nonce service: %w", err)
	}
	return &hashicorpService{nonces}, nil
}

func (s *hashicorpService) Get() (string, error) {
	value, _, err := s.nonces.Get()
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *hashicorpService) Redeem(value string) error {
	if !s.nonces.Redeem(value) {
		return fmt.Errorf("nonce not found or already redeemed")
	}
	return nil
}
