// Package nonce provides one-time values: each issued nonce can be
// redeemed exactly once, which makes it the building block for single-use
// transaction IDs.
package nonce

// Service issues and redeems one-time nonces. Redeem fails for unknown
// nonces and for nonces that were already redeemed.
type Service interface {
	Get() (string, error)
	Redeem(nonce string) error
}
