package provider

import "time"

type TransactionStatus string

const (
	StatusRequested        TransactionStatus = "requested"
	StatusAwaitingDecision TransactionStatus = "awaiting_decision"
	StatusGranted          TransactionStatus = "granted"
	StatusDenied           TransactionStatus = "denied"
)

// Transaction is the server-side record of an authorization request
// awaiting a user decision. It is one-shot: the decision endpoint redeems
// the ID through the nonce service and discards the record, so a second
// decision against the same transaction always fails.
type Transaction struct {
	ID           string
	Status       TransactionStatus
	Client       *Client
	User         *User
	ResponseType string
	RedirectURI  string
	Scope        string
	State        string
	Nonce        string
	CreatedAt    time.Time
}
