package provider

import "errors"

// ErrNotFound is returned by all stores when no record exists for the key.
var ErrNotFound = errors.New("not found")

type ClientStore interface {
	FindByID(id string) (*Client, error)
	FindByClientID(clientID string) (*Client, error)
	Save(client *Client) error
}

type UserStore interface {
	FindByID(id string) (*User, error)
	FindByUsername(username string) (*User, error)
	Save(user *User) error
}

type CodeStore interface {
	Find(code string) (*AuthorizationCode, error)
	Save(code *AuthorizationCode) error
	Delete(code string) error
}

type TokenStore interface {
	Find(token string) (*AccessToken, error)
	Save(token *AccessToken) error
}

type TransactionStore interface {
	Find(id string) (*Transaction, error)
	Save(tx *Transaction) error
	Delete(id string) error
}
