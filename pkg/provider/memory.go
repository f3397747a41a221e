package provider

import "sync"

// In-memory stores, reset on process restart. Placeholder for a durable
// key-value store; every record is created once under a unique key and
// read many times, so a RWMutex per store is all the locking needed.

type memoryClientStore struct {
	clients map[string]*Client
	lock    sync.RWMutex
}

func NewMemoryClientStore() ClientStore {
	return &memoryClientStore{clients: make(map[string]*Client)}
}

func (s *memoryClientStore) FindByID(id string) (*Client, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, client := range s.clients {
		if client.ID == id {
			return client, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryClientStore) FindByClientID(clientID string) (*Client, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	client, ok := s.clients[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return client, nil
}

func (s *memoryClientStore) Save(client *Client) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clients[client.ClientID] = client
	return nil
}

type memoryUserStore struct {
	users map[string]*User
	lock  sync.RWMutex
}

func NewMemoryUserStore() UserStore {
	return &memoryUserStore{users: make(map[string]*User)}
}

func (s *memoryUserStore) FindByID(id string) (*User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryUserStore) FindByUsername(username string) (*User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *memoryUserStore) Save(user *User) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.users[user.Username] = user
	return nil
}

type memoryCodeStore struct {
	codes map[string]*AuthorizationCode
	lock  sync.RWMutex
}

func NewMemoryCodeStore() CodeStore {
	return &memoryCodeStore{codes: make(map[string]*AuthorizationCode)}
}

func (s *memoryCodeStore) Find(code string) (*AuthorizationCode, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	record, ok := s.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *memoryCodeStore) Save(code *AuthorizationCode) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.codes[code.Code] = code
	return nil
}

func (s *memoryCodeStore) Delete(code string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.codes, code)
	return nil
}

type memoryTokenStore struct {
	tokens map[string]*AccessToken
	lock   sync.RWMutex
}

func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{tokens: make(map[string]*AccessToken)}
}

func (s *memoryTokenStore) Find(token string) (*AccessToken, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	record, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

func (s *memoryTokenStore) Save(token *AccessToken) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tokens[token.Token] = token
	return nil
}

type memoryTransactionStore struct {
	transactions map[string]*Transaction
	lock         sync.RWMutex
}

func NewMemoryTransactionStore() TransactionStore {
	return &memoryTransactionStore{transactions: make(map[string]*Transaction)}
}

func (s *memoryTransactionStore) Find(id string) (*Transaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

func (s *memoryTransactionStore) Save(tx *Transaction) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.transactions[tx.ID] = tx
	return nil
}

func (s *memoryTransactionStore) Delete(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.transactions, id)
	return nil
}
