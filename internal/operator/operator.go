// Package operator manages the staff accounts used by the admin dashboard
// and the capture station.
package operator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Operator is a staff account.
type Operator struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	TOTPSecret   string    `json:"totp_secret"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists operators to disk as a JSON file.
type Store struct {
	mu sync.RWMutex

	Operators map[string]Operator `json:"operators"`
}

// NewStore returns an initialized operator store.
func NewStore() *Store {
	return &Store{Operators: make(map[string]Operator)}
}

// LoadStore reads operators from the provided file path. A missing file
// yields an empty store.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(), nil
		}
		return nil, err
	}
	return LoadStoreFromBytes(data)
}

// LoadStoreFromBytes parses operator store data.
func LoadStoreFromBytes(data []byte) (*Store, error) {
	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, err
	}
	if store.Operators == nil {
		store.Operators = make(map[string]Operator)
	}
	for username, op := range store.Operators {
		if op.Username == "" {
			op.Username = username
			store.Operators[username] = op
		}
	}
	return &store, nil
}

// Save writes the operator store to disk.
func (s *Store) Save(path string) error {
	if s == nil {
		return fmt.Errorf("operator store is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(s, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Get retrieves an operator by username.
func (s *Store) Get(username string) (Operator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.Operators[username]
	return op, ok
}

// Upsert inserts or updates an operator.
func (s *Store) Upsert(op Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Operators == nil {
		s.Operators = make(map[string]Operator)
	}
	s.Operators[op.Username] = op
}

// Delete removes an operator by username.
func (s *Store) Delete(username string) (Operator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.Operators[username]
	if ok {
		delete(s.Operators, username)
	}
	return op, ok
}

// ReplaceOperators swaps the full operator set.
func (s *Store) ReplaceOperators(operators map[string]Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if operators == nil {
		operators = make(map[string]Operator)
	}
	s.Operators = operators
}

// ReloadFromDisk replaces operators with the data in the file.
func (s *Store) ReloadFromDisk(path string) error {
	loaded, err := LoadStore(path)
	if err != nil {
		return err
	}
	s.ReplaceOperators(loaded.Operators)
	return nil
}

// List returns operators sorted by username.
func (s *Store) List() []Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]Operator, 0, len(s.Operators))
	for _, op := range s.Operators {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Username < ops[j].Username
	})
	return ops
}
