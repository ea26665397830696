// Package credentials stores the remote store auth token using the
// OS-native keyring, with fallback to an environment variable.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// Source indicates where a token was retrieved from.
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

const service = "gridtask"

// TokenInfo contains the token and its provenance.
type TokenInfo struct {
	Source  Source
	Account string
	Token   string
	Found   bool
}

// Keyring is the interface for keyring operations. The zalando keyring is
// used in production; tests inject a fake.
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// systemKeyring delegates to the OS-native keyring.
type systemKeyring struct{}

func (systemKeyring) Set(service, account, password string) error {
	return keyring.Set(service, account, password)
}

func (systemKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (systemKeyring) Delete(service, account string) error {
	return keyring.Delete(service, account)
}

// Manager handles token storage and retrieval.
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager.
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation.
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithGetenv sets a custom environment lookup. Used by tests.
func WithGetenv(fn func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = fn
	}
}

// NewManager creates a new credential manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{keyring: systemKeyring{}, getenv: os.Getenv}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores the token in the keyring.
func (m *Manager) Set(ctx context.Context, account, token string) error {
	if account == "" {
		return fmt.Errorf("account is required")
	}
	return m.keyring.Set(service, account, token)
}

// Get retrieves the token: keyring first, then GRIDTASK_TOKEN.
func (m *Manager) Get(ctx context.Context, account string) (*TokenInfo, error) {
	token, err := m.keyring.Get(service, account)
	if err == nil && token != "" {
		return &TokenInfo{Source: SourceKeyring, Account: account, Token: token, Found: true}, nil
	}

	if envToken := m.getenv("GRIDTASK_TOKEN"); envToken != "" {
		return &TokenInfo{Source: SourceEnvironment, Account: account, Token: envToken, Found: true}, nil
	}

	return &TokenInfo{Source: SourceNone, Account: account, Found: false}, nil
}

// Delete removes the token from the keyring. Idempotent: a missing entry
// is not an error.
func (m *Manager) Delete(ctx context.Context, account string) error {
	err := m.keyring.Delete(service, account)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return nil
	}
	return err
}
