// Package account persists runtime credentials so they are registered once, in an
// explicit setup step, and read back by later runs.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultName is the account name used when none is given.
const DefaultName = "default-ibm-cloud"

var (
	ErrAccountExists   = errors.New("a different account is already saved under this name")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAccount  = errors.New("account needs a channel and a token")
)

// Account holds the credentials of one runtime instance.
type Account struct {
	Channel  string `json:"channel"`
	Token    string `json:"token"`
	Instance string `json:"instance,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Store is a JSON file of named accounts, readable by the owner only.
type Store struct {
	path string
	log  zerolog.Logger
	mu   sync.Mutex
}

// NewStore creates a store backed by path.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log.With().Str("component", "account_store").Logger()}
}

// DefaultPath returns ~/.qaoa/accounts.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".qaoa", "accounts.json"), nil
}

// Save stores acct under name. Saving an identical record is a no-op, so setup can be
// re-run safely; replacing a different record requires overwrite.
func (s *Store) Save(name string, acct Account, overwrite bool) error {
	if acct.Channel == "" || acct.Token == "" {
		return ErrInvalidAccount
	}
	if name == "" {
		name = DefaultName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.read()
	if err != nil {
		return err
	}
	if existing, ok := accounts[name]; ok {
		if existing == acct {
			s.log.Debug().Str("name", name).Msg("Account already saved")
			return nil
		}
		if !overwrite {
			return fmt.Errorf("%s: %w", name, ErrAccountExists)
		}
	}

	accounts[name] = acct
	if err := s.write(accounts); err != nil {
		return err
	}
	s.log.Info().Str("name", name).Str("channel", acct.Channel).Msg("Account saved")
	return nil
}

// Load returns the account saved under name.
func (s *Store) Load(name string) (Account, error) {
	if name == "" {
		name = DefaultName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.read()
	if err != nil {
		return Account{}, err
	}
	acct, ok := accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("%s: %w", name, ErrAccountNotFound)
	}
	return acct, nil
}

// Names lists the saved account names.
func (s *Store) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := s.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) read() (map[string]Account, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Account), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	accounts := make(map[string]Account)
	if len(data) == 0 {
		return accounts, nil
	}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return accounts, nil
}

// write replaces the file atomically.
func (s *Store) write(accounts map[string]Account) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write accounts: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace accounts file: %w", err)
	}
	return nil
}
