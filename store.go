package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// CredentialStore keeps the harvested cookie set in a single JSON file.
// It does no locking; one process at a time is expected to use it.
type CredentialStore struct {
	Path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{Path: path}
}

// Load returns the cached credential, or false when the file is absent or
// cannot be parsed.
func (s *CredentialStore) Load() (Credential, bool) {
	cred, err := s.Read()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ignoring unreadable cookie cache", "path", s.Path, "err", err)
		}
		return nil, false
	}
	return cred, true
}

// Read is Load with the failure reason kept.
func (s *CredentialStore) Read() (Credential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	if cred == nil {
		return nil, fmt.Errorf("cookie file %s holds no cookie list", s.Path)
	}
	return cred, nil
}

// Save writes cred to the store path, creating parent directories.
func (s *CredentialStore) Save(cred Credential) (err error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close cookie file: %w", cerr)
		}
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}
