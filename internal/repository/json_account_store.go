package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"TradeCore/internal/domain/models"
	"TradeCore/internal/domain/repository"
)

// JSONAccountStore keeps the paper account as one JSON document on disk.
// Writes go to a temp file in the same directory and are renamed over the target.
type JSONAccountStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONAccountStore(path string) *JSONAccountStore {
	return &JSONAccountStore{path: path}
}

// Path returns the snapshot location.
func (s *JSONAccountStore) Path() string { return s.path }

func (s *JSONAccountStore) Load(ctx context.Context) (*models.PaperAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrAccountNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var acct models.PaperAccount
	if err := json.Unmarshal(b, &acct); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return &acct, nil
}

func (s *JSONAccountStore) Save(ctx context.Context, acct *models.PaperAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
