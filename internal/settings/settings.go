// Package settings persists user preferences in an embedded Badger key-value store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/lanreader/lanreader/internal/domain"
)

const keyCredentials = "settings:credentials"

// Store is a small Badger-backed settings store.
type Store struct {
	db       *badger.DB
	logger   *slog.Logger
	defaults domain.Credentials
}

// Open opens (or creates) the settings database at path. defaults are
// returned by Credentials until a value has been saved.
func Open(path string, defaults domain.Credentials, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}

	return &Store{db: db, logger: logger, defaults: defaults}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Credentials returns the saved server credentials, or the configured
// defaults if none have been saved yet.
func (s *Store) Credentials(ctx context.Context) (domain.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credentials{}, err
	}

	var creds domain.Credentials
	err := s.get([]byte(keyCredentials), &creds)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("get credentials: %w", err)
	}
	return creds, nil
}

// SaveCredentials overwrites the stored credentials.
func (s *Store) SaveCredentials(ctx context.Context, creds domain.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.set([]byte(keyCredentials), creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	s.logger.Debug("credentials saved", "server_url", creds.ServerURL)
	return nil
}

// ResetCredentials removes saved credentials so the defaults apply again.
func (s *Store) ResetCredentials(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyCredentials))
	})
}

func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

func (s *Store) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
