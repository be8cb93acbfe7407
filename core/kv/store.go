// Package kv is the key-value binding backing stored bodies. Values are kept
// in BadgerDB together with the content type they were written with.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/rs/zerolog"

	"worker/core/errs"
)

// ErrNotFound is returned by Get and Delete for absent keys.
var ErrNotFound = errors.New("key not found")

const (
	valuePrefix = "v/"
	typePrefix  = "t/"
)

// Options configures Open.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	Logger     zerolog.Logger
}

// Entry is a stored value.
type Entry struct {
	Value       []byte
	ContentType string
}

// Store is a BadgerDB-backed key-value store.
type Store struct {
	db     *badgerdb.DB
	logger zerolog.Logger
}

// Open opens or creates the store described by opts.
func Open(opts Options) (*Store, error) {
	var bopts badgerdb.Options
	if opts.InMemory {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errs.KVError("data path is required unless running in memory")
		}
		if err := os.MkdirAll(opts.Path, 0o700); err != nil {
			return nil, errs.FromKV(fmt.Errorf("create data dir %s: %w", opts.Path, err))
		}
		bopts = badgerdb.DefaultOptions(opts.Path).WithSyncWrites(opts.SyncWrites)
	}
	bopts.Logger = badgerLogger{logger: opts.Logger.With().Str("component", "badger").Logger()}
	bopts.BlockCacheSize = 16 << 20
	bopts.IndexCacheSize = 16 << 20
	bopts.NumMemtables = 2

	db, err := badgerdb.Open(bopts)
	if err != nil {
		return nil, errs.FromKV(err)
	}
	opts.Logger.Info().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("kv store opened")
	return &Store{db: db, logger: opts.Logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.FromKV(err)
	}
	return nil
}

// Put stores value under key, replacing any previous entry.
func (s *Store) Put(ctx context.Context, key string, value []byte, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set([]byte(valuePrefix+key), value); err != nil {
			return err
		}
		return txn.Set([]byte(typePrefix+key), []byte(contentType))
	})
	if err != nil {
		return errs.FromKV(fmt.Errorf("put %q: %w", key, err))
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(value)).Msg("kv put")
	return nil
}

// Get returns the entry stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (Entry, error) {
	if err := validKey(key); err != nil {
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	var entry Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(valuePrefix + key))
		if err != nil {
			return err
		}
		if entry.Value, err = item.ValueCopy(nil); err != nil {
			return err
		}
		item, err = txn.Get([]byte(typePrefix + key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ct, err := item.ValueCopy(nil)
		entry.ContentType = string(ct)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, errs.FromKV(fmt.Errorf("get %q: %w", key, err))
	}
	return entry, nil
}

// Delete removes key, or returns ErrNotFound if it is absent.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get([]byte(valuePrefix + key)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(valuePrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(typePrefix + key))
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return errs.FromKV(fmt.Errorf("delete %q: %w", key, err))
	}
	return nil
}

// List returns the keys starting with prefix in lexical order, at most limit
// of them when limit is positive.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		iopts := badgerdb.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = []byte(valuePrefix + prefix)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), valuePrefix))
			if limit > 0 && len(keys) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errs.FromKV(fmt.Errorf("list %q: %w", prefix, err))
	}
	return keys, nil
}

func validKey(key string) error {
	if key == "" {
		return errs.KVError("key must not be empty")
	}
	return nil
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(strings.TrimSpace(format), args...)
}
