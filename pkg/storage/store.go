// Package storage persists API credentials, cached trade history, and
// research notes in a local pebble database.
package storage

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/errors"
	"github.com/polyclob/polyclob/pkg/positions"
)

type Store struct {
	db *pebble.DB
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "opening store", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keys: cr:<address>, th:<address>, no:<slug>
func kCreds(addr common.Address) []byte { return append([]byte("cr:"), addr.Bytes()...) }
func kTrades(addr common.Address) []byte {
	return append([]byte("th:"), addr.Bytes()...)
}
func kNote(slug string) []byte { return append([]byte("no:"), slug...) }

// SaveCredentials stores API credentials keyed by wallet address. The
// store holds the secret in the clear; keep the database path private.
func (s *Store) SaveCredentials(addr common.Address, creds params.Credentials) error {
	return s.setJSON(kCreds(addr), creds)
}

func (s *Store) Credentials(addr common.Address) (params.Credentials, bool, error) {
	var out params.Credentials
	ok, err := s.getJSON(kCreds(addr), &out)
	return out, ok, err
}

func (s *Store) DeleteCredentials(addr common.Address) error {
	if err := s.db.Delete(kCreds(addr), pebble.Sync); err != nil {
		return errors.Wrap(errors.CodeStorageError, "deleting credentials", err)
	}
	return nil
}

// SaveTrades caches a fetched trade history so reconciliation can run
// offline. Overwrites any previous cache for the address.
func (s *Store) SaveTrades(addr common.Address, trades []positions.Trade) error {
	return s.setJSON(kTrades(addr), trades)
}

func (s *Store) Trades(addr common.Address) ([]positions.Trade, bool, error) {
	var out []positions.Trade
	ok, err := s.getJSON(kTrades(addr), &out)
	return out, ok, err
}

// Note is a free-form research annotation on a market.
type Note struct {
	Slug      string `json:"slug"`
	Body      string `json:"body"`
	UpdatedAt int64  `json:"updated_at"`
}

func (s *Store) SaveNote(n Note) error {
	if n.Slug == "" {
		return errors.New(errors.CodeStorageError, "note slug is required")
	}
	return s.setJSON(kNote(n.Slug), n)
}

func (s *Store) NoteBySlug(slug string) (Note, bool, error) {
	var out Note
	ok, err := s.getJSON(kNote(slug), &out)
	return out, ok, err
}

// Notes iterates every stored note in slug order.
func (s *Store) Notes() ([]Note, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("no:"),
		UpperBound: []byte("no;"),
	})
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorageError, "iterating notes", err)
	}
	defer iter.Close()

	var out []Note
	for iter.First(); iter.Valid(); iter.Next() {
		var n Note
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			return nil, errors.Wrap(errors.CodeStorageError, "decoding note", err)
		}
		out = append(out, n)
	}
	return out, iter.Error()
}

func (s *Store) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.CodeStorageError, "encoding record", err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return errors.Wrap(errors.CodeStorageError, "writing record", err)
	}
	return nil
}

func (s *Store) getJSON(key []byte, out any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.CodeStorageError, "reading record", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(val, out); err != nil {
		return false, errors.Wrap(errors.CodeStorageError, "decoding record", err)
	}
	return true, nil
}
