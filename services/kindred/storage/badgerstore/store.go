// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
)

const (
	personPrefix  = "person/"
	userPrefix    = "user/"
	konnPrefix    = "konn/"
	konnReqPrefix = "konnreq/"
)

// Store implements store.Store on BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB provides serializable
// transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	stopGC chan struct{}
}

// New opens a Store with the given configuration.
//
// Description:
//
//	Opens the underlying BadgerDB and, when GCInterval is set, starts the
//	value-log GC loop. Caller must Close() when done.
//
// Inputs:
//
//	cfg - Database configuration.
//
// Outputs:
//
//	*Store - The opened store.
//	error - Non-nil if the database cannot be opened.
func New(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, logger: cfg.Logger, stopGC: make(chan struct{})}
	if cfg.GCInterval > 0 {
		go runGC(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger, s.stopGC)
	}
	return s, nil
}

// NewInMemory opens an in-memory Store for tests.
func NewInMemory() (*Store, error) {
	return New(InMemoryConfig())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	close(s.stopGC)
	return s.db.Close()
}

func personKey(ownerID, personID string) []byte {
	return []byte(personPrefix + ownerID + "/" + personID)
}

func userKey(id string) []byte {
	return []byte(userPrefix + id)
}

func konnKey(a, b string) []byte {
	return []byte(konnPrefix + a + "/" + b)
}

func konnReqKey(from, to string) []byte {
	return []byte(konnReqPrefix + from + "/" + to)
}

// GetPerson returns one record, or store.ErrNotFound.
func (s *Store) GetPerson(ctx context.Context, ownerID, personID string) (*person.Person, error) {
	var p person.Person
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(personKey(ownerID, personID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("person %s/%s: %w", ownerID, personID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get person %s/%s: %w", ownerID, personID, err)
	}
	return &p, nil
}

// ListPersons returns the owner's person set in collection order: creation
// time ascending, id as tiebreak.
func (s *Store) ListPersons(ctx context.Context, ownerID string) ([]*person.Person, error) {
	var people []*person.Person
	prefix := []byte(personPrefix + ownerID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var p person.Person
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			people = append(people, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list persons for %s: %w", ownerID, err)
	}

	sort.SliceStable(people, func(i, j int) bool {
		if !people[i].CreatedAt.Equal(people[j].CreatedAt) {
			return people[i].CreatedAt.Before(people[j].CreatedAt)
		}
		return people[i].ID < people[j].ID
	})
	return people, nil
}

// ApplyBatch applies every staged write in one BadgerDB transaction.
//
// Description:
//
//	All puts and deletes land atomically or not at all. This is the sole
//	write path for person records: the graph mutator stages every side of
//	every bidirectional edge into one batch.
func (s *Store) ApplyBatch(ctx context.Context, batch *store.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range batch.Ops() {
			switch {
			case op.Put != nil:
				data, err := json.Marshal(op.Put)
				if err != nil {
					return fmt.Errorf("encode person %s: %w", op.Put.ID, err)
				}
				if err := txn.Set(personKey(op.OwnerID, op.Put.ID), data); err != nil {
					return err
				}
			case op.DeleteID != "":
				if err := txn.Delete(personKey(op.OwnerID, op.DeleteID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply batch (%d ops): %w", len(batch.Ops()), err)
	}
	return nil
}

// GetUser returns an account record, or store.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &u)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// PutUser writes an account record.
func (s *Store) PutUser(ctx context.Context, u *store.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.ID), data)
	})
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

// ListUserIDs enumerates every account id in ascending key order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	prefix := []byte(userPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), userPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// DeleteUser removes the account record only. Person-set and cross-user
// reference cleanup is the mutator's cascade, not the store's.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(userKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// Konnected returns the ids of every user mutually konnected with userID.
func (s *Store) Konnected(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	prefix := []byte(konnPrefix + userID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list konnections for %s: %w", userID, err)
	}
	return ids, nil
}

// AreKonnected reports whether a mutual link exists.
func (s *Store) AreKonnected(ctx context.Context, a, b string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(konnKey(a, b))
		if err == nil {
			found = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("check konnection %s/%s: %w", a, b, err)
	}
	return found, nil
}

// RequestKonnection records a pending request.
func (s *Store) RequestKonnection(ctx context.Context, fromID, toID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(konnReqKey(fromID, toID), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("request konnection %s->%s: %w", fromID, toID, err)
	}
	return nil
}

// AcceptKonnection consumes the pending request and writes both directions
// of the mutual link in one transaction.
func (s *Store) AcceptKonnection(ctx context.Context, fromID, toID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		reqKey := konnReqKey(fromID, toID)
		if _, err := txn.Get(reqKey); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return store.ErrNoPendingRequest
			}
			return err
		}
		if err := txn.Delete(reqKey); err != nil {
			return err
		}
		if err := txn.Set(konnKey(fromID, toID), []byte{1}); err != nil {
			return err
		}
		return txn.Set(konnKey(toID, fromID), []byte{1})
	})
	if err != nil {
		if errors.Is(err, store.ErrNoPendingRequest) {
			return err
		}
		return fmt.Errorf("accept konnection %s->%s: %w", fromID, toID, err)
	}
	return nil
}

// PendingRequests returns user ids with an open request to userID.
func (s *Store) PendingRequests(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	suffix := "/" + userID

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(konnReqPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := strings.TrimPrefix(string(it.Item().Key()), konnReqPrefix)
			if strings.HasSuffix(key, suffix) {
				ids = append(ids, strings.TrimSuffix(key, suffix))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending requests for %s: %w", userID, err)
	}
	return ids, nil
}

// FindReferencing scans every owner's person set for records holding a
// graph-edge reference to any of the given ids.
//
// Description:
//
//	This is the collection-group-style query backing the account-deletion
//	cascade. It is a full scan over the person keyspace; acceptable
//	because account deletion is rare and offline-ish.
func (s *Store) FindReferencing(ctx context.Context, ids []string) ([]store.OwnedPerson, error) {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var matches []store.OwnedPerson
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(personPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := strings.TrimPrefix(string(it.Item().Key()), personPrefix)
			ownerID, _, ok := strings.Cut(key, "/")
			if !ok {
				continue
			}
			var p person.Person
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if references(&p, idSet) {
				matches = append(matches, store.OwnedPerson{OwnerID: ownerID, Person: &p})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find referencing: %w", err)
	}
	return matches, nil
}

// references reports whether p holds any edge into idSet.
func references(p *person.Person, idSet map[string]bool) bool {
	if idSet[p.FatherID] || idSet[p.MotherID] {
		return true
	}
	for _, group := range [][]string{p.SpouseIDs, p.DivorcedSpouseIDs, p.ChildIDs, p.SiblingIDs} {
		for _, id := range group {
			if idSet[id] {
				return true
			}
		}
	}
	return false
}
