// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store defines the record-store collaborator interfaces consumed
// by the mutator and the discovery scanner, plus the atomic batch type.
//
// Person sets are logically partitioned per owner. Cross-owner reads happen
// only during discovery (read-only) and account-deletion cascades. The one
// hard transactional requirement in the system is ApplyBatch: every staged
// write lands or none do.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoPendingRequest is returned when accepting a konnection that was
	// never requested.
	ErrNoPendingRequest = errors.New("no pending konnection request")
)

// FilterOption selects the discovery pre-filter.
type FilterOption string

const (
	FilterNativePlace      FilterOption = "nativePlace"
	FilterReligionAndCaste FilterOption = "religionAndCaste"
	FilterCombined         FilterOption = "combined"
)

// User is an account record. Demographics used by discovery pre-filters
// live on the user's self person record, not here.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// IsPublic governs whether this user's tree participates in discovery
	// at all, on both sides of a scan.
	IsPublic bool `json:"isPublic"`

	// SelfPersonID is the id of the one Self-kind record in this user's
	// person set.
	SelfPersonID string `json:"selfPersonId"`

	// DiscoveryFilter is the pre-filter option the user selected.
	DiscoveryFilter FilterOption `json:"discoveryFilter,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Op is one staged write in a Batch.
type Op struct {
	// OwnerID scopes the write to one user's person set.
	OwnerID string

	// Put, when non-nil, is the full record to write (document-store
	// style: whole-record upsert).
	Put *person.Person

	// DeleteID, when set, deletes that record. Put and DeleteID are
	// mutually exclusive per op.
	DeleteID string
}

// Batch accumulates multi-record writes to be applied atomically. A later
// op on the same record wins over an earlier one.
type Batch struct {
	ops []Op
}

// Put stages a whole-record upsert.
func (b *Batch) Put(ownerID string, p *person.Person) {
	b.ops = append(b.ops, Op{OwnerID: ownerID, Put: p})
}

// Delete stages a record deletion.
func (b *Batch) Delete(ownerID, personID string) {
	b.ops = append(b.ops, Op{OwnerID: ownerID, DeleteID: personID})
}

// Ops returns the staged ops in insertion order.
func (b *Batch) Ops() []Op { return b.ops }

// Empty reports whether nothing is staged.
func (b *Batch) Empty() bool { return len(b.ops) == 0 }

// OwnedPerson pairs a person record with its owning user, for cross-owner
// queries.
type OwnedPerson struct {
	OwnerID string
	Person  *person.Person
}

// PersonStore is the per-owner person-set store.
type PersonStore interface {
	// GetPerson returns one record. ErrNotFound if absent.
	GetPerson(ctx context.Context, ownerID, personID string) (*person.Person, error)

	// ListPersons returns the owner's whole person set in collection
	// order: creation time ascending, id as tiebreak. The matcher's greedy
	// semantics depend on this order being stable.
	ListPersons(ctx context.Context, ownerID string) ([]*person.Person, error)

	// ApplyBatch applies every staged write atomically. No reader may ever
	// observe a partially applied batch.
	ApplyBatch(ctx context.Context, batch *Batch) error
}

// UserStore manages account records.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	PutUser(ctx context.Context, u *User) error

	// ListUserIDs enumerates every account id in stable ascending order.
	ListUserIDs(ctx context.Context) ([]string, error)

	DeleteUser(ctx context.Context, id string) error
}

// KonnectionStore manages mutual tree-access links between users.
type KonnectionStore interface {
	// Konnected returns the ids of every user mutually konnected with
	// userID.
	Konnected(ctx context.Context, userID string) ([]string, error)

	AreKonnected(ctx context.Context, a, b string) (bool, error)

	// RequestKonnection records a pending request from one user to another.
	RequestKonnection(ctx context.Context, fromID, toID string) error

	// AcceptKonnection consumes a pending request and writes the mutual
	// link, both directions atomically. ErrNoPendingRequest if fromID
	// never asked.
	AcceptKonnection(ctx context.Context, fromID, toID string) error

	// PendingRequests returns user ids with an open request to userID.
	PendingRequests(ctx context.Context, userID string) ([]string, error)
}

// ReferenceFinder is the collection-group-style query: find every person
// record, in any owner's set, holding a graph-edge reference to one of the
// given ids. Account deletion uses it to strip dangling cross-user
// references.
type ReferenceFinder interface {
	FindReferencing(ctx context.Context, ids []string) ([]OwnedPerson, error)
}

// Store is the full record-store collaborator surface.
type Store interface {
	PersonStore
	UserStore
	KonnectionStore
	ReferenceFinder
}
