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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putPerson(t *testing.T, s *Store, ownerID string, p *person.Person) {
	t.Helper()
	var b store.Batch
	b.Put(ownerID, p)
	require.NoError(t, s.ApplyBatch(context.Background(), &b))
}

// TestPersonRoundTrip verifies a record survives the JSON encode/store/decode
// cycle with its maps and slices intact.
func TestPersonRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	idx := 1
	p := &person.Person{
		ID:                "p1",
		Kind:              person.KindSelf,
		Name:              "Arjun Mehta",
		Gender:            person.Male,
		DOB:               "1962-04-18",
		SpouseIDs:         []string{"p2"},
		DivorcedSpouseIDs: []string{"p3"},
		SiblingOrderIndex: &idx,
		AnniversaryDates:  map[string]person.FlexDate{"p2": "1990-06-01"},
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	putPerson(t, s, "u1", p)

	got, err := s.GetPerson(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Arjun Mehta", got.Name)
	assert.Equal(t, person.KindSelf, got.Kind)
	assert.Equal(t, []string{"p2"}, got.SpouseIDs)
	assert.Equal(t, []string{"p3"}, got.DivorcedSpouseIDs)
	require.NotNil(t, got.SiblingOrderIndex)
	assert.Equal(t, 1, *got.SiblingOrderIndex)
	assert.Equal(t, person.FlexDate("1990-06-01"), got.AnniversaryDates["p2"])
}

func TestGetPersonNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetPerson(context.Background(), "u1", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestListPersonsOrder verifies collection order: creation time ascending,
// id tiebreak. The matcher's greedy semantics depend on this.
func TestListPersonsOrder(t *testing.T) {
	s := openTestStore(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	putPerson(t, s, "u1", &person.Person{ID: "zz", CreatedAt: t0})
	putPerson(t, s, "u1", &person.Person{ID: "aa", CreatedAt: t0.Add(time.Hour)})
	putPerson(t, s, "u1", &person.Person{ID: "mm", CreatedAt: t0})
	putPerson(t, s, "u2", &person.Person{ID: "other", CreatedAt: t0})

	people, err := s.ListPersons(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, people, 3)
	assert.Equal(t, "mm", people[0].ID) // t0, id tiebreak
	assert.Equal(t, "zz", people[1].ID)
	assert.Equal(t, "aa", people[2].ID) // latest creation last
}

func TestListPersonsEmpty(t *testing.T) {
	s := openTestStore(t)

	people, err := s.ListPersons(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, people)
}

// TestApplyBatchMultiRecord verifies puts and deletes land together and a
// later op on the same record wins.
func TestApplyBatchMultiRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	putPerson(t, s, "u1", &person.Person{ID: "stale"})

	var b store.Batch
	b.Put("u1", &person.Person{ID: "p1", Name: "One"})
	b.Put("u1", &person.Person{ID: "p2", Name: "Two"})
	b.Delete("u1", "stale")
	b.Put("u1", &person.Person{ID: "p1", Name: "One Revised"})
	require.NoError(t, s.ApplyBatch(ctx, &b))

	p1, err := s.GetPerson(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "One Revised", p1.Name)

	_, err = s.GetPerson(ctx, "u1", "p2")
	assert.NoError(t, err)

	_, err = s.GetPerson(ctx, "u1", "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyBatchEmpty(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.ApplyBatch(context.Background(), nil))
	assert.NoError(t, s.ApplyBatch(context.Background(), &store.Batch{}))
}

func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := &store.User{
		ID: "u1", Name: "Asha", IsPublic: true,
		SelfPersonID:    "p1",
		DiscoveryFilter: store.FilterCombined,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.PutUser(ctx, u))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.True(t, got.IsPublic)
	assert.Equal(t, store.FilterCombined, got.DiscoveryFilter)

	_, err = s.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	_, err = s.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListUserIDsSorted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alice", "bob"} {
		require.NoError(t, s.PutUser(ctx, &store.User{ID: id}))
	}

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "charlie"}, ids)
}

// TestKonnectionFlow walks request -> pending -> accept -> mutual.
func TestKonnectionFlow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RequestKonnection(ctx, "alice", "bob"))

	pending, err := s.PendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, pending)

	// Not mutual yet.
	linked, err := s.AreKonnected(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, linked)

	require.NoError(t, s.AcceptKonnection(ctx, "alice", "bob"))

	// Mutual in both directions, request consumed.
	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		linked, err = s.AreKonnected(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, linked, "direction %v", pair)
	}
	pending, err = s.PendingRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, pending)

	konnected, err := s.Konnected(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, konnected)
}

func TestAcceptKonnectionWithoutRequest(t *testing.T) {
	s := openTestStore(t)

	err := s.AcceptKonnection(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, store.ErrNoPendingRequest)
}

// TestFindReferencing verifies the cross-owner scan finds every record with
// any edge kind into the target set, and nothing else.
func TestFindReferencing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	putPerson(t, s, "u1", &person.Person{ID: "target"})
	putPerson(t, s, "u2", &person.Person{ID: "byFather", FatherID: "target"})
	putPerson(t, s, "u2", &person.Person{ID: "byDivorce", DivorcedSpouseIDs: []string{"target"}})
	putPerson(t, s, "u3", &person.Person{ID: "bySibling", SiblingIDs: []string{"x", "target"}})
	putPerson(t, s, "u3", &person.Person{ID: "unrelated", SpouseIDs: []string{"someone"}})

	refs, err := s.FindReferencing(ctx, []string{"target"})
	require.NoError(t, err)
	require.Len(t, refs, 3)

	found := make(map[string]string)
	for _, ref := range refs {
		found[ref.Person.ID] = ref.OwnerID
	}
	assert.Equal(t, "u2", found["byFather"])
	assert.Equal(t, "u2", found["byDivorce"])
	assert.Equal(t, "u3", found["bySibling"])
}

// TestPersistenceAcrossReopen writes to a disk-backed store, closes it, and
// reads the data back through a fresh instance.
func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: dir, SyncWrites: true}

	s, err := New(cfg)
	require.NoError(t, err)
	putPerson(t, s, "u1", &person.Person{ID: "p1", Name: "Durable"})
	require.NoError(t, s.PutUser(context.Background(), &store.User{ID: "u1"}))
	require.NoError(t, s.Close())

	s2, err := New(cfg)
	require.NoError(t, err)
	defer s2.Close()

	p, err := s2.GetPerson(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Durable", p.Name)

	_, err = s2.GetUser(context.Background(), "u1")
	assert.NoError(t, err)
}
