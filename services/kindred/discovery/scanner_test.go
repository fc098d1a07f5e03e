// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
)

// scanStore is an in-memory store.Store that counts person-record reads, so
// tests can assert the privacy short-circuit does no candidate work.
type scanStore struct {
	mu          sync.Mutex
	users       map[string]*store.User
	persons     map[string][]*person.Person
	konnected   map[string][]string
	personReads int
}

func newScanStore() *scanStore {
	return &scanStore{
		users:     make(map[string]*store.User),
		persons:   make(map[string][]*person.Person),
		konnected: make(map[string][]string),
	}
}

func (s *scanStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personReads
}

func (s *scanStore) GetPerson(_ context.Context, ownerID, personID string) (*person.Person, error) {
	s.mu.Lock()
	s.personReads++
	defer s.mu.Unlock()
	for _, p := range s.persons[ownerID] {
		if p.ID == personID {
			return p.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *scanStore) ListPersons(_ context.Context, ownerID string) ([]*person.Person, error) {
	s.mu.Lock()
	s.personReads++
	defer s.mu.Unlock()
	out := make([]*person.Person, 0, len(s.persons[ownerID]))
	for _, p := range s.persons[ownerID] {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (s *scanStore) ApplyBatch(context.Context, *store.Batch) error { return nil }

func (s *scanStore) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *scanStore) PutUser(_ context.Context, u *store.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *scanStore) ListUserIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *scanStore) DeleteUser(_ context.Context, id string) error {
	delete(s.users, id)
	return nil
}

func (s *scanStore) Konnected(_ context.Context, userID string) ([]string, error) {
	return s.konnected[userID], nil
}

func (s *scanStore) AreKonnected(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *scanStore) RequestKonnection(context.Context, string, string) error { return nil }
func (s *scanStore) AcceptKonnection(context.Context, string, string) error {
	return store.ErrNoPendingRequest
}
func (s *scanStore) PendingRequests(context.Context, string) ([]string, error) { return nil, nil }

func (s *scanStore) FindReferencing(context.Context, []string) ([]store.OwnedPerson, error) {
	return nil, nil
}

// seedUser installs a user with a self record plus extra family members.
// The self record carries the given name, DOB and native place, which is
// enough for a threshold-exact match against an identical self.
func (s *scanStore) seedUser(id string, public bool, filter store.FilterOption, selfName, dob, place string, family ...*person.Person) {
	selfID := id + "-self"
	s.users[id] = &store.User{
		ID: id, Name: "User " + id, IsPublic: public,
		SelfPersonID: selfID, DiscoveryFilter: filter,
	}
	self := &person.Person{
		ID: selfID, Kind: person.KindSelf, Name: selfName,
		DOB: person.FlexDate(dob), NativePlace: place,
	}
	s.persons[id] = append([]*person.Person{self}, family...)
}

func quietScanner(st store.Store, opts ...ScannerOption) *Scanner {
	opts = append([]ScannerOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewScanner(st, opts...)
}

func TestScanUnauthenticated(t *testing.T) {
	s := quietScanner(newScanStore())
	ctx := context.Background()

	if _, err := s.Scan(ctx, "", store.FilterNativePlace); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty caller: err = %v, want ErrUnauthenticated", err)
	}
	if _, err := s.Scan(ctx, "ghost", store.FilterNativePlace); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("unknown caller: err = %v, want ErrUnauthenticated", err)
	}
}

// TestScanPrivateCallerZeroReads: the privacy short-circuit happens before
// any person-record access.
func TestScanPrivateCallerZeroReads(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", false, store.FilterNativePlace, "Arjun", "1962-04-18", "Pune")
	st.seedUser("other", true, "", "Arjun", "1962-04-18", "Pune")
	s := quietScanner(st)

	results, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
	if n := st.reads(); n != 0 {
		t.Errorf("person reads = %d, want 0 for a private caller", n)
	}
}

func TestScanFilterFallback(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, store.FilterNativePlace, "Arjun", "1962-04-18", "Pune")
	s := quietScanner(st)

	// Empty request filter falls back to the stored preference.
	if _, err := s.Scan(context.Background(), "caller", ""); err != nil {
		t.Errorf("fallback to stored filter failed: %v", err)
	}

	// Neither request nor profile names one.
	st.users["caller"].DiscoveryFilter = ""
	if _, err := s.Scan(context.Background(), "caller", ""); !errors.Is(err, ErrFilterNotSelected) {
		t.Errorf("err = %v, want ErrFilterNotSelected", err)
	}
}

func TestScanUnknownFilter(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	s := quietScanner(st)

	if _, err := s.Scan(context.Background(), "caller", "zodiac"); !errors.Is(err, ErrUnknownFilter) {
		t.Errorf("err = %v, want ErrUnknownFilter", err)
	}
}

func TestScanMissingFields(t *testing.T) {
	st := newScanStore()
	// Native place present, religion and caste absent.
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	s := quietScanner(st)

	_, err := s.Scan(context.Background(), "caller", store.FilterCombined)
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingFieldsError", err)
	}
	want := []string{"religion", "caste"}
	if len(missing.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", missing.Fields, want)
	}
	for i := range want {
		if missing.Fields[i] != want[i] {
			t.Errorf("Fields = %v, want %v", missing.Fields, want)
		}
	}
}

// TestScanEmptyTreeSilent: an unnamed tree is "nothing to report", not an
// error.
func TestScanEmptyTreeSilent(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "", "", "Pune")
	st.seedUser("other", true, "", "Arjun", "1962-04-18", "Pune")
	s := quietScanner(st)

	results, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}

func TestScanFindsMatch(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("match", true, "", "Arjun", "1962-04-18", "Pune",
		&person.Person{ID: "match-alt", Name: "Shadow", IsAlternateProfile: true},
		&person.Person{ID: "match-kid", Name: "Kid"},
	)
	st.seedUser("private", false, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("elsewhere", true, "", "Arjun", "1962-04-18", "Delhi")
	s := quietScanner(st)

	results, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (private and pre-filtered candidates skipped)", len(results))
	}
	r := results[0]
	if r.MatchedUserID != "match" {
		t.Errorf("MatchedUserID = %q", r.MatchedUserID)
	}
	if r.Score != 6.5 {
		t.Errorf("Score = %v, want 6.5", r.Score)
	}
	// Alternate profile excluded from the member count: self + kid.
	if r.TotalMembersInTree != 2 {
		t.Errorf("TotalMembersInTree = %d, want 2", r.TotalMembersInTree)
	}
	if len(r.DetailedContributingPairs) != 1 ||
		len(r.MyMatchedPersons) != 1 || len(r.OtherMatchedPersons) != 1 {
		t.Errorf("pair lists = %d/%d/%d, want 1 each",
			len(r.DetailedContributingPairs), len(r.MyMatchedPersons), len(r.OtherMatchedPersons))
	}
}

// stalledStore blocks candidate person reads until the context expires, to
// simulate a scan that cannot finish inside its deadline.
type stalledStore struct {
	*scanStore
}

func (s *stalledStore) GetPerson(ctx context.Context, _, _ string) (*person.Person, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestScanDeadlineExceeded: blowing the scan deadline surfaces as
// ErrScanTimeout, not as a generic internal failure.
func TestScanDeadlineExceeded(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("other", true, "", "Arjun", "1962-04-18", "Pune")
	s := quietScanner(&stalledStore{st}, WithTimeout(time.Millisecond))

	_, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if !errors.Is(err, ErrScanTimeout) {
		t.Errorf("err = %v, want ErrScanTimeout", err)
	}
}

// TestScanExcludesKonnected: already-konnected users never appear, however
// well they match.
func TestScanExcludesKonnected(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("friend", true, "", "Arjun", "1962-04-18", "Pune")
	st.konnected["caller"] = []string{"friend"}
	s := quietScanner(st)

	results, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

// TestScanOrdering: equal scores order by user id, and the order is stable
// across runs despite parallel candidate fetches.
func TestScanOrdering(t *testing.T) {
	st := newScanStore()
	st.seedUser("caller", true, "", "Arjun", "1962-04-18", "Pune")
	// zeta and beta tie at 6.5; alpha scores higher with a second pair.
	st.seedUser("zeta", true, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("beta", true, "", "Arjun", "1962-04-18", "Pune")
	st.seedUser("alpha", true, "", "Arjun", "1962-04-18", "Pune",
		&person.Person{ID: "alpha-sis", Name: "Priya", DOB: "1965-11-02", NativePlace: "Pune"},
	)
	st.persons["caller"] = append(st.persons["caller"],
		&person.Person{ID: "caller-sis", Name: "Priya", DOB: "1965-11-02", NativePlace: "Pune"})
	s := quietScanner(st, WithFetchConcurrency(3))

	first, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	wantOrder := []string{"alpha", "beta", "zeta"}
	if len(first) != len(wantOrder) {
		t.Fatalf("results = %d, want %d", len(first), len(wantOrder))
	}
	for i, want := range wantOrder {
		if first[i].MatchedUserID != want {
			t.Errorf("result[%d] = %q, want %q", i, first[i].MatchedUserID, want)
		}
	}
	if first[0].Score <= first[1].Score {
		t.Errorf("scores not descending: %v then %v", first[0].Score, first[1].Score)
	}

	for run := 0; run < 5; run++ {
		again, err := s.Scan(context.Background(), "caller", store.FilterNativePlace)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		for i := range again {
			if again[i].MatchedUserID != first[i].MatchedUserID {
				t.Fatalf("run %d order diverged at %d: %q vs %q",
					run, i, again[i].MatchedUserID, first[i].MatchedUserID)
			}
		}
	}
}
