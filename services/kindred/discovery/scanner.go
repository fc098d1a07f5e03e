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
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/Kindred/services/kindred/match"
	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
	"github.com/AleutianAI/Kindred/services/kindred/telemetry"
)

// DefaultScanTimeout bounds a whole scan. The scan is linear in the number
// of other users and their tree sizes; exceeding the deadline is a
// recoverable failure, not a crash.
const DefaultScanTimeout = 30 * time.Second

// DefaultFetchConcurrency bounds parallel candidate record fetches.
// Candidates are independent; only fetching is parallelized, and results
// are re-ordered deterministically afterwards.
const DefaultFetchConcurrency = 4

// Scanner runs cross-user tree-similarity scans.
//
// Thread Safety: safe for concurrent use.
type Scanner struct {
	store   store.Store
	logger  *slog.Logger
	metrics *telemetry.Metrics
	timeout time.Duration
	limit   int
	now     func() time.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// WithMetrics attaches scan instruments. Nil metrics are skipped.
func WithMetrics(m *telemetry.Metrics) ScannerOption {
	return func(s *Scanner) { s.metrics = m }
}

// WithTimeout overrides the overall scan deadline.
func WithTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithFetchConcurrency overrides the candidate fetch parallelism.
func WithFetchConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock injects the clock used for ages and scan timing.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// NewScanner creates a Scanner over the given store.
func NewScanner(st store.Store, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:   st,
		logger:  slog.Default(),
		timeout: DefaultScanTimeout,
		limit:   DefaultFetchConcurrency,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callerProfile is the caller-side state shared by every candidate check.
type callerProfile struct {
	user        *store.User
	comparables []match.Comparable
	self        match.Comparable
	filter      store.FilterOption
}

// Scan finds other users' trees that plausibly overlap the caller's.
//
// Description:
//
//	Validates preconditions, short-circuits private callers with zero
//	candidate reads, then evaluates every other public, non-konnected
//	user: a cheap symmetric pre-filter on normalized profile fields, then
//	the full greedy tree match. Candidate fetches run on a bounded group;
//	evaluation output is indexed so result order is deterministic
//	regardless of completion order.
//
// Inputs:
//
//	ctx - Context; the scan adds its own overall deadline.
//	callerID - Authenticated caller identity. Empty means unauthenticated.
//	filter - Pre-filter option; empty falls back to the caller's stored
//	  preference.
//
// Outputs:
//
//	[]MatchedTreeResult - Qualifying matches, score-descending then by
//	  user id. Empty (never nil error) for "nothing to report" outcomes.
//	error - ErrUnauthenticated, ErrFilterNotSelected, ErrUnknownFilter,
//	  *MissingFieldsError, ErrScanTimeout, or an internal store failure
//	  carrying the caller id for support correlation.
func (s *Scanner) Scan(ctx context.Context, callerID string, filter store.FilterOption) ([]MatchedTreeResult, error) {
	start := s.now()
	ctx, span := telemetry.Tracer().Start(ctx, "discovery.scan")
	defer span.End()

	results, err := s.scan(ctx, callerID, filter)

	if s.metrics != nil {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrScanTimeout):
			outcome = "timeout"
		case err != nil:
			outcome = "error"
		}
		s.metrics.ScansTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", outcome)))
		s.metrics.ScanDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.ScanMatches.Add(ctx, int64(len(results)))
	}
	return results, err
}

func (s *Scanner) scan(ctx context.Context, callerID string, filter store.FilterOption) ([]MatchedTreeResult, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	caller, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("scan for caller %s: %w", callerID, err)
	}

	// Privacy first: a private caller never triggers a single candidate
	// read.
	if !caller.IsPublic {
		s.logger.Debug("scan short-circuited for private profile", "caller_id", callerID)
		return []MatchedTreeResult{}, nil
	}

	if filter == "" {
		filter = caller.DiscoveryFilter
	}
	if filter == "" {
		return nil, ErrFilterNotSelected
	}

	profile, empty, err := s.loadCallerProfile(ctx, caller, filter)
	if err != nil {
		return nil, err
	}
	if empty {
		return []MatchedTreeResult{}, nil
	}

	konnected, err := s.store.Konnected(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("scan for caller %s: %w", callerID, err)
	}
	excluded := map[string]bool{callerID: true}
	for _, id := range konnected {
		excluded[id] = true
	}

	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan for caller %s: %w", callerID, err)
	}
	var candidates []string
	for _, id := range userIDs {
		if !excluded[id] {
			candidates = append(candidates, id)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Indexed output keeps result assembly deterministic while fetches
	// run in parallel.
	slots := make([]*MatchedTreeResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, candidateID := range candidates {
		g.Go(func() error {
			result, err := s.evaluateCandidate(gctx, profile, candidateID)
			if err != nil {
				return err
			}
			slots[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (caller %s)", ErrScanTimeout, callerID)
		}
		return nil, fmt.Errorf("scan for caller %s: %w", callerID, err)
	}

	results := make([]MatchedTreeResult, 0)
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MatchedUserID < results[j].MatchedUserID
	})

	if s.metrics != nil {
		s.metrics.ScanCandidates.Add(ctx, int64(len(candidates)))
	}
	s.logger.Info("discovery scan complete",
		"caller_id", callerID, "candidates", len(candidates), "matches", len(results))
	return results, nil
}

// loadCallerProfile loads and validates the caller side. empty=true means a
// silent empty result (empty tree, no named individuals).
func (s *Scanner) loadCallerProfile(ctx context.Context, caller *store.User, filter store.FilterOption) (*callerProfile, bool, error) {
	people, err := s.store.ListPersons(ctx, caller.ID)
	if err != nil {
		return nil, false, fmt.Errorf("scan for caller %s: %w", caller.ID, err)
	}
	comparables := match.NormalizeAll(people)
	if !hasNamed(comparables) {
		return nil, true, nil
	}

	self, ok := findSelf(comparables, caller.SelfPersonID)
	if !ok {
		return nil, true, nil
	}

	var missing []string
	switch filter {
	case store.FilterNativePlace:
		if self.NativePlace == "" {
			missing = append(missing, "nativePlace")
		}
	case store.FilterReligionAndCaste:
		if self.Religion == "" {
			missing = append(missing, "religion")
		}
		if self.Caste == "" {
			missing = append(missing, "caste")
		}
	case store.FilterCombined:
		if self.NativePlace == "" {
			missing = append(missing, "nativePlace")
		}
		if self.Religion == "" {
			missing = append(missing, "religion")
		}
		if self.Caste == "" {
			missing = append(missing, "caste")
		}
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}
	if len(missing) > 0 {
		return nil, false, &MissingFieldsError{Fields: missing}
	}

	return &callerProfile{
		user:        caller,
		comparables: comparables,
		self:        self,
		filter:      filter,
	}, false, nil
}

// evaluateCandidate runs the pre-filter and full tree match for one
// candidate. A nil result means "no match", not an error.
func (s *Scanner) evaluateCandidate(ctx context.Context, profile *callerProfile, candidateID string) (*MatchedTreeResult, error) {
	candidate, err := s.store.GetUser(ctx, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !candidate.IsPublic {
		return nil, nil
	}

	// Cheap field-equality screen before any full tree comparison.
	candidateSelfRecord, err := s.store.GetPerson(ctx, candidateID, candidate.SelfPersonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	candidateSelf := match.Normalize(candidateSelfRecord)
	if !passesPreFilter(profile.filter, profile.self, candidateSelf) {
		return nil, nil
	}

	theirPeople, err := s.store.ListPersons(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	theirs := match.NormalizeAll(theirPeople)
	if !hasNamed(theirs) {
		return nil, nil
	}

	outcome := match.CompareTrees(profile.comparables, theirs)
	if !outcome.IsSimilar {
		return nil, nil
	}

	now := s.now()
	result := &MatchedTreeResult{
		MatchedUserID:      candidate.ID,
		MatchedUserName:    candidate.Name,
		Score:              math.Round(outcome.Score*10) / 10,
		TotalMembersInTree: countMembers(theirPeople),
	}
	for _, pair := range outcome.Pairs {
		my := summarize(pair.Mine.Original, now)
		other := summarize(pair.Theirs.Original, now)
		result.DetailedContributingPairs = append(result.DetailedContributingPairs, ContributingPair{
			My:      my,
			Other:   other,
			Score:   pair.Score,
			Reasons: pair.Reasons,
		})
		result.MyMatchedPersons = append(result.MyMatchedPersons, my)
		result.OtherMatchedPersons = append(result.OtherMatchedPersons, other)
	}
	return result, nil
}

// passesPreFilter applies the symmetric candidate screen for the filter.
func passesPreFilter(filter store.FilterOption, mine, theirs match.Comparable) bool {
	switch filter {
	case store.FilterNativePlace:
		return mine.NativePlace == theirs.NativePlace
	case store.FilterReligionAndCaste:
		return mine.Religion == theirs.Religion && mine.Caste == theirs.Caste
	case store.FilterCombined:
		return mine.NativePlace == theirs.NativePlace &&
			mine.Religion == theirs.Religion &&
			mine.Caste == theirs.Caste
	default:
		return false
	}
}

// hasNamed reports whether any non-alternate person has a first name.
func hasNamed(comparables []match.Comparable) bool {
	for _, c := range comparables {
		if c.FirstName != "" && (c.Original == nil || !c.Original.IsAlternateProfile) {
			return true
		}
	}
	return false
}

// findSelf locates the caller's self record, by id first, Kind fallback.
func findSelf(comparables []match.Comparable, selfID string) (match.Comparable, bool) {
	for _, c := range comparables {
		if c.Original != nil && c.Original.ID == selfID {
			return c, true
		}
	}
	for _, c := range comparables {
		if c.Original != nil && c.Original.Kind == person.KindSelf {
			return c, true
		}
	}
	return match.Comparable{}, false
}

// countMembers counts persons excluding alternate profiles.
func countMembers(people []*person.Person) int {
	n := 0
	for _, p := range people {
		if !p.IsAlternateProfile {
			n++
		}
	}
	return n
}
