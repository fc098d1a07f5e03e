// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kindred is the HTTP service layer: it composes the store, the
// discovery scanner, the graph mutator, the traversal engine, and the
// relationship describer behind the /v1/kindred API.
package kindred

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/Kindred/services/kindred/describe"
	"github.com/AleutianAI/Kindred/services/kindred/discovery"
	"github.com/AleutianAI/Kindred/services/kindred/mutate"
	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
	"github.com/AleutianAI/Kindred/services/kindred/telemetry"
	"github.com/AleutianAI/Kindred/services/kindred/traverse"
)

// ServiceVersion is the Kindred service version.
const ServiceVersion = "0.1.0"

// ServiceConfig wires the service's collaborators. Store is required;
// everything else has a usable default or is optional.
type ServiceConfig struct {
	Store store.Store

	// Describer is optional; nil disables POST /tree/path/describe.
	Describer describe.Describer

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics instruments are optional.
	Metrics *telemetry.Metrics

	// ScannerOptions are passed through to the discovery scanner.
	ScannerOptions []discovery.ScannerOption

	// MutatorOptions are passed through to the graph mutator.
	MutatorOptions []mutate.Option
}

// Service implements the Kindred operations the handlers expose.
//
// Thread Safety: safe for concurrent use.
type Service struct {
	store     store.Store
	scanner   *discovery.Scanner
	mutator   *mutate.Mutator
	describer describe.Describer
	logger    *slog.Logger
	metrics   *telemetry.Metrics
}

// NewService creates the service from the given config.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scanOpts := append([]discovery.ScannerOption{
		discovery.WithLogger(logger),
		discovery.WithMetrics(cfg.Metrics),
	}, cfg.ScannerOptions...)
	mutOpts := append([]mutate.Option{mutate.WithLogger(logger)}, cfg.MutatorOptions...)

	return &Service{
		store:     cfg.Store,
		scanner:   discovery.NewScanner(cfg.Store, scanOpts...),
		mutator:   mutate.New(cfg.Store, mutOpts...),
		describer: cfg.Describer,
		logger:    logger,
		metrics:   cfg.Metrics,
	}
}

// DescriberEnabled reports whether path describing is available.
func (s *Service) DescriberEnabled() bool { return s.describer != nil }

// Scan runs a discovery scan for the caller.
func (s *Service) Scan(ctx context.Context, callerID string, filter store.FilterOption) ([]discovery.MatchedTreeResult, error) {
	return s.scanner.Scan(ctx, callerID, filter)
}

// Tree returns the caller's full person set in collection order.
func (s *Service) Tree(ctx context.Context, callerID string) ([]*person.Person, error) {
	return s.store.ListPersons(ctx, callerID)
}

// personSet loads the caller's tree keyed by id.
func (s *Service) personSet(ctx context.Context, callerID string) (map[string]*person.Person, error) {
	people, err := s.store.ListPersons(ctx, callerID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]*person.Person, len(people))
	for _, p := range people {
		set[p.ID] = p
	}
	return set, nil
}

// resolveRoot defaults an empty root id to the caller's self record.
func (s *Service) resolveRoot(ctx context.Context, callerID, rootID string) (string, error) {
	if rootID != "" {
		return rootID, nil
	}
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return "", err
	}
	if u.SelfPersonID == "" {
		return "", ErrNoSelf
	}
	return u.SelfPersonID, nil
}

// Generations computes the generation map rooted at rootID (defaulting to
// the caller's self record).
func (s *Service) Generations(ctx context.Context, callerID, rootID string) (map[string]int, error) {
	rootID, err := s.resolveRoot(ctx, callerID, rootID)
	if err != nil {
		return nil, err
	}
	set, err := s.personSet(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return traverse.AssignGenerations(rootID, set)
}

// Path finds the fewest-hops relationship path between two persons in the
// caller's tree.
func (s *Service) Path(ctx context.Context, callerID, fromID, toID string) (*traverse.PathResult, error) {
	fromID, err := s.resolveRoot(ctx, callerID, fromID)
	if err != nil {
		return nil, err
	}
	set, err := s.personSet(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return traverse.FindPath(fromID, toID, set)
}

// DescribePath finds the path and asks the describer to name it.
func (s *Service) DescribePath(ctx context.Context, callerID, fromID, toID string) (*traverse.PathResult, *describe.Description, error) {
	if s.describer == nil {
		return nil, nil, ErrDescriberDisabled
	}
	result, err := s.Path(ctx, callerID, fromID, toID)
	if err != nil {
		return nil, nil, err
	}
	if !result.Found {
		return result, nil, nil
	}
	desc, err := s.describer.Describe(ctx, describe.BuildRequest(result))
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.DescriberRequestsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
	}
	if err != nil {
		return result, nil, fmt.Errorf("describe path for caller %s: %w", callerID, err)
	}
	return result, desc, nil
}

// Layout derives the renderable three-row layout around rootID.
func (s *Service) Layout(ctx context.Context, callerID, rootID string) (*traverse.Layout, error) {
	rootID, err := s.resolveRoot(ctx, callerID, rootID)
	if err != nil {
		return nil, err
	}
	set, err := s.personSet(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return traverse.DeriveLayout(rootID, set)
}

// CreateSelf creates the caller's own person record and links it on the
// user record. Fails if one already exists.
func (s *Service) CreateSelf(ctx context.Context, callerID string, in mutate.NewPersonInput) (*person.Person, error) {
	u, err := s.store.GetUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if u.SelfPersonID != "" {
		if _, err := s.store.GetPerson(ctx, callerID, u.SelfPersonID); err == nil {
			return nil, ErrSelfExists
		}
	}
	p, err := s.mutator.CreateSelf(ctx, callerID, in)
	if err != nil {
		return nil, err
	}
	u.SelfPersonID = p.ID
	if err := s.store.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("link self record for caller %s: %w", callerID, err)
	}
	s.countMutation(ctx, "create_self")
	return p, nil
}

// AddRelative creates a new person linked to the anchor by the given
// relationship.
func (s *Service) AddRelative(ctx context.Context, callerID, anchorID string, rel mutate.Relationship, in mutate.NewPersonInput) (*person.Person, error) {
	p, err := s.mutator.AddRelative(ctx, callerID, anchorID, rel, in)
	if err != nil {
		return nil, err
	}
	s.countMutation(ctx, "add")
	return p, nil
}

// UpdatePerson edits profile fields and divorce state.
func (s *Service) UpdatePerson(ctx context.Context, callerID, personID string, upd mutate.FieldUpdates, divorceToggles map[string]bool) (*person.Person, error) {
	p, err := s.mutator.UpdatePerson(ctx, callerID, personID, upd, divorceToggles)
	if err != nil {
		return nil, err
	}
	s.countMutation(ctx, "update")
	return p, nil
}

// DeletePerson removes a person and cascades reference cleanup.
func (s *Service) DeletePerson(ctx context.Context, callerID, personID string) error {
	if err := s.mutator.DeletePerson(ctx, callerID, personID); err != nil {
		return err
	}
	s.countMutation(ctx, "delete")
	return nil
}

// DeleteAccount removes the caller's entire data footprint: every person
// record, every inbound reference from other users' trees, and the user
// record itself.
func (s *Service) DeleteAccount(ctx context.Context, callerID string) error {
	if err := s.mutator.DeleteUserData(ctx, callerID); err != nil {
		return err
	}
	s.countMutation(ctx, "delete_user")
	return nil
}

// Konnections returns the caller's accepted and pending konnections.
func (s *Service) Konnections(ctx context.Context, callerID string) (accepted, pending []string, err error) {
	accepted, err = s.store.Konnected(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	pending, err = s.store.PendingRequests(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	return accepted, pending, nil
}

// RequestKonnection records a konnection request to another user.
func (s *Service) RequestKonnection(ctx context.Context, callerID, otherID string) error {
	if _, err := s.store.GetUser(ctx, otherID); err != nil {
		return err
	}
	return s.store.RequestKonnection(ctx, callerID, otherID)
}

// AcceptKonnection accepts a pending request from another user, creating
// the mutual link.
func (s *Service) AcceptKonnection(ctx context.Context, callerID, otherID string) error {
	return s.store.AcceptKonnection(ctx, otherID, callerID)
}

// Ready reports whether the store answers queries.
func (s *Service) Ready(ctx context.Context) bool {
	_, err := s.store.ListUserIDs(ctx)
	return err == nil
}

// EnsureUser creates the account record on first contact. Identity is
// injected by the deployment's auth layer; the record just has to exist.
func (s *Service) EnsureUser(ctx context.Context, callerID, name string) (*store.User, error) {
	u, err := s.store.GetUser(ctx, callerID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	u = &store.User{ID: callerID, Name: name, CreatedAt: time.Now()}
	if err := s.store.PutUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) countMutation(ctx context.Context, op string) {
	if s.metrics == nil {
		return
	}
	s.metrics.MutationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("operation", op)))
}
