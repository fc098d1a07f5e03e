// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/store"
)

// Relationship is the stated relation of a new person to the anchor. The
// label drives which structural edges get created.
type Relationship string

const (
	RelFather   Relationship = "Father"
	RelMother   Relationship = "Mother"
	RelSpouse   Relationship = "Spouse"
	RelBrother  Relationship = "Brother"
	RelSister   Relationship = "Sister"
	RelSon      Relationship = "Son"
	RelDaughter Relationship = "Daughter"
)

// NewPersonInput carries the field values for a person being created.
type NewPersonInput struct {
	Name         string
	AliasName    string
	Gender       person.Gender
	DOB          person.FlexDate
	IsDeceased   bool
	DeceasedDate person.FlexDate
	NativePlace  string
	CurrentPlace string
	Religion     string
	Caste        string

	// AnniversaryDate records the marriage date for spouse adds, keyed to
	// the anchor on both records.
	AnniversaryDate person.FlexDate

	// CoParentID names the other parent for son/daughter adds. Required
	// when the anchor has more than one ever-spouse.
	CoParentID string
}

// Mutator applies graph edits through atomic store batches.
//
// Thread Safety: safe for concurrent use; each operation reads a snapshot
// and commits one batch.
type Mutator struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Mutator) { m.logger = l }
}

// WithClock injects the record-creation clock. Tests use it for
// deterministic collection order.
func WithClock(now func() time.Time) Option {
	return func(m *Mutator) { m.now = now }
}

// WithIDGenerator injects the id generator. Default: random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(m *Mutator) { m.newID = gen }
}

// New creates a Mutator over the given store.
func New(s store.Store, opts ...Option) *Mutator {
	m := &Mutator{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// workspace is an in-memory copy of one owner's person set with dirty
// tracking. Records are cloned on first touch so the store's snapshots are
// never aliased; dirty records are staged into one batch at the end.
type workspace struct {
	ownerID string
	set     map[string]*person.Person
	order   []string // collection order, for deterministic scans
	dirty   map[string]bool
	deleted map[string]bool
}

func (m *Mutator) loadWorkspace(ctx context.Context, ownerID string) (*workspace, error) {
	people, err := m.store.ListPersons(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load person set for %s: %w", ownerID, err)
	}
	w := &workspace{
		ownerID: ownerID,
		set:     make(map[string]*person.Person, len(people)),
		order:   make([]string, 0, len(people)),
		dirty:   make(map[string]bool),
		deleted: make(map[string]bool),
	}
	for _, p := range people {
		w.set[p.ID] = p.Clone()
		w.order = append(w.order, p.ID)
	}
	return w, nil
}

// get returns a record or nil.
func (w *workspace) get(id string) *person.Person {
	if id == "" {
		return nil
	}
	return w.set[id]
}

// touch marks a record dirty.
func (w *workspace) touch(id string) { w.dirty[id] = true }

// add inserts a brand-new record, already dirty.
func (w *workspace) add(p *person.Person) {
	w.set[p.ID] = p
	w.order = append(w.order, p.ID)
	w.dirty[p.ID] = true
}

// remove marks a record deleted.
func (w *workspace) remove(id string) {
	w.deleted[id] = true
	delete(w.dirty, id)
}

// batch stages every dirty and deleted record, in collection order.
func (w *workspace) batch() *store.Batch {
	var b store.Batch
	for _, id := range w.order {
		switch {
		case w.deleted[id]:
			b.Delete(w.ownerID, id)
		case w.dirty[id]:
			b.Put(w.ownerID, w.set[id])
		}
	}
	return &b
}

// CreateSelf creates the owner's self profile record. Used at signup; the
// record anchors everything else in the tree.
func (m *Mutator) CreateSelf(ctx context.Context, ownerID string, in NewPersonInput) (*person.Person, error) {
	p := m.newPerson(person.KindSelf, in)
	var b store.Batch
	b.Put(ownerID, p)
	if err := m.store.ApplyBatch(ctx, &b); err != nil {
		return nil, fmt.Errorf("create self profile: %w", err)
	}
	return p, nil
}

// AddRelative creates a new person anchored to an existing one and applies
// every structural edge the relationship implies, atomically.
//
// Description:
//
//	Father/Mother: the new person fills the anchor's missing parent slot,
//	spouse-links to the already-known other parent, and adopts all of the
//	anchor's existing siblings into the same slot. Spouse: bidirectional
//	spouse link plus retroactive relinking of the anchor's children whose
//	other parent slot is empty. Brother/Sister: inherits the anchor's
//	parents verbatim and joins the full sibling clique. Son/Daughter:
//	parent slots resolve from the anchor's gender and the optional
//	co-parent, then the whole set is scanned for existing children of the
//	same two parents to join the sibling clique.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ownerID - The tree owner.
//	anchorID - The existing person the relationship is stated against.
//	rel - The relationship label.
//	in - Field values for the new person.
//
// Outputs:
//
//	*person.Person - The created record.
//	error - ErrAnchorNotFound, ErrParentExists, ErrCoParentRequired,
//	  ErrUnknownRelationship, or a store failure. Nothing is written on
//	  error.
func (m *Mutator) AddRelative(ctx context.Context, ownerID, anchorID string, rel Relationship, in NewPersonInput) (*person.Person, error) {
	w, err := m.loadWorkspace(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	anchor := w.get(anchorID)
	if anchor == nil {
		return nil, fmt.Errorf("add %s to %s: %w", rel, anchorID, ErrAnchorNotFound)
	}

	p := m.newPerson(person.KindFamilyMember, in)
	p.Relationship = string(rel)
	w.add(p)

	switch rel {
	case RelFather, RelMother:
		if err := m.linkParent(w, anchor, p, rel == RelFather); err != nil {
			return nil, err
		}
	case RelSpouse:
		m.linkSpouse(w, anchor, p, in.AnniversaryDate)
	case RelBrother, RelSister:
		m.linkSibling(w, anchor, p)
	case RelSon, RelDaughter:
		if err := m.linkChild(w, anchor, p, in.CoParentID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("add relative %q: %w", rel, ErrUnknownRelationship)
	}

	if err := m.store.ApplyBatch(ctx, w.batch()); err != nil {
		return nil, fmt.Errorf("add %s: %w", rel, err)
	}
	m.logger.Info("relative added",
		"owner_id", ownerID, "person_id", p.ID, "anchor_id", anchorID, "relationship", rel)
	return p, nil
}

func (m *Mutator) newPerson(kind person.Kind, in NewPersonInput) *person.Person {
	return &person.Person{
		ID:           m.newID(),
		Kind:         kind,
		Name:         in.Name,
		AliasName:    in.AliasName,
		Gender:       in.Gender,
		DOB:          in.DOB,
		IsDeceased:   in.IsDeceased,
		DeceasedDate: in.DeceasedDate,
		NativePlace:  in.NativePlace,
		CurrentPlace: in.CurrentPlace,
		Religion:     in.Religion,
		Caste:        in.Caste,
		CreatedAt:    m.now(),
	}
}

// linkParent wires a new father or mother of the anchor, marrying them to
// the already-known other parent and adopting the anchor's siblings. The
// anchor's slot must be empty; sibling slots are filled only when empty, so
// an already-known parent is never displaced into a one-way ChildIDs edge.
func (m *Mutator) linkParent(w *workspace, anchor, parent *person.Person, asFather bool) error {
	slot := func(p *person.Person) string {
		if asFather {
			return p.FatherID
		}
		return p.MotherID
	}
	setSlot := func(child *person.Person) {
		if asFather {
			child.FatherID = parent.ID
		} else {
			child.MotherID = parent.ID
		}
		parent.ChildIDs = appendID(parent.ChildIDs, child.ID)
		w.touch(child.ID)
	}

	if slot(anchor) != "" {
		return fmt.Errorf("add parent to %s: %w", anchor.ID, ErrParentExists)
	}
	setSlot(anchor)

	// Marrying into the family: spouse-link to the other parent if known.
	otherID := anchor.MotherID
	if !asFather {
		otherID = anchor.FatherID
	}
	if other := w.get(otherID); other != nil {
		parent.SpouseIDs = appendID(parent.SpouseIDs, other.ID)
		other.SpouseIDs = appendID(other.SpouseIDs, parent.ID)
		w.touch(other.ID)
	}

	// Every existing sibling of the anchor with the slot still empty gets
	// the same parent.
	for _, sibID := range anchor.SiblingIDs {
		if sib := w.get(sibID); sib != nil && slot(sib) == "" {
			setSlot(sib)
		}
	}
	return nil
}

// linkSpouse wires a new non-divorced spouse and retroactively relinks the
// anchor's children whose other parent slot is empty.
func (m *Mutator) linkSpouse(w *workspace, anchor, spouse *person.Person, anniversary person.FlexDate) {
	anchor.SpouseIDs = appendID(anchor.SpouseIDs, spouse.ID)
	spouse.SpouseIDs = appendID(spouse.SpouseIDs, anchor.ID)
	if !anniversary.Absent() {
		if anchor.AnniversaryDates == nil {
			anchor.AnniversaryDates = map[string]person.FlexDate{}
		}
		if spouse.AnniversaryDates == nil {
			spouse.AnniversaryDates = map[string]person.FlexDate{}
		}
		anchor.AnniversaryDates[spouse.ID] = anniversary
		spouse.AnniversaryDates[anchor.ID] = anniversary
	}
	w.touch(anchor.ID)

	// Retroactive child relinking: fill the empty other-parent slot when
	// the new spouse's gender fits it. An Other-gender spouse fills
	// whichever slot is open.
	for _, childID := range anchor.ChildIDs {
		child := w.get(childID)
		if child == nil {
			continue
		}
		switch {
		case child.FatherID == anchor.ID && child.MotherID == "":
			if spouse.Gender == person.Female || spouse.Gender == person.Other {
				child.MotherID = spouse.ID
				spouse.ChildIDs = appendID(spouse.ChildIDs, child.ID)
				w.touch(child.ID)
			}
		case child.MotherID == anchor.ID && child.FatherID == "":
			if spouse.Gender == person.Male || spouse.Gender == person.Other {
				child.FatherID = spouse.ID
				spouse.ChildIDs = appendID(spouse.ChildIDs, child.ID)
				w.touch(child.ID)
			}
		}
	}
}

// linkSibling inherits the anchor's parents verbatim and joins the full
// sibling clique.
func (m *Mutator) linkSibling(w *workspace, anchor, sib *person.Person) {
	sib.FatherID = anchor.FatherID
	sib.MotherID = anchor.MotherID

	clique := append([]string{anchor.ID}, anchor.SiblingIDs...)
	for _, id := range clique {
		existing := w.get(id)
		if existing == nil {
			continue
		}
		existing.SiblingIDs = appendID(existing.SiblingIDs, sib.ID)
		sib.SiblingIDs = appendID(sib.SiblingIDs, existing.ID)
		w.touch(existing.ID)
	}

	for _, parentID := range []string{anchor.FatherID, anchor.MotherID} {
		if parent := w.get(parentID); parent != nil {
			parent.ChildIDs = appendID(parent.ChildIDs, sib.ID)
			w.touch(parent.ID)
		}
	}
}

// linkChild resolves the child's parent slots from the anchor's gender and
// the optional co-parent, then discovers existing full siblings.
func (m *Mutator) linkChild(w *workspace, anchor, child *person.Person, coParentID string) error {
	everSpouses := anchor.EverSpouseIDs()
	if coParentID == "" {
		if len(everSpouses) > 1 {
			return fmt.Errorf("add child to %s: %w", anchor.ID, ErrCoParentRequired)
		}
		if len(everSpouses) == 1 {
			coParentID = everSpouses[0]
		}
	}
	var coParent *person.Person
	if coParentID != "" {
		coParent = w.get(coParentID)
		if coParent == nil {
			return fmt.Errorf("co-parent %s: %w", coParentID, ErrPersonNotFound)
		}
	}

	father, mother := resolveParentSlots(anchor, coParent)
	if father != nil {
		child.FatherID = father.ID
		father.ChildIDs = appendID(father.ChildIDs, child.ID)
		w.touch(father.ID)
	}
	if mother != nil {
		child.MotherID = mother.ID
		mother.ChildIDs = appendID(mother.ChildIDs, child.ID)
		w.touch(mother.ID)
	}

	// Existing-sibling discovery: anyone already sharing both resolved
	// parent ids becomes a sibling, full clique. This is how children
	// added independently to the same two parents end up linked without
	// being told explicitly.
	if child.FatherID != "" && child.MotherID != "" {
		for _, id := range w.order {
			other := w.get(id)
			if other == nil || other.ID == child.ID {
				continue
			}
			if other.FatherID == child.FatherID && other.MotherID == child.MotherID {
				other.SiblingIDs = appendID(other.SiblingIDs, child.ID)
				child.SiblingIDs = appendID(child.SiblingIDs, other.ID)
				w.touch(other.ID)
			}
		}
	}
	return nil
}

// resolveParentSlots decides which of anchor/coParent is father and which
// is mother. An Other-gender anchor defers to the co-parent's gender; when
// that is also unknown, anchor=father, co-parent=mother.
func resolveParentSlots(anchor, coParent *person.Person) (father, mother *person.Person) {
	switch anchor.Gender {
	case person.Male:
		return anchor, coParent
	case person.Female:
		return coParent, anchor
	default:
		if coParent != nil {
			switch coParent.Gender {
			case person.Male:
				return coParent, anchor
			case person.Female:
				return anchor, coParent
			}
		}
		return anchor, coParent
	}
}

// appendID appends id if not already present, preserving insertion order.
func appendID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// removeID removes id, preserving order of the rest.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
