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
	"slices"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// FieldUpdates carries optional field changes; nil pointers mean "leave
// unchanged". Structural edges are never edited here — only through
// AddRelative, divorce toggles, and deletion.
type FieldUpdates struct {
	Name              *string
	AliasName         *string
	Gender            *person.Gender
	DOB               *person.FlexDate
	IsDeceased        *bool
	DeceasedDate      *person.FlexDate
	NativePlace       *string
	CurrentPlace      *string
	Religion          *string
	Caste             *string
	Relationship      *string
	SiblingOrderIndex *int

	// AnniversaryDates entries merge into the per-spouse map and are
	// mirrored onto the named spouse's record. Keys must be current or
	// former spouses of the person being edited.
	AnniversaryDates map[string]person.FlexDate
}

// UpdatePerson applies field updates and divorce toggles to one person.
//
// Description:
//
//	Field updates apply directly. Divorce toggles are independent
//	decisions, one per ever-spouse: true moves the pair's ids from the
//	spouse sets to the divorced sets on BOTH records, false moves them
//	back. A toggle matching the current state is a no-op and stages no
//	write — only actual state changes produce transactional work.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	ownerID - The tree owner.
//	personID - The record being edited.
//	upd - Optional field changes.
//	divorceToggles - Desired divorced-state per ever-spouse id.
//
// Outputs:
//
//	*person.Person - The updated record.
//	error - ErrPersonNotFound, ErrNotSpouse, or a store failure. Nothing
//	  is written on error.
func (m *Mutator) UpdatePerson(ctx context.Context, ownerID, personID string, upd FieldUpdates, divorceToggles map[string]bool) (*person.Person, error) {
	w, err := m.loadWorkspace(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	p := w.get(personID)
	if p == nil {
		return nil, fmt.Errorf("update %s: %w", personID, ErrPersonNotFound)
	}

	// Reject toggles or anniversary entries naming someone who was never
	// a spouse before any work happens.
	for spouseID := range divorceToggles {
		if !slices.Contains(p.EverSpouseIDs(), spouseID) {
			return nil, fmt.Errorf("toggle divorce with %s: %w", spouseID, ErrNotSpouse)
		}
	}
	for spouseID := range upd.AnniversaryDates {
		if !slices.Contains(p.EverSpouseIDs(), spouseID) {
			return nil, fmt.Errorf("set anniversary with %s: %w", spouseID, ErrNotSpouse)
		}
	}

	if applyFields(p, upd, w) {
		w.touch(p.ID)
	}

	// Deterministic toggle order: current spouses first, then divorced,
	// each in stored order.
	for _, spouseID := range p.EverSpouseIDs() {
		wantDivorced, ok := divorceToggles[spouseID]
		if !ok {
			continue
		}
		spouse := w.get(spouseID)
		if spouse == nil {
			return nil, fmt.Errorf("spouse %s: %w", spouseID, ErrPersonNotFound)
		}
		isDivorced := p.IsDivorcedFrom(spouseID)
		if wantDivorced == isDivorced {
			continue // no-op, no write
		}
		if wantDivorced {
			p.SpouseIDs = removeID(p.SpouseIDs, spouseID)
			p.DivorcedSpouseIDs = appendID(p.DivorcedSpouseIDs, spouseID)
			spouse.SpouseIDs = removeID(spouse.SpouseIDs, p.ID)
			spouse.DivorcedSpouseIDs = appendID(spouse.DivorcedSpouseIDs, p.ID)
		} else {
			p.DivorcedSpouseIDs = removeID(p.DivorcedSpouseIDs, spouseID)
			p.SpouseIDs = appendID(p.SpouseIDs, spouseID)
			spouse.DivorcedSpouseIDs = removeID(spouse.DivorcedSpouseIDs, p.ID)
			spouse.SpouseIDs = appendID(spouse.SpouseIDs, p.ID)
		}
		w.touch(p.ID)
		w.touch(spouse.ID)
	}

	batch := w.batch()
	if batch.Empty() {
		return p, nil
	}
	if err := m.store.ApplyBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("update %s: %w", personID, err)
	}
	m.logger.Info("person updated", "owner_id", ownerID, "person_id", personID)
	return p, nil
}

// applyFields copies set fields onto p, reporting whether anything changed.
func applyFields(p *person.Person, upd FieldUpdates, w *workspace) bool {
	changed := false
	setStr := func(dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}
	setDate := func(dst *person.FlexDate, src *person.FlexDate) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = true
		}
	}

	setStr(&p.Name, upd.Name)
	setStr(&p.AliasName, upd.AliasName)
	setStr(&p.NativePlace, upd.NativePlace)
	setStr(&p.CurrentPlace, upd.CurrentPlace)
	setStr(&p.Religion, upd.Religion)
	setStr(&p.Caste, upd.Caste)
	setStr(&p.Relationship, upd.Relationship)
	setDate(&p.DOB, upd.DOB)
	setDate(&p.DeceasedDate, upd.DeceasedDate)

	if upd.Gender != nil && p.Gender != *upd.Gender {
		p.Gender = *upd.Gender
		changed = true
	}
	if upd.IsDeceased != nil && p.IsDeceased != *upd.IsDeceased {
		p.IsDeceased = *upd.IsDeceased
		changed = true
	}
	if upd.SiblingOrderIndex != nil {
		if p.SiblingOrderIndex == nil || *p.SiblingOrderIndex != *upd.SiblingOrderIndex {
			idx := *upd.SiblingOrderIndex
			p.SiblingOrderIndex = &idx
			changed = true
		}
	}

	for spouseID, date := range upd.AnniversaryDates {
		if p.Anniversary(spouseID) == date {
			continue
		}
		if p.AnniversaryDates == nil {
			p.AnniversaryDates = map[string]person.FlexDate{}
		}
		p.AnniversaryDates[spouseID] = date
		changed = true
		// Mirror onto the spouse's record so both sides agree.
		if spouse := w.get(spouseID); spouse != nil {
			if spouse.AnniversaryDates == nil {
				spouse.AnniversaryDates = map[string]person.FlexDate{}
			}
			spouse.AnniversaryDates[p.ID] = date
			w.touch(spouse.ID)
		}
	}

	return changed
}
