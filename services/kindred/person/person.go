// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package person defines the person record model shared by every Kindred
// algorithm: matching, traversal, layout, and mutation.
//
// # Record shape
//
// A Person is a document-store-shaped record: optional fields, string dates
// with an explicit "N/A" sentinel, and graph edges expressed as id references
// into the same owner's person set.
//
// # Graph invariants
//
// Edge fields are bidirectional by contract:
//   - A.SpouseIDs contains B iff B.SpouseIDs contains A (same for
//     DivorcedSpouseIDs and SiblingIDs).
//   - A.FatherID/MotherID, if set, reference a record whose ChildIDs
//     contains A.
//   - SpouseIDs and DivorcedSpouseIDs are disjoint; a pair is in exactly
//     one of the two at a time.
//
// The mutate package is the only writer and is responsible for keeping both
// sides of every edge in the same atomic batch. Everything else treats
// records as read-only.
package person

import (
	"slices"
	"strings"
	"time"
)

// Kind discriminates the two record roles. The shape is identical; only
// ownership semantics differ (exactly one Self record per owner).
type Kind string

const (
	// KindSelf is the tree owner's own record.
	KindSelf Kind = "self"

	// KindFamilyMember is any relative added by the owner.
	KindFamilyMember Kind = "family_member"
)

// Gender is a free-form string with three well-known values.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

// DateUnknown is the sentinel for a date the user explicitly marked as
// unknown. It is distinct from the empty string, which means the field was
// never entered. Matching logic depends on the distinction.
const DateUnknown = "N/A"

// dateLayout is the ISO date layout used for all Known dates.
const dateLayout = "2006-01-02"

// FlexDate is a three-state date: Known (ISO string), Unknown ("N/A"
// sentinel), or Absent (empty string).
type FlexDate string

// Absent reports whether the date was never entered.
func (d FlexDate) Absent() bool { return d == "" }

// Unknown reports whether the date is the explicit "N/A" sentinel.
func (d FlexDate) Unknown() bool { return string(d) == DateUnknown }

// Known reports whether the date carries a parseable value.
func (d FlexDate) Known() bool { return !d.Absent() && !d.Unknown() }

// Time parses the date. ok is false for Absent, Unknown, or malformed
// values; malformed dates never cause an error upstream, only "no value".
func (d FlexDate) Time() (time.Time, bool) {
	if !d.Known() {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(string(d)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Age returns whole years elapsed between the date and now.
func (d FlexDate) Age(now time.Time) (int, bool) {
	t, ok := d.Time()
	if !ok {
		return 0, false
	}
	years := now.Year() - t.Year()
	if now.Month() < t.Month() || (now.Month() == t.Month() && now.Day() < t.Day()) {
		years--
	}
	if years < 0 {
		return 0, false
	}
	return years, true
}

// Person is one record in an owner's person set.
type Person struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Name is the display name. Its first whitespace-delimited token is the
	// canonical matching key.
	Name      string `json:"name"`
	AliasName string `json:"aliasName,omitempty"`

	Gender Gender `json:"gender,omitempty"`

	DOB          FlexDate `json:"dob,omitempty"`
	IsDeceased   bool     `json:"isDeceased,omitempty"`
	DeceasedDate FlexDate `json:"deceasedDate,omitempty"`

	// AnniversaryDates is keyed by spouse person id. The historical model
	// carried a single scalar anniversary tied to the first spouse; keying
	// by spouse pair removes that ambiguity for remarriages.
	AnniversaryDates map[string]FlexDate `json:"anniversaryDates,omitempty"`

	// Graph edges, by id into the same owner's person set.
	FatherID          string   `json:"fatherId,omitempty"`
	MotherID          string   `json:"motherId,omitempty"`
	SpouseIDs         []string `json:"spouseIds,omitempty"`
	DivorcedSpouseIDs []string `json:"divorcedSpouseIds,omitempty"`
	ChildIDs          []string `json:"childIds,omitempty"`
	SiblingIDs        []string `json:"siblingIds,omitempty"`

	// SiblingOrderIndex orders siblings when DOB is unknown; smaller means
	// born earlier. Takes priority over DOB when present on both sides.
	SiblingOrderIndex *int `json:"siblingOrderIndex,omitempty"`

	NativePlace  string `json:"nativePlace,omitempty"`
	CurrentPlace string `json:"currentPlace,omitempty"`
	Religion     string `json:"religion,omitempty"`
	Caste        string `json:"caste,omitempty"`

	// Relationship is the free-text label of this person's relation to the
	// tree owner. It is a matching signal only, never a graph edge.
	Relationship string `json:"relationship,omitempty"`

	// IsAlternateProfile marks a soft-deleted/alias record excluded from
	// counting, matching, and traversal.
	IsAlternateProfile bool `json:"isAlternateProfile,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// FirstName returns the lowercased first whitespace-delimited token of the
// display name, or "" if the name is blank.
func (p *Person) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// EverSpouseIDs returns current spouses followed by divorced spouses.
func (p *Person) EverSpouseIDs() []string {
	out := make([]string, 0, len(p.SpouseIDs)+len(p.DivorcedSpouseIDs))
	out = append(out, p.SpouseIDs...)
	out = append(out, p.DivorcedSpouseIDs...)
	return out
}

// IsDivorcedFrom reports whether id is in the divorced-spouse set.
func (p *Person) IsDivorcedFrom(id string) bool {
	return slices.Contains(p.DivorcedSpouseIDs, id)
}

// Anniversary returns the anniversary date for the marriage with spouseID,
// or an absent date when none is recorded.
func (p *Person) Anniversary(spouseID string) FlexDate {
	if p.AnniversaryDates == nil {
		return ""
	}
	return p.AnniversaryDates[spouseID]
}

// Clone returns a deep copy. Mutation code clones before staging writes so
// in-memory snapshots held by callers are never aliased.
func (p *Person) Clone() *Person {
	cp := *p
	cp.SpouseIDs = slices.Clone(p.SpouseIDs)
	cp.DivorcedSpouseIDs = slices.Clone(p.DivorcedSpouseIDs)
	cp.ChildIDs = slices.Clone(p.ChildIDs)
	cp.SiblingIDs = slices.Clone(p.SiblingIDs)
	if p.SiblingOrderIndex != nil {
		idx := *p.SiblingOrderIndex
		cp.SiblingOrderIndex = &idx
	}
	if p.AnniversaryDates != nil {
		cp.AnniversaryDates = make(map[string]FlexDate, len(p.AnniversaryDates))
		for k, v := range p.AnniversaryDates {
			cp.AnniversaryDates[k] = v
		}
	}
	return &cp
}

// SiblingLess is the canonical sibling ordering: SiblingOrderIndex when
// present on both, then DOB, then creation time, then name. Ascending with
// tiebreak at every level.
func SiblingLess(a, b *Person) bool {
	if a.SiblingOrderIndex != nil && b.SiblingOrderIndex != nil {
		if *a.SiblingOrderIndex != *b.SiblingOrderIndex {
			return *a.SiblingOrderIndex < *b.SiblingOrderIndex
		}
	}
	if c := compareDates(a.DOB, b.DOB); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Name < b.Name
}

// SpouseLess orders two spouses of root: anniversary date of each marriage,
// then DOB, then creation time, then name. This ordering drives the visible
// left-to-right spouse position and the child-group color index.
func SpouseLess(root, a, b *Person) bool {
	if c := compareDates(root.Anniversary(a.ID), root.Anniversary(b.ID)); c != 0 {
		return c < 0
	}
	if c := compareDates(a.DOB, b.DOB); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Name < b.Name
}

// compareDates orders Known dates ascending; records without a usable date
// sort after those with one, and equal with each other.
func compareDates(a, b FlexDate) int {
	ta, oka := a.Time()
	tb, okb := b.Time()
	switch {
	case oka && okb:
		return ta.Compare(tb)
	case oka:
		return -1
	case okb:
		return 1
	default:
		return 0
	}
}
