// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match implements the cross-tree similarity engine: person
// normalization, pairwise weighted scoring, and greedy tree matching.
//
// Matching operates on Comparable projections of person records, never on
// the records themselves. Normalization is lossy (case, whitespace) and
// exists only to make field equality checks cheap and predictable over
// noisy, partially-missing genealogical input.
package match

import (
	"strings"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// Comparable is the normalized projection of a Person used for matching.
// Empty string means "absent" for every normalized field: presence checks,
// not string-empty checks, drive the scorer.
type Comparable struct {
	// Original retains the source record for display and detail rendering.
	Original *person.Person

	// FirstName is the lowercased first whitespace token of the name.
	FirstName string

	AliasName           string
	Religion            string
	Caste               string
	RelationshipToOwner string
	Gender              string

	// NativePlace and CurrentPlace are lowercased with ALL internal
	// whitespace removed, so "New York" and "new  york" compare equal.
	NativePlace  string
	CurrentPlace string

	// DOB and IsDeceased pass through unchanged.
	DOB        person.FlexDate
	IsDeceased bool
}

// Normalize converts a raw person record into its Comparable projection.
//
// Description:
//
//	Pure and total: never fails, has no side effects, and is idempotent
//	(re-normalizing a projection's fields yields identical output).
//
// Inputs:
//
//	p - The raw record. Must not be nil.
//
// Outputs:
//
//	Comparable - The matching projection, with Original set to p.
func Normalize(p *person.Person) Comparable {
	return Comparable{
		Original:            p,
		FirstName:           p.FirstName(),
		AliasName:           lowerTrim(p.AliasName),
		Religion:            lowerTrim(p.Religion),
		Caste:               lowerTrim(p.Caste),
		RelationshipToOwner: lowerTrim(p.Relationship),
		Gender:              lowerTrim(string(p.Gender)),
		NativePlace:         normalizePlace(p.NativePlace),
		CurrentPlace:        normalizePlace(p.CurrentPlace),
		DOB:                 p.DOB,
		IsDeceased:          p.IsDeceased,
	}
}

// NormalizeAll projects a whole person set, preserving input order.
func NormalizeAll(people []*person.Person) []Comparable {
	out := make([]Comparable, 0, len(people))
	for _, p := range people {
		out = append(out, Normalize(p))
	}
	return out
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizePlace lowercases and strips all whitespace, internal included.
func normalizePlace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
