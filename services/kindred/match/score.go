// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package match

import (
	"fmt"
	"time"
)

// Signal weights. Each signal is independent and additive; the scorer is
// symmetric in its two arguments by construction.
const (
	weightFirstNameExact = 2.0
	weightFirstNameDist1 = 1.5
	weightFirstNameDist2 = 1.0
	weightAliasExact     = 2.0
	weightDOBExact       = 2.0
	weightDOBCloseAge    = 1.5
	weightDOBBothUnknown = 0.5
	weightNativeEqual    = 1.5
	weightNativeAbsent   = 0.5
	weightDeceasedEqual  = 1.0
	weightReligionEqual  = 1.0
	weightCasteEqual     = 1.0
	weightCurrentEqual   = 1.0
	weightRoleEqual      = 0.5

	// maxNameEditDistance is exclusive: distance 3 or more contributes
	// nothing for the name signal.
	maxNameEditDistance = 3

	// closeAgeYears is the maximum age difference, in whole years, for the
	// near-DOB signal.
	closeAgeYears = 2
)

// Score computes the weighted similarity between two comparable persons.
//
// Description:
//
//	Starts at zero and adds independent weighted contributions, each
//	appending its own human-readable reason label when triggered. Pure:
//	no side effects, never fails, symmetric in p1/p2.
//
// Inputs:
//
//	p1 - The caller's person.
//	p2 - The candidate's person.
//
// Outputs:
//
//	float64 - Non-negative total score.
//	[]string - Reason labels in signal order; empty when nothing matched.
func Score(p1, p2 Comparable) (float64, []string) {
	return scoreAt(time.Now(), p1, p2)
}

// scoreAt is Score with an injected clock so age-window tests are stable.
func scoreAt(now time.Time, p1, p2 Comparable) (float64, []string) {
	var score float64
	var reasons []string

	if p1.FirstName != "" && p2.FirstName != "" {
		switch Levenshtein(p1.FirstName, p2.FirstName) {
		case 0:
			score += weightFirstNameExact
			reasons = append(reasons, "First name matches exactly")
		case 1:
			score += weightFirstNameDist1
			reasons = append(reasons, "First name differs by one letter")
		case 2:
			score += weightFirstNameDist2
			reasons = append(reasons, "First name differs by two letters")
		}
	}

	if p1.AliasName != "" && p1.AliasName == p2.AliasName {
		score += weightAliasExact
		reasons = append(reasons, "Alias name matches")
	}

	switch {
	case p1.DOB.Known() && p2.DOB.Known() && p1.DOB == p2.DOB:
		score += weightDOBExact
		reasons = append(reasons, "Date of birth matches exactly")
	case p1.DOB.Known() && p2.DOB.Known():
		if a1, ok1 := p1.DOB.Age(now); ok1 {
			if a2, ok2 := p2.DOB.Age(now); ok2 && absInt(a1-a2) <= closeAgeYears {
				score += weightDOBCloseAge
				reasons = append(reasons, fmt.Sprintf("Ages within %d years", closeAgeYears))
			}
		}
	case p1.DOB.Unknown() && p2.DOB.Unknown():
		score += weightDOBBothUnknown
		reasons = append(reasons, "Birth date unknown for both")
	}

	if p1.NativePlace != "" && p1.NativePlace == p2.NativePlace {
		score += weightNativeEqual
		reasons = append(reasons, "Native place matches")
	} else if p1.NativePlace == "" && p2.NativePlace == "" {
		score += weightNativeAbsent
		reasons = append(reasons, "Native place missing for both")
	}

	if p1.IsDeceased == p2.IsDeceased {
		score += weightDeceasedEqual
		if p1.IsDeceased {
			reasons = append(reasons, "Both deceased")
		} else {
			reasons = append(reasons, "Both living")
		}
	}

	if p1.Religion != "" && p1.Religion == p2.Religion {
		score += weightReligionEqual
		reasons = append(reasons, "Religion matches")
	}

	if p1.Caste != "" && p1.Caste == p2.Caste {
		score += weightCasteEqual
		reasons = append(reasons, "Caste matches")
	}

	if p1.CurrentPlace != "" && p1.CurrentPlace == p2.CurrentPlace {
		score += weightCurrentEqual
		reasons = append(reasons, "Current place matches")
	}

	if p1.RelationshipToOwner != "" && p1.RelationshipToOwner == p2.RelationshipToOwner {
		score += weightRoleEqual
		reasons = append(reasons, "Same role in family")
	}

	return score, reasons
}

// Levenshtein returns the classic edit distance between two strings:
// insertions, deletions, and substitutions at unit cost. Two-row dynamic
// programming, O(len(a)*len(b)) time, O(len(b)) space.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
