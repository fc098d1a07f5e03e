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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// PersonSummary is one person as rendered in a scan result.
type PersonSummary struct {
	PersonID string `json:"personId"`
	Name     string `json:"name"`

	// Detail is the human-readable one-liner: DOB/age or N/A, living
	// status, places, religion, caste, and role.
	Detail string `json:"detail"`
}

// ContributingPair is one committed person match inside a tree result.
type ContributingPair struct {
	My    PersonSummary `json:"myPerson"`
	Other PersonSummary `json:"otherPerson"`

	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// MatchedTreeResult is one qualifying candidate tree.
type MatchedTreeResult struct {
	MatchedUserID   string `json:"matchedUserId"`
	MatchedUserName string `json:"matchedUserName"`

	// Score is the tree-level total, rounded to one decimal place.
	Score float64 `json:"score"`

	// TotalMembersInTree counts the candidate's person set, alternate
	// profiles excluded.
	TotalMembersInTree int `json:"totalMembersInTree"`

	DetailedContributingPairs []ContributingPair `json:"detailedContributingPairs"`

	// MyMatchedPersons and OtherMatchedPersons hold exactly one entry per
	// contributing pair, in pair order.
	MyMatchedPersons    []PersonSummary `json:"myMatchedPersons"`
	OtherMatchedPersons []PersonSummary `json:"otherMatchedPersons"`
}

// summarize renders the display summary for one person.
func summarize(p *person.Person, now time.Time) PersonSummary {
	return PersonSummary{
		PersonID: p.ID,
		Name:     p.Name,
		Detail:   renderDetail(p, now),
	}
}

// renderDetail builds the human-readable detail line. Absent fields are
// omitted; the explicit "N/A" DOB sentinel is rendered, not hidden.
func renderDetail(p *person.Person, now time.Time) string {
	var parts []string

	switch {
	case p.DOB.Unknown():
		parts = append(parts, "DOB N/A")
	case p.DOB.Known():
		if age, ok := p.DOB.Age(now); ok {
			parts = append(parts, fmt.Sprintf("DOB %s (age %d)", p.DOB, age))
		} else {
			parts = append(parts, fmt.Sprintf("DOB %s", p.DOB))
		}
	}

	if p.IsDeceased {
		parts = append(parts, "deceased")
	} else {
		parts = append(parts, "living")
	}

	if p.NativePlace != "" {
		parts = append(parts, "native place "+p.NativePlace)
	}
	if p.CurrentPlace != "" {
		parts = append(parts, "lives in "+p.CurrentPlace)
	}
	if p.Religion != "" {
		parts = append(parts, p.Religion)
	}
	if p.Caste != "" {
		parts = append(parts, p.Caste)
	}
	if p.Relationship != "" {
		parts = append(parts, "role: "+p.Relationship)
	}

	return strings.Join(parts, ", ")
}
