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

import "time"

// Thresholds for declaring a pair and a whole tree similar. Both sit at 6.5
// so a single strong pair (e.g. exact name + exact DOB + native place +
// living status) is enough to surface a tree.
const (
	// PairThreshold is the minimum pairwise score for a pair to be
	// committed. A best-match below it contributes nothing at all.
	PairThreshold = 6.5

	// TreeThreshold is the minimum accumulated committed-pair total for a
	// tree to be declared similar.
	TreeThreshold = 6.5
)

// Pair is one committed person-to-person match.
type Pair struct {
	// Mine and Theirs are the matched projections, caller side first.
	Mine   Comparable
	Theirs Comparable

	// Score is the pairwise score that committed this pair.
	Score float64

	// Reasons are the human-readable signal labels, in signal order.
	Reasons []string
}

// TreeResult is the outcome of comparing two whole trees.
type TreeResult struct {
	// IsSimilar is true when Score >= TreeThreshold and at least one pair
	// was committed. The committed-pair requirement is belt-and-suspenders:
	// the total only accumulates from committed pairs, so it cannot clear
	// the threshold without one, but the check keeps the decision honest if
	// the thresholds ever diverge.
	IsSimilar bool

	// Score is the sum of all committed pair scores.
	Score float64

	// Pairs are the committed pairs in "mine" processing order.
	Pairs []Pair
}

// CompareTrees runs the greedy one-to-one matching between two person sets.
//
// Description:
//
//	For each caller-side person in collection order, scores every
//	not-yet-claimed candidate-side person, keeps the single best (ties keep
//	the first found), and commits the pair iff the best score reaches
//	PairThreshold. Committed candidates are claimed and unavailable to
//	later caller-side persons. Alternate profiles and persons with an empty
//	normalized first name are excluded entirely, on both sides.
//
//	This is deliberately greedy and order-dependent, not an optimal
//	assignment: first-fit-best with claims, O(N*M). The ordering semantics
//	are part of the contract — repeated invocation on the same input yields
//	identical output.
//
// Inputs:
//
//	mine - Caller's normalized person set, in collection order.
//	theirs - Candidate's normalized person set.
//
// Outputs:
//
//	TreeResult - Decision, total score, and committed pairs.
func CompareTrees(mine, theirs []Comparable) TreeResult {
	return compareTreesAt(time.Now(), mine, theirs)
}

func compareTreesAt(now time.Time, mine, theirs []Comparable) TreeResult {
	var result TreeResult
	claimed := make([]bool, len(theirs))

	for _, p1 := range mine {
		if skipForMatching(p1) {
			continue
		}

		bestIdx := -1
		var bestScore float64
		var bestReasons []string

		for j, p2 := range theirs {
			if claimed[j] || skipForMatching(p2) {
				continue
			}
			score, reasons := scoreAt(now, p1, p2)
			if bestIdx == -1 || score > bestScore {
				bestIdx = j
				bestScore = score
				bestReasons = reasons
			}
		}

		if bestIdx == -1 || bestScore < PairThreshold {
			continue
		}

		claimed[bestIdx] = true
		result.Score += bestScore
		result.Pairs = append(result.Pairs, Pair{
			Mine:    p1,
			Theirs:  theirs[bestIdx],
			Score:   bestScore,
			Reasons: bestReasons,
		})
	}

	result.IsSimilar = result.Score >= TreeThreshold && len(result.Pairs) > 0
	return result
}

// skipForMatching excludes alternate profiles and unnamed records.
func skipForMatching(c Comparable) bool {
	if c.FirstName == "" {
		return true
	}
	return c.Original != nil && c.Original.IsAlternateProfile
}
