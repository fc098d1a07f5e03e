// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traverse

import (
	"fmt"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// AssignGenerations annotates every person reachable from root with an
// integer generation relative to root.
//
// Description:
//
//	Breadth-first traversal from root (generation 0). At each dequeued
//	person with generation g: parents get g-1, children g+1, spouses
//	(current and divorced) and siblings g. First assignment wins — a
//	generation is never recomputed on a later alternate path, so the
//	result is BFS-order-dependent rather than shortest-path-optimal
//	across conflicting edges. Each person is visited at most once.
//
// Inputs:
//
//	rootID - The person to anchor generation 0 at.
//	set - The owner's full person set, keyed by id.
//
// Outputs:
//
//	map[string]int - Generation per reached person id. Persons absent from
//	  the map are unreachable from root through the four edge kinds.
//	error - ErrRootNotFound if rootID is not in the set.
func AssignGenerations(rootID string, set map[string]*person.Person) (map[string]int, error) {
	root, ok := set[rootID]
	if !ok {
		return nil, fmt.Errorf("assign generations: %w: %s", ErrRootNotFound, rootID)
	}

	generations := map[string]int{root.ID: 0}
	queue := []string{root.ID}

	// assign records the first generation seen for id and enqueues it.
	assign := func(queue []string, id string, gen int) []string {
		if id == "" {
			return queue
		}
		p, ok := set[id]
		if !ok || p.IsAlternateProfile {
			return queue
		}
		if _, seen := generations[id]; seen {
			return queue
		}
		generations[id] = gen
		return append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		p := set[id]
		g := generations[id]

		queue = assign(queue, p.FatherID, g-1)
		queue = assign(queue, p.MotherID, g-1)
		for _, childID := range p.ChildIDs {
			queue = assign(queue, childID, g+1)
		}
		for _, spouseID := range p.EverSpouseIDs() {
			queue = assign(queue, spouseID, g)
		}
		for _, siblingID := range p.SiblingIDs {
			queue = assign(queue, siblingID, g)
		}
	}

	return generations, nil
}
