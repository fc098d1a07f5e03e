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

// PathStep is one hop of a relationship path. The field shape is the wire
// contract consumed by the relationship describer and must stay stable.
type PathStep struct {
	PersonID string `json:"personId"`

	PersonName string `json:"personName"`

	// Relation labels this step's person relative to the PREVIOUS step's
	// person ("Father", "Daughter", "Spouse", ...). The first step is
	// always "Self".
	Relation string `json:"connectionToPreviousPerson"`

	Gender person.Gender `json:"gender"`

	// GenerationOffset is relative to the start person, accumulated along
	// the path.
	GenerationOffset int `json:"generationOffset"`
}

// PathResult is the outcome of a shortest relationship-path search.
type PathResult struct {
	// Found is false when the two persons are disconnected; Steps is then
	// empty.
	Found bool `json:"pathFound"`

	Steps []PathStep `json:"path"`

	// GenerationGap is the sum of edge offsets along the path. It can
	// disagree with AssignGenerations in irregular graphs; see the package
	// comment.
	GenerationGap int `json:"generationGap"`
}

// pathEdge is one traversable neighbor with its relation label and
// generation offset.
type pathEdge struct {
	toID     string
	relation string
	offset   int
}

// pathVisit records how a person was first reached during the BFS.
type pathVisit struct {
	prevID   string
	relation string
	offset   int // cumulative generation offset from start
}

// FindPath finds the fewest-hops relationship path between two persons.
//
// Description:
//
//	Standard BFS over a graph where each person simultaneously exposes
//	father/mother (offset -1), children (+1, labeled Son/Daughter/Child by
//	the child's gender), current AND divorced spouses (0, "Spouse" — a
//	path through an ex-spouse is still a valid relationship description),
//	and siblings (0, Brother/Sister/Sibling by gender). The first time the
//	target is reached wins, which is the fewest-hops path.
//
// Inputs:
//
//	startID - Path origin; its step is labeled "Self".
//	endID - Path target.
//	set - The owner's full person set, keyed by id.
//
// Outputs:
//
//	*PathResult - Found=false with empty steps when disconnected.
//	error - ErrPersonNotFound if either endpoint is missing from the set.
func FindPath(startID, endID string, set map[string]*person.Person) (*PathResult, error) {
	start, ok := set[startID]
	if !ok {
		return nil, fmt.Errorf("find path: start: %w: %s", ErrPersonNotFound, startID)
	}
	end, ok := set[endID]
	if !ok {
		return nil, fmt.Errorf("find path: end: %w: %s", ErrPersonNotFound, endID)
	}

	selfStep := PathStep{
		PersonID:   start.ID,
		PersonName: start.Name,
		Relation:   "Self",
		Gender:     start.Gender,
	}

	if startID == endID {
		return &PathResult{Found: true, Steps: []PathStep{selfStep}}, nil
	}

	visited := map[string]pathVisit{start.ID: {}}
	queue := []string{start.ID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		from := visited[id]

		for _, edge := range neighbors(set, set[id]) {
			next, ok := set[edge.toID]
			if !ok {
				continue
			}
			if next.IsAlternateProfile && next.ID != end.ID {
				continue
			}
			if _, seen := visited[next.ID]; seen {
				continue
			}
			visited[next.ID] = pathVisit{
				prevID:   id,
				relation: edge.relation,
				offset:   from.offset + edge.offset,
			}

			if next.ID == end.ID {
				return reconstruct(start, end, set, visited, selfStep), nil
			}
			queue = append(queue, next.ID)
		}
	}

	return &PathResult{Found: false, Steps: []PathStep{}}, nil
}

// reconstruct walks the visit map backwards from end to start, then
// reverses. O(n) append+reverse rather than O(n^2) prepend.
func reconstruct(start, end *person.Person, set map[string]*person.Person, visited map[string]pathVisit, selfStep PathStep) *PathResult {
	var steps []PathStep
	for id := end.ID; id != start.ID; {
		v := visited[id]
		p := set[id]
		steps = append(steps, PathStep{
			PersonID:         p.ID,
			PersonName:       p.Name,
			Relation:         v.relation,
			Gender:           p.Gender,
			GenerationOffset: v.offset,
		})
		id = v.prevID
	}
	steps = append(steps, selfStep)
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	return &PathResult{
		Found:         true,
		Steps:         steps,
		GenerationGap: steps[len(steps)-1].GenerationOffset,
	}
}

// neighbors lists every traversable edge of p. Child and sibling labels are
// resolved from the neighbor's gender.
func neighbors(set map[string]*person.Person, p *person.Person) []pathEdge {
	var edges []pathEdge
	if p.FatherID != "" {
		edges = append(edges, pathEdge{p.FatherID, "Father", -1})
	}
	if p.MotherID != "" {
		edges = append(edges, pathEdge{p.MotherID, "Mother", -1})
	}
	for _, id := range p.ChildIDs {
		edges = append(edges, pathEdge{id, childLabel(set[id]), +1})
	}
	for _, id := range p.EverSpouseIDs() {
		edges = append(edges, pathEdge{id, "Spouse", 0})
	}
	for _, id := range p.SiblingIDs {
		edges = append(edges, pathEdge{id, siblingLabel(set[id]), 0})
	}
	return edges
}

func childLabel(p *person.Person) string {
	if p == nil {
		return "Child"
	}
	switch p.Gender {
	case person.Male:
		return "Son"
	case person.Female:
		return "Daughter"
	default:
		return "Child"
	}
}

func siblingLabel(p *person.Person) string {
	if p == nil {
		return "Sibling"
	}
	switch p.Gender {
	case person.Male:
		return "Brother"
	case person.Female:
		return "Sister"
	default:
		return "Sibling"
	}
}
