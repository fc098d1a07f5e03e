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
	"sort"

	"github.com/AleutianAI/Kindred/services/kindred/person"
)

// MaxChildGroups is the number of distinguishable co-parent group indexes.
// Past it, group indexes wrap and share a fallback appearance.
const MaxChildGroups = 20

// NoGroup is the group index for children with no recognized co-parent.
const NoGroup = -1

// NodeRole classifies a layout node relative to the current root.
type NodeRole string

const (
	RoleRoot           NodeRole = "root"
	RoleParent         NodeRole = "parent"
	RoleSpouse         NodeRole = "spouse"
	RoleOlderSibling   NodeRole = "older_sibling"
	RoleYoungerSibling NodeRole = "younger_sibling"
	RoleChild          NodeRole = "child"
)

// Node is one positioned person in the derived layout.
//
// Rows: 0 = parents, 1 = siblings/root/spouses, 2 = children. Columns run
// left to right within a row.
type Node struct {
	Person *person.Person `json:"person"`
	Role   NodeRole       `json:"role"`
	Row    int            `json:"row"`
	Col    int            `json:"col"`

	// Divorced marks a spouse the root is divorced from. Divorced spouses
	// stay visible in the layout, flagged rather than omitted.
	Divorced bool `json:"divorced,omitempty"`

	// GroupIndex is the co-parent grouping key for children: the spouse's
	// order position wrapped at MaxChildGroups, or NoGroup. It is derived
	// from the spouse ordering, never stored.
	GroupIndex int `json:"groupIndex"`
}

// Edge connects two layout nodes.
type Edge struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`

	// Kind is one of "parent", "spouse", "divorced", "sibling", "child".
	Kind string `json:"kind"`
}

// Layout is the positioned node+edge set for rendering one root's view.
//
// Interaction contract for consumers: selecting any non-root node re-roots
// the view at that node (the layout is recomputed with the new root);
// selecting the current root triggers the add-relative-anchored-here action.
type Layout struct {
	RootID string `json:"rootId"`
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
}

// DeriveLayout computes the positioned layout for one root person.
//
// Description:
//
//	Siblings of root split into older/younger by pairwise comparison with
//	the sibling ordering rule and lay out older-left, root-and-spouses-
//	center, younger-right. All ever-spouses order by anniversary date,
//	then DOB, then creation time, then name. Parents center above root.
//	Children group by which ever-spouse is the co-parent; groups lay out
//	left-to-right in spouse order with group index equal to the spouse's
//	order position (wrapped past MaxChildGroups), children with no
//	recognized co-parent go to a trailing NoGroup bucket, and each group
//	sorts internally by the sibling ordering rule.
//
// Inputs:
//
//	rootID - The person the view is rooted at.
//	set - The owner's full person set, keyed by id.
//
// Outputs:
//
//	*Layout - Positioned nodes and edges.
//	error - ErrRootNotFound if rootID is not in the set.
func DeriveLayout(rootID string, set map[string]*person.Person) (*Layout, error) {
	root, ok := set[rootID]
	if !ok {
		return nil, fmt.Errorf("derive layout: %w: %s", ErrRootNotFound, rootID)
	}

	layout := &Layout{RootID: root.ID}

	older, younger := splitSiblings(root, set)
	spouses := orderedSpouses(root, set)

	// Middle row: older siblings, root, spouses, younger siblings.
	col := 0
	for _, sib := range older {
		layout.Nodes = append(layout.Nodes, Node{
			Person: sib, Role: RoleOlderSibling, Row: 1, Col: col, GroupIndex: NoGroup,
		})
		layout.Edges = append(layout.Edges, Edge{FromID: root.ID, ToID: sib.ID, Kind: "sibling"})
		col++
	}
	rootCol := col
	layout.Nodes = append(layout.Nodes, Node{
		Person: root, Role: RoleRoot, Row: 1, Col: col, GroupIndex: NoGroup,
	})
	col++
	for _, sp := range spouses {
		divorced := root.IsDivorcedFrom(sp.ID)
		layout.Nodes = append(layout.Nodes, Node{
			Person: sp, Role: RoleSpouse, Row: 1, Col: col,
			Divorced: divorced, GroupIndex: NoGroup,
		})
		kind := "spouse"
		if divorced {
			kind = "divorced"
		}
		layout.Edges = append(layout.Edges, Edge{FromID: root.ID, ToID: sp.ID, Kind: kind})
		col++
	}
	for _, sib := range younger {
		layout.Nodes = append(layout.Nodes, Node{
			Person: sib, Role: RoleYoungerSibling, Row: 1, Col: col, GroupIndex: NoGroup,
		})
		layout.Edges = append(layout.Edges, Edge{FromID: root.ID, ToID: sib.ID, Kind: "sibling"})
		col++
	}

	// Parents row, centered over root. A single known parent centers alone.
	parents := make([]*person.Person, 0, 2)
	for _, id := range []string{root.FatherID, root.MotherID} {
		if p := visible(set, id); p != nil {
			parents = append(parents, p)
		}
	}
	for i, par := range parents {
		layout.Nodes = append(layout.Nodes, Node{
			Person: par, Role: RoleParent, Row: 0, Col: rootCol + i, GroupIndex: NoGroup,
		})
		layout.Edges = append(layout.Edges, Edge{FromID: par.ID, ToID: root.ID, Kind: "parent"})
	}

	// Children row, grouped by co-parent in spouse order, NoGroup last.
	groups, ungrouped := groupChildren(root, spouses, set)
	childCol := 0
	for i, sp := range spouses {
		children := groups[sp.ID]
		sort.SliceStable(children, func(a, b int) bool {
			return person.SiblingLess(children[a], children[b])
		})
		for _, child := range children {
			layout.Nodes = append(layout.Nodes, Node{
				Person: child, Role: RoleChild, Row: 2, Col: childCol,
				GroupIndex: i % MaxChildGroups,
			})
			layout.Edges = append(layout.Edges, Edge{FromID: root.ID, ToID: child.ID, Kind: "child"})
			layout.Edges = append(layout.Edges, Edge{FromID: sp.ID, ToID: child.ID, Kind: "child"})
			childCol++
		}
	}
	sort.SliceStable(ungrouped, func(a, b int) bool {
		return person.SiblingLess(ungrouped[a], ungrouped[b])
	})
	for _, child := range ungrouped {
		layout.Nodes = append(layout.Nodes, Node{
			Person: child, Role: RoleChild, Row: 2, Col: childCol, GroupIndex: NoGroup,
		})
		layout.Edges = append(layout.Edges, Edge{FromID: root.ID, ToID: child.ID, Kind: "child"})
		childCol++
	}

	return layout, nil
}

// splitSiblings partitions root's siblings into older and younger using the
// sibling ordering rule pairwise against root, each half sorted.
func splitSiblings(root *person.Person, set map[string]*person.Person) (older, younger []*person.Person) {
	for _, id := range root.SiblingIDs {
		sib := visible(set, id)
		if sib == nil {
			continue
		}
		if person.SiblingLess(sib, root) {
			older = append(older, sib)
		} else {
			younger = append(younger, sib)
		}
	}
	sort.SliceStable(older, func(a, b int) bool { return person.SiblingLess(older[a], older[b]) })
	sort.SliceStable(younger, func(a, b int) bool { return person.SiblingLess(younger[a], younger[b]) })
	return older, younger
}

// orderedSpouses returns all ever-spouses of root in display order.
func orderedSpouses(root *person.Person, set map[string]*person.Person) []*person.Person {
	var spouses []*person.Person
	for _, id := range root.EverSpouseIDs() {
		if sp := visible(set, id); sp != nil {
			spouses = append(spouses, sp)
		}
	}
	sort.SliceStable(spouses, func(a, b int) bool {
		return person.SpouseLess(root, spouses[a], spouses[b])
	})
	return spouses
}

// groupChildren buckets root's children by co-parent. Children whose other
// parent is not an ever-spouse of root (or is unset) go to the ungrouped
// bucket.
func groupChildren(root *person.Person, spouses []*person.Person, set map[string]*person.Person) (map[string][]*person.Person, []*person.Person) {
	spouseSet := make(map[string]bool, len(spouses))
	for _, sp := range spouses {
		spouseSet[sp.ID] = true
	}

	groups := make(map[string][]*person.Person)
	var ungrouped []*person.Person
	for _, id := range root.ChildIDs {
		child := visible(set, id)
		if child == nil {
			continue
		}
		coParent := child.FatherID
		if coParent == root.ID {
			coParent = child.MotherID
		}
		if coParent != "" && spouseSet[coParent] {
			groups[coParent] = append(groups[coParent], child)
		} else {
			ungrouped = append(ungrouped, child)
		}
	}
	return groups, ungrouped
}

// visible resolves an id to a person, hiding alternate profiles.
func visible(set map[string]*person.Person, id string) *person.Person {
	if id == "" {
		return nil
	}
	p, ok := set[id]
	if !ok || p.IsAlternateProfile {
		return nil
	}
	return p
}
