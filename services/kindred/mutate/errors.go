// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mutate implements the relationship graph mutator: every add,
// edit, divorce toggle, and delete is expanded into the full set of
// bidirectional edge updates and applied as one atomic store batch.
//
// Partial application of a multi-edge update is never acceptable — it would
// desynchronize the symmetry invariant (A lists B iff B lists A for spouse,
// divorced-spouse, and sibling edges). Any missing referenced record aborts
// the whole operation before a single write is staged.
package mutate

import "errors"

// Sentinel errors for mutation operations.
var (
	// ErrAnchorNotFound is returned when the person an operation is
	// anchored to does not exist.
	ErrAnchorNotFound = errors.New("anchor person not found")

	// ErrPersonNotFound is returned when a referenced person record is
	// missing.
	ErrPersonNotFound = errors.New("person not found")

	// ErrParentExists is returned when adding a father or mother to an
	// anchor whose slot is already filled. Overwriting would leave the
	// displaced parent's ChildIDs pointing one way.
	ErrParentExists = errors.New("parent slot is already filled")

	// ErrCoParentRequired is returned when adding a child to an anchor
	// with more than one ever-spouse without naming the co-parent.
	ErrCoParentRequired = errors.New("co-parent must be specified when anchor has multiple spouses")

	// ErrUnknownRelationship is returned for a relationship label outside
	// the structural set.
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrNotSpouse is returned when a divorce toggle names someone who was
	// never a spouse of the person being edited.
	ErrNotSpouse = errors.New("person is not a current or former spouse")
)
