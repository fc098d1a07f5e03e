// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traverse implements the three BFS-based algorithms over a person
// graph: generation assignment, shortest relationship-path discovery, and
// tree-layout derivation.
//
// All three operate on an in-memory snapshot of one owner's person set
// (map keyed by person id) and never touch storage. Alternate profiles are
// not traversed.
//
// Generation assignment and the path finder can disagree on the generation
// gap between two people in graphs with divorce or asymmetric half-sibling
// links: one is first-assignment-wins BFS over all edges, the other sums
// edge offsets along the fewest-hops path. Both semantics are kept
// independent on purpose.
package traverse

import "errors"

// Sentinel errors for traversal operations.
var (
	// ErrRootNotFound is returned when the requested root id is not in the
	// person set.
	ErrRootNotFound = errors.New("root person not found")

	// ErrPersonNotFound is returned when a path endpoint is not in the
	// person set.
	ErrPersonNotFound = errors.New("person not found")
)
