// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package discovery implements the cross-user tree-similarity scan: for an
// authenticated caller, find other users' public trees that plausibly
// overlap with the caller's tree.
//
// Privacy is enforced before any comparison work: a private caller gets an
// empty result with zero candidate reads, and private candidates are
// skipped. "Nothing to report" outcomes (private profile, empty tree, no
// qualifying matches) are empty results, never errors.
package discovery

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for scan preconditions and outcomes.
var (
	// ErrUnauthenticated is returned when no caller identity is present
	// or the caller's account record does not exist.
	ErrUnauthenticated = errors.New("caller is not authenticated")

	// ErrFilterNotSelected is returned when neither the request nor the
	// caller's profile names a pre-filter option.
	ErrFilterNotSelected = errors.New("no discovery filter selected")

	// ErrUnknownFilter is returned for a filter option outside the known
	// set.
	ErrUnknownFilter = errors.New("unknown discovery filter")

	// ErrScanTimeout is returned when the scan deadline is exceeded. It is
	// distinct from other internal errors so callers can be told to
	// narrow their filter and retry rather than "something broke".
	ErrScanTimeout = errors.New("discovery scan timed out; narrow your filter and retry")
)

// MissingFieldsError reports which profile fields the chosen filter
// requires but the caller has not populated.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("profile is missing required fields for the selected filter: %s",
		strings.Join(e.Fields, ", "))
}
