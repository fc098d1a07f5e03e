// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kindred

import (
	"github.com/AleutianAI/Kindred/services/kindred/describe"
	"github.com/AleutianAI/Kindred/services/kindred/discovery"
	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/traverse"
)

// ScanRequest is the request for POST /v1/kindred/discovery/scan.
type ScanRequest struct {
	// FilterOption is "nativePlace", "religionAndCaste", or "combined".
	// Empty falls back to the caller's stored preference.
	FilterOption string `json:"filterOption"`
}

// ScanResponse is the response for POST /v1/kindred/discovery/scan.
type ScanResponse struct {
	Matches []discovery.MatchedTreeResult `json:"matches"`
}

// TreeResponse is the response for GET /v1/kindred/tree.
type TreeResponse struct {
	Persons []*person.Person `json:"persons"`
}

// GenerationsResponse is the response for GET /v1/kindred/tree/generations.
type GenerationsResponse struct {
	RootID string `json:"rootId"`

	// Generations maps person id to generation number relative to the
	// root (0). Negative is older, positive is younger.
	Generations map[string]int `json:"generations"`
}

// DescribePathRequest is the request for POST /v1/kindred/tree/path/describe.
type DescribePathRequest struct {
	// FromID defaults to the caller's self record when empty.
	FromID string `json:"fromId"`
	ToID   string `json:"toId" binding:"required"`
}

// DescribePathResponse is the response for POST /v1/kindred/tree/path/describe.
type DescribePathResponse struct {
	Path *traverse.PathResult `json:"path"`

	// Description is nil when no path exists.
	Description *describe.Description `json:"description,omitempty"`
}

// AddPersonRequest is the request for POST /v1/kindred/persons.
//
// An empty Relationship creates the caller's self record; otherwise
// AnchorID and Relationship place the new person in the graph.
type AddPersonRequest struct {
	AnchorID     string `json:"anchorId"`
	Relationship string `json:"relationship"`

	Name         string          `json:"name" binding:"required"`
	AliasName    string          `json:"aliasName"`
	Gender       string          `json:"gender"`
	DOB          person.FlexDate `json:"dob"`
	IsDeceased   bool            `json:"isDeceased"`
	DeceasedDate person.FlexDate `json:"deceasedDate"`
	NativePlace  string          `json:"nativePlace"`
	CurrentPlace string          `json:"currentPlace"`
	Religion     string          `json:"religion"`
	Caste        string          `json:"caste"`

	// AnniversaryDate applies to Spouse adds.
	AnniversaryDate person.FlexDate `json:"anniversaryDate"`

	// CoParentID applies to Son/Daughter adds; required when the anchor
	// has more than one current-or-former spouse.
	CoParentID string `json:"coParentId"`
}

// UpdatePersonRequest is the request for PATCH /v1/kindred/persons/:id.
// Nil fields are left untouched.
type UpdatePersonRequest struct {
	Name              *string          `json:"name"`
	AliasName         *string          `json:"aliasName"`
	Gender            *string          `json:"gender"`
	DOB               *person.FlexDate `json:"dob"`
	IsDeceased        *bool            `json:"isDeceased"`
	DeceasedDate      *person.FlexDate `json:"deceasedDate"`
	NativePlace       *string          `json:"nativePlace"`
	CurrentPlace      *string          `json:"currentPlace"`
	Religion          *string          `json:"religion"`
	Caste             *string          `json:"caste"`
	Relationship      *string          `json:"relationship"`
	SiblingOrderIndex *int             `json:"siblingOrderIndex"`

	// AnniversaryDates sets per-spouse marriage dates, keyed by spouse
	// person id. Mirrored onto the named spouse's record.
	AnniversaryDates map[string]person.FlexDate `json:"anniversaryDates"`

	// DivorceToggles flips divorce state per spouse id: true divorces,
	// false remarries. Applied to both records.
	DivorceToggles map[string]bool `json:"divorceToggles"`
}

// PersonResponse wraps a single person record.
type PersonResponse struct {
	Person *person.Person `json:"person"`
}

// KonnectionsResponse is the response for GET /v1/kindred/konnections.
type KonnectionsResponse struct {
	Konnected []string `json:"konnected"`
	Pending   []string `json:"pending"`
}

// HealthResponse is the response for GET /v1/kindred/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/kindred/ready.
type ReadyResponse struct {
	// Ready is true if the service is ready to accept requests.
	Ready bool `json:"ready"`

	// StoreOK is true if the store answers queries.
	StoreOK bool `json:"store_ok"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// MissingFields names the profile fields a discovery filter requires
	// but the caller has not populated (422 responses only).
	MissingFields []string `json:"missingFields,omitempty"`
}
