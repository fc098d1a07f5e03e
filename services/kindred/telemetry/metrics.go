// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pre-defined instruments for the Kindred service.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// ScansTotal counts discovery scans by outcome (ok, error, timeout).
	ScansTotal metric.Int64Counter

	// ScanDuration records discovery scan duration in seconds.
	ScanDuration metric.Float64Histogram

	// ScanCandidates counts candidate trees evaluated across all scans.
	ScanCandidates metric.Int64Counter

	// ScanMatches counts qualifying tree matches surfaced to callers.
	ScanMatches metric.Int64Counter

	// MutationsTotal counts graph mutations by operation (add, update,
	// delete, delete_user).
	MutationsTotal metric.Int64Counter

	// DescriberRequestsTotal counts relationship-describer calls by status.
	DescriberRequestsTotal metric.Int64Counter
}

// NewMetrics registers every instrument with the given meter.
//
// Inputs:
//
//	meter - The OTel meter, typically otel.Meter(ServiceName).
//
// Outputs:
//
//	*Metrics - All instruments initialized.
//	error - Non-nil if any registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.ScansTotal, err = meter.Int64Counter("kindred_scans_total",
		metric.WithDescription("Total discovery scans by outcome")); err != nil {
		return nil, fmt.Errorf("create kindred_scans_total: %w", err)
	}
	if m.ScanDuration, err = meter.Float64Histogram("kindred_scan_duration_seconds",
		metric.WithDescription("Discovery scan duration in seconds")); err != nil {
		return nil, fmt.Errorf("create kindred_scan_duration_seconds: %w", err)
	}
	if m.ScanCandidates, err = meter.Int64Counter("kindred_scan_candidates_total",
		metric.WithDescription("Candidate trees evaluated")); err != nil {
		return nil, fmt.Errorf("create kindred_scan_candidates_total: %w", err)
	}
	if m.ScanMatches, err = meter.Int64Counter("kindred_scan_matches_total",
		metric.WithDescription("Qualifying tree matches surfaced")); err != nil {
		return nil, fmt.Errorf("create kindred_scan_matches_total: %w", err)
	}
	if m.MutationsTotal, err = meter.Int64Counter("kindred_mutations_total",
		metric.WithDescription("Graph mutations by operation")); err != nil {
		return nil, fmt.Errorf("create kindred_mutations_total: %w", err)
	}
	if m.DescriberRequestsTotal, err = meter.Int64Counter("kindred_describer_requests_total",
		metric.WithDescription("Relationship describer calls by status")); err != nil {
		return nil, fmt.Errorf("create kindred_describer_requests_total: %w", err)
	}

	return m, nil
}
