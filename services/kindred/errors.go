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

import "errors"

var (
	// ErrDescriberDisabled is returned when the relationship describer is
	// not configured; clients fall back to rendering the raw path.
	ErrDescriberDisabled = errors.New("relationship describer is disabled")

	// ErrSelfExists is returned when a caller who already has a self
	// record tries to create another one.
	ErrSelfExists = errors.New("self record already exists")

	// ErrNoSelf is returned for tree operations before the caller has
	// created their self record.
	ErrNoSelf = errors.New("no self record; create your profile first")
)
