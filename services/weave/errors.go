// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weave

import "errors"

// Sentinel errors for the weave service.
var (
	// ErrNodeNotFound indicates no node has the requested id.
	ErrNodeNotFound = errors.New("node not found")

	// ErrRuleNotFound indicates no rule has the requested id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrNoStorage indicates a snapshot operation with storage disabled.
	ErrNoStorage = errors.New("snapshot storage not configured")

	// ErrUnknownBackend indicates an unsupported storage backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrNodeUnresolved indicates a graph action could not work out which
	// node it applies to.
	ErrNodeUnresolved = errors.New("no node matches the rule context")
)
