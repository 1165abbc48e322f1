// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"errors"

	"github.com/AleutianAI/reactivestore/store/batch"
	"github.com/AleutianAI/reactivestore/store/expr"
)

var (
	// ErrMalformedExpression is returned when a computed property's
	// expression does not parse.
	ErrMalformedExpression = expr.ErrMalformedExpression

	// ErrComputedCycle is returned when the compute fixpoint fails to
	// converge, indicating a cyclic computed-property dependency.
	ErrComputedCycle = batch.ErrComputedCycle

	// ErrInvalidConfig is returned by New when a Config fails validation.
	ErrInvalidConfig = errors.New("store: invalid configuration")

	// ErrUnknownProperty is returned by LinkPaths when neither side of
	// the pair resolves to a declared property.
	ErrUnknownProperty = errors.New("store: unknown property")
)
