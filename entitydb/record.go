// Copyright 2024 The archtape Authors
// This file is part of the archtape library.
//
// The archtape library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The archtape library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the archtape library. If not, see <http://www.gnu.org/licenses/>.

package entitydb

import "github.com/archtape/archtape/tree"

// Record is the static-type side of spec.md §1's "opaque structurally-
// typed records that support serialize, deserialize, and a diff/patch
// capability": callers who want a concrete Go type layer FromValue/ToValue
// over the engine's generic tree.Value representation. The engine itself
// never requires T beyond this interface.
type Record interface {
	FromValue(tree.Value) error
	ToValue() tree.Value
}

// Versioned pairs a decoded record with the time it was recorded at.
type Versioned[T Record] struct {
	Time  int64
	Value T
}

func decodeVersioned[T Record](v tree.Value, t int64, newT func() T) (Versioned[T], error) {
	rec := newT()
	if err := rec.FromValue(v); err != nil {
		return Versioned[T]{}, err
	}
	return Versioned[T]{Time: t, Value: rec}, nil
}
