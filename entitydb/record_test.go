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

// testRecord is the smallest possible entitydb.Record for tests: an int
// field x and an optional string field y, matching the {"x": ..., "y": ...}
// shape of spec.md §8's concrete scenario.
type testRecord struct {
	X int64
	Y string
	hasY bool
}

func (r *testRecord) FromValue(v tree.Value) error {
	if x, ok := v.Map["x"]; ok {
		r.X = x.Int
	}
	if y, ok := v.Map["y"]; ok {
		r.Y = y.Str
		r.hasY = true
	}
	return nil
}

func (r *testRecord) ToValue() tree.Value {
	m := map[string]tree.Value{"x": tree.Int(r.X)}
	if r.hasY {
		m["y"] = tree.String(r.Y)
	}
	return tree.Map(m)
}

func newTestRecord() *testRecord { return &testRecord{} }
