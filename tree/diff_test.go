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

package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDiffApplyRoundTrip(t *testing.T) {
	v0 := Map(map[string]Value{"x": Int(1)})
	v1 := Map(map[string]Value{"x": Int(2)})
	v2 := Map(map[string]Value{"x": Int(2), "y": String("a")})

	edits01 := Diff(v0, v1)
	got1, err := Apply(v0, edits01)
	require.NoError(t, err)
	if diff := cmp.Diff(v1, got1); diff != "" {
		t.Fatalf("applying edits01 diverged from v1 (-want +got):\n%s", diff)
	}

	edits12 := Diff(v1, v2)
	got2, err := Apply(v1, edits12)
	require.NoError(t, err)
	if diff := cmp.Diff(v2, got2); diff != "" {
		t.Fatalf("applying edits12 diverged from v2 (-want +got):\n%s", diff)
	}

	// associativity: applying both diffs in sequence from v0 reaches v2.
	chained, err := Apply(v0, append(append([]Edit{}, edits01...), edits12...))
	require.NoError(t, err)
	if diff := cmp.Diff(v2, chained); diff != "" {
		t.Fatalf("chained diff application diverged from v2 (-want +got):\n%s", diff)
	}
}

func TestDiffListShrinkRemove(t *testing.T) {
	base := List(Int(1), Int(2), Int(3))
	next := List(Int(1), Int(3))
	edits := Diff(base, next)
	got, err := Apply(base, edits)
	require.NoError(t, err)
	require.True(t, Equal(got, next))
}

func TestDiffMapKeyRemoval(t *testing.T) {
	base := Map(map[string]Value{"a": Int(1), "b": Int(2)})
	next := Map(map[string]Value{"a": Int(1)})
	edits := Diff(base, next)
	got, err := Apply(base, edits)
	require.NoError(t, err)
	require.True(t, Equal(got, next))
}

func TestApplyRejectsMismatchedEdit(t *testing.T) {
	base := Map(map[string]Value{"a": Int(1)})
	bogus := []Edit{{Op: OpMapRemove, Key: "missing"}}
	_, err := Apply(base, bogus)
	require.Error(t, err)
}

func TestCanonicalEncodeDecodeRoundTrip(t *testing.T) {
	v := Map(map[string]Value{
		"n":    Int(42),
		"list": List(String("a"), Bool(true), Null()),
		"f":    Float(3.5),
	})
	encoded := Encode(v)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	if diff := cmp.Diff(v, decoded); diff != "" {
		t.Fatalf("decoded value diverged from original (-want +got):\n%s", diff)
	}
}

func TestContentHashStableAcrossKeyOrder(t *testing.T) {
	a := Map(map[string]Value{"x": Int(1), "y": Int(2)})
	b := Map(map[string]Value{"y": Int(2), "x": Int(1)})
	require.Equal(t, ContentHash(a), ContentHash(b))
}
