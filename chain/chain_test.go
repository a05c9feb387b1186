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

package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/tree"
)

// scenarioVersions mirrors the concrete scenario in spec.md §8: v0={"x":1},
// v1={"x":2}, v2={"x":2,"y":"a"}, K=2.
func scenarioVersions() []tree.Value {
	return []tree.Value{
		tree.Map(map[string]tree.Value{"x": tree.Int(1)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2), "y": tree.String("a")}),
	}
}

func TestDecodeAtRoundTrip(t *testing.T) {
	versions := scenarioVersions()
	buf, positions := Encode(versions, 2)
	require.Len(t, positions, 2)
	require.Equal(t, uint32(0), positions[0])

	for i, want := range versions {
		got, err := DecodeAt(buf, positions, 2, i)
		require.NoError(t, err)
		require.True(t, tree.Equal(got, want), "index %d", i)
	}
}

func TestDecodeRangeInclusiveSameRun(t *testing.T) {
	versions := scenarioVersions()
	buf, positions := Encode(versions, 2)

	// a=0, b=1 fall in the same checkpoint run (K=2): must be inclusive of
	// b, unlike the source's off-by-one (spec.md §9).
	got, err := DecodeRange(buf, positions, 2, 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, tree.Equal(got[0], versions[0]))
	require.True(t, tree.Equal(got[1], versions[1]))
}

func TestDecodeRangeAcrossRuns(t *testing.T) {
	versions := scenarioVersions()
	buf, positions := Encode(versions, 2)

	got, err := DecodeRange(buf, positions, 2, 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range versions {
		require.True(t, tree.Equal(got[i], versions[i]), "index %d", i)
	}
}

func TestDecodeRangeEqualsRepeatedPoints(t *testing.T) {
	versions := make([]tree.Value, 0, 9)
	for i := 0; i < 9; i++ {
		versions = append(versions, tree.Map(map[string]tree.Value{"n": tree.Int(int64(i))}))
	}
	buf, positions := Encode(versions, 3)

	for a := 0; a < len(versions); a++ {
		for b := a; b < len(versions); b++ {
			rangeResult, err := DecodeRange(buf, positions, 3, a, b)
			require.NoError(t, err)
			require.Len(t, rangeResult, b-a+1)
			for i := a; i <= b; i++ {
				point, err := DecodeAt(buf, positions, 3, i)
				require.NoError(t, err)
				require.True(t, tree.Equal(rangeResult[i-a], point), "a=%d b=%d i=%d", a, b, i)
			}
		}
	}
}

func TestCheckpointAlignment(t *testing.T) {
	versions := make([]tree.Value, 0, 10)
	for i := 0; i < 10; i++ {
		versions = append(versions, tree.Int(int64(i)))
	}
	k := 3
	_, positions := Encode(versions, k)
	wantRuns := (len(versions) + k - 1) / k
	require.Len(t, positions, wantRuns)
	require.Equal(t, uint32(0), positions[0])
}

func TestDecodeAtPastEndOfChainIsBadTape(t *testing.T) {
	versions := scenarioVersions()
	buf, positions := Encode(versions, 2)
	_, err := DecodeAt(buf, positions, 2, 99)
	require.ErrorIs(t, err, archerr.ErrBadTape)
}

func TestDegenerateSingleCheckpoint(t *testing.T) {
	// K as large as the chain length degenerates to one checkpoint plus a
	// contiguous diff run (spec.md §4.1 edge cases).
	versions := scenarioVersions()
	buf, positions := Encode(versions, len(versions))
	require.Len(t, positions, 1)
	got, err := DecodeRange(buf, positions, len(versions), 0, len(versions)-1)
	require.NoError(t, err)
	require.Len(t, got, len(versions))
}
