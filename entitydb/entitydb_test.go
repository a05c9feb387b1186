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

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/tape"
	"github.com/archtape/archtape/tree"
)

// buildScenarioDatabase builds and opens the entity type T with one entity
// E whose versions are exactly spec.md §8's concrete scenario: v0={"x":1}
// at t=1000, v1={"x":2} at t=2000, v2={"x":2,"y":"a"} at t=3000, K=2.
func buildScenarioDatabase(t *testing.T) (*Database[*testRecord], common.ID) {
	t.Helper()
	b := tape.NewBuilder(nil)
	id := common.ID{0xE}
	versions := []tree.Value{
		tree.Map(map[string]tree.Value{"x": tree.Int(1)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2), "y": tree.String("a")}),
	}
	times := []int64{1000, 2000, 3000}
	require.NoError(t, b.AddEntity(id, versions, times, 2))

	var buf bytes.Buffer
	require.NoError(t, b.Build(&buf))
	path := filepath.Join(t.TempDir(), "scenario.tape")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	db, err := Open(path, false, newTestRecord, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, id
}

func TestScenarioPointQueries(t *testing.T) {
	db, id := buildScenarioDatabase(t)

	v, ok, err := db.Point(id, 1500)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, v.Value.X)
	require.Equal(t, int64(1000), v.Time)

	v, ok, err = db.Point(id, 3000)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, v.Value.X)
	require.Equal(t, "a", v.Value.Y)

	_, ok, err = db.Point(id, 500)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScenarioRange(t *testing.T) {
	db, id := buildScenarioDatabase(t)
	versions, err := db.Range(id, 1000, 3000)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	require.Equal(t, []int64{1000, 2000, 3000}, []int64{versions[0].Time, versions[1].Time, versions[2].Time})
}

func TestScenarioNextTime(t *testing.T) {
	db, id := buildScenarioDatabase(t)
	next, ok := db.NextTime(id, 1500)
	require.True(t, ok)
	require.Equal(t, int64(2000), next)
}

func TestPointAtLocationMatchesPointAtTime(t *testing.T) {
	db, id := buildScenarioDatabase(t)
	headerIndex, ok := db.IndexFromID(id)
	require.True(t, ok)

	byTime, ok, err := db.Point(id, 2000)
	require.NoError(t, err)
	require.True(t, ok)

	v, ok, err := db.PointAtLocation(common.Location{HeaderIndex: uint32(headerIndex), TimeIndex: 1})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, byTime.Value.X, v.Map["x"].Int)
}

func TestBulkPointPreservesOrder(t *testing.T) {
	db, id := buildScenarioDatabase(t)
	unknown := common.ID{0xFF}
	ids := make([]common.ID, 0, 40)
	for i := 0; i < 20; i++ {
		ids = append(ids, id, unknown)
	}
	results, present, err := db.BulkPoint(ids, 3000)
	require.NoError(t, err)
	require.Len(t, results, len(ids))
	for i := range ids {
		if i%2 == 0 {
			require.True(t, present[i])
			require.EqualValues(t, 2, results[i].Value.X)
		} else {
			require.False(t, present[i])
		}
	}
}

func TestDanglingLocationResolvesAbsent(t *testing.T) {
	db, _ := buildScenarioDatabase(t)
	_, ok, err := db.PointAtLocation(common.Location{HeaderIndex: 999, TimeIndex: 0})
	require.NoError(t, err)
	require.False(t, ok)
}
