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

package stream

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/entitydb"
	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/tape"
	"github.com/archtape/archtape/tree"
)

type temporalRecord struct {
	X    int64
	Y    string
	hasY bool
}

func (r *temporalRecord) FromValue(v tree.Value) error {
	if x, ok := v.Map["x"]; ok {
		r.X = x.Int
	}
	if y, ok := v.Map["y"]; ok {
		r.Y, r.hasY = y.Str, true
	}
	return nil
}
func (r *temporalRecord) ToValue() tree.Value {
	m := map[string]tree.Value{"x": tree.Int(r.X)}
	if r.hasY {
		m["y"] = tree.String(r.Y)
	}
	return tree.Map(m)
}
func newTemporalRecord() *temporalRecord { return &temporalRecord{} }

// TestStreamScenario reproduces spec.md §8's scenario #6: after one batch
// containing one snapshot {temporal: v2, schedule: []} at t=3000, reading
// at t=3000 returns the full composite, and reading at t=2999 returns
// absent.
func TestStreamScenario(t *testing.T) {
	dir := t.TempDir()
	id := common.ID{0xE}
	tapePath := filepath.Join(dir, "temporal.tape")

	b := tape.NewBuilder(nil)
	versions := []tree.Value{
		tree.Map(map[string]tree.Value{"x": tree.Int(1)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2)}),
		tree.Map(map[string]tree.Value{"x": tree.Int(2), "y": tree.String("a")}),
	}
	require.NoError(t, b.AddEntity(id, versions, []int64{1000, 2000, 3000}, 2))
	var buf bytes.Buffer
	require.NoError(t, b.Build(&buf))
	require.NoError(t, os.WriteFile(tapePath, buf.Bytes(), 0o600))

	db, err := entitydb.Open(tapePath, false, newTemporalRecord, nil)
	require.NoError(t, err)
	defer db.Close()

	mgr := manager.New(nil)
	mgr.Register(manager.TagTemporal, db)

	packer := NewPacker(nil, mgr, nil)

	snapshot := Map(map[string]Node{
		"temporal": Entity(manager.TagTemporal, id, versions[2]),
		"schedule": List(),
	})
	packed := packer.Pack(snapshot, 3000)

	archivePath := filepath.Join(dir, "archive.stream")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	w, err := NewWriter(f, DefaultBatchSize)
	require.NoError(t, err)
	require.NoError(t, w.Append(3000, packed))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	r, err := Open(archivePath, mgr, nil)
	require.NoError(t, err)
	defer r.Close()

	node, at, ok, err := r.Point(3000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(3000), at)

	value, err := Rehydrate(mgr, node)
	require.NoError(t, err)
	require.Equal(t, "a", value.Map["temporal"].Map["y"].Str)
	require.EqualValues(t, 2, value.Map["temporal"].Map["x"].Int)
	require.Len(t, value.Map["schedule"].List, 0)

	_, _, ok, err = r.Point(2999)
	require.NoError(t, err)
	require.False(t, ok)
}
