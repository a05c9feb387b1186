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

package manager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/entitydb"
	"github.com/archtape/archtape/tape"
	"github.com/archtape/archtape/tree"
)

type playerRecord struct{ Name string }

func (p *playerRecord) FromValue(v tree.Value) error {
	if n, ok := v.Map["name"]; ok {
		p.Name = n.Str
	}
	return nil
}
func (p *playerRecord) ToValue() tree.Value {
	return tree.Map(map[string]tree.Value{"name": tree.String(p.Name)})
}
func newPlayerRecord() *playerRecord { return &playerRecord{} }

func writeMinimalTape(t *testing.T, path string, id common.ID) {
	t.Helper()
	b := tape.NewBuilder(nil)
	require.NoError(t, b.AddEntity(id, []tree.Value{tree.Map(map[string]tree.Value{"name": tree.String("Jessica Telephone")})}, []int64{1}, 1))
	var buf bytes.Buffer
	require.NoError(t, b.Build(&buf))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestOpenFolderRegistersKnownTagsOnly(t *testing.T) {
	dir := t.TempDir()
	id := common.ID{1}
	writeMinimalTape(t, filepath.Join(dir, "player.tape"), id)
	writeMinimalTape(t, filepath.Join(dir, "unknown_tag.tape"), id)

	m := New(nil)
	err := OpenFolder(dir, m, func(tag Tag, path string) (entitydb.RawDatabase, error) {
		return entitydb.Open(path, false, newPlayerRecord, nil)
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	_, ok := m.Lookup(TagPlayer)
	require.True(t, ok)
	_, ok = m.Lookup(Tag("unknown_tag"))
	require.False(t, ok)

	typed, ok := LookupTyped[*playerRecord](m, TagPlayer)
	require.True(t, ok)
	v, ok, err := typed.First(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Jessica Telephone", v.Value.Name)
}
