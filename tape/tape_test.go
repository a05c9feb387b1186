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

package tape

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/chain"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/tree"
)

func buildScenarioTape(t *testing.T) (*Tape, common.ID) {
	t.Helper()
	b := NewBuilder(nil)
	id := common.ID{1}
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

	tp, err := Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { tp.Close() })
	return tp, id
}

func TestBuildOpenRoundTrip(t *testing.T) {
	tp, id := buildScenarioTape(t)
	require.Equal(t, 1, tp.HeaderCount())

	idx, ok := tp.HeaderIndex(id)
	require.True(t, ok)
	require.Equal(t, 0, idx)

	h, ok := tp.HeaderAt(idx)
	require.True(t, ok)
	require.Equal(t, []int64{1000, 2000, 3000}, h.Times)
	require.Equal(t, uint16(2), h.CheckpointEvery)

	compressed, err := tp.CompressedChain(idx)
	require.NoError(t, err)

	d, err := NewDecompressor(tp.Dict())
	require.NoError(t, err)
	defer d.Close()
	decoded, err := d.Decode(compressed, int(h.DecompressedLen))
	require.NoError(t, err)

	v1, err := chain.DecodeAt(decoded, h.CheckpointPositions, int(h.CheckpointEvery), 1)
	require.NoError(t, err)
	require.True(t, tree.Equal(v1, tree.Map(map[string]tree.Value{"x": tree.Int(2)})))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tape")
	require.NoError(t, os.WriteFile(path, []byte("not a tape at all"), 0o600))
	_, err := Open(path, false)
	require.Error(t, err)
}

func TestOpenRejectsUnknownCodec(t *testing.T) {
	b := NewBuilder(nil)
	id := common.ID{2}
	require.NoError(t, b.AddEntity(id, []tree.Value{tree.Int(1)}, []int64{1000}, 1))

	var buf bytes.Buffer
	require.NoError(t, b.Build(&buf))

	raw := buf.Bytes()
	raw[8] = byte(CodecZstd) + 1 // corrupt the codec byte in the preamble

	path := filepath.Join(t.TempDir(), "wrong-codec.tape")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err := Open(path, false)
	require.Error(t, err)
	require.ErrorIs(t, err, archerr.ErrBadTape)
}
