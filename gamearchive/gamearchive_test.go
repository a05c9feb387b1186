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

package gamearchive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/tree"
)

func TestWriteReadAllRoundTrip(t *testing.T) {
	records := []Record{
		{Key: SortKey{'2', '0', '2', '1'}, List: tree.List(tree.Int(1), tree.Int(2))},
		{Key: SortKey{'2', '0', '2', '2'}, List: tree.List(tree.String("x"))},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	path := filepath.Join(t.TempDir(), "games.archive")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, records[0].Key, got[0].Key)
	require.True(t, tree.Equal(records[0].List, got[0].List))
	require.True(t, tree.Equal(records[1].List, got[1].List))
}
