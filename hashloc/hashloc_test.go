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

package hashloc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archtape/archtape/common"
)

func TestBuildOpenLookupRoundTrip(t *testing.T) {
	b := NewBuilder()
	h1 := common.ID{1}
	h2 := common.ID{2}
	b.Put(h1, common.Location{HeaderIndex: 3, TimeIndex: 7})
	b.Put(h2, common.Location{HeaderIndex: 9, TimeIndex: 0})

	path := filepath.Join(t.TempDir(), "hashes.bin")
	require.NoError(t, os.WriteFile(path, b.Build(), 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	loc, ok := m.Lookup(h1)
	require.True(t, ok)
	require.Equal(t, common.Location{HeaderIndex: 3, TimeIndex: 7}, loc)

	_, ok = m.Lookup(common.ID{0xFF})
	require.False(t, ok)
}
