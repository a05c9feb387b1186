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

// Package hashloc implements the hash-to-location map of spec.md §3.5/§6.3:
// a persisted key-value store from 128-bit content hash to the
// (header_index, time_index) that produced it, built once by the encoder
// and opened read-only by the stream packer.
package hashloc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/common"
)

const entrySize = 16 + 4 + 4 // hash + header_index + time_index, all LE

// Builder accumulates hash->location entries offline. Construction is
// entirely the encoder's responsibility (spec.md §3.6); there is no write
// path once built.
type Builder struct {
	entries map[common.ID]common.Location
}

func NewBuilder() *Builder {
	return &Builder{entries: make(map[common.ID]common.Location)}
}

// Put records hash -> loc. A later Put for the same hash overwrites.
func (b *Builder) Put(hash common.ID, loc common.Location) {
	b.entries[hash] = loc
}

// Build serializes the map as a hash-sorted array of fixed-size records,
// enabling binary search at read time without an auxiliary index.
func (b *Builder) Build() []byte {
	hashes := make([]common.ID, 0, len(b.entries))
	for h := range b.entries {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return bytes.Compare(hashes[i][:], hashes[j][:]) < 0 })

	buf := make([]byte, 0, len(hashes)*entrySize)
	for _, h := range hashes {
		loc := b.entries[h]
		buf = append(buf, h[:]...)
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], loc.HeaderIndex)
		buf = append(buf, tmp[:]...)
		binary.LittleEndian.PutUint32(tmp[:], loc.TimeIndex)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// Map is an opened, read-only hash->location map (spec.md §6.3).
type Map struct {
	data []byte // sorted array of entrySize-byte records
}

// Open reads and validates path's hash->location map.
func Open(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%entrySize != 0 {
		return nil, fmt.Errorf("%w: hash map file length %d not a multiple of %d", archerr.ErrBadTape, len(data), entrySize)
	}
	return &Map{data: data}, nil
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.data) / entrySize }

func (m *Map) entryAt(i int) (common.ID, common.Location) {
	rec := m.data[i*entrySize : (i+1)*entrySize]
	var h common.ID
	copy(h[:], rec[:16])
	loc := common.Location{
		HeaderIndex: binary.LittleEndian.Uint32(rec[16:20]),
		TimeIndex:   binary.LittleEndian.Uint32(rec[20:24]),
	}
	return h, loc
}

// Lookup returns the location stored for hash, or false if absent.
func (m *Map) Lookup(hash common.ID) (common.Location, bool) {
	n := m.Len()
	i := sort.Search(n, func(i int) bool {
		h, _ := m.entryAt(i)
		return bytes.Compare(h[:], hash[:]) >= 0
	})
	if i >= n {
		return common.Location{}, false
	}
	h, loc := m.entryAt(i)
	if h != hash {
		return common.Location{}, false
	}
	return loc, true
}
