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

//go:build linux || darwin

// Package mmap memory-maps a tape's store section read-only, per spec.md
// §3.3/§5. There is no general-purpose cross-platform mmap library in the
// retrieved corpus (the closest analogue, SnellerInc/sneller's dcache, rolls
// its own thin wrapper over golang.org/x/sys/unix rather than importing a
// helper package), so this does the same: golang.org/x/sys/unix is a direct
// teacher dependency and covers the Linux/Darwin "commodity disks" target.
package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Map is a read-only memory mapping of a file. The zero value is not usable;
// construct with Open.
type Map struct {
	data []byte
}

// Open memory-maps the entirety of f read-only. If populate is true, the OS
// is asked to eagerly fault pages in (MAP_POPULATE on Linux; a harmless
// no-op hint elsewhere), matching the pre-population option in spec.md §4.2.
func Open(f *os.File, populate bool) (*Map, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: stat: %w", err)
	}
	size := st.Size()
	if size == 0 {
		return &Map{data: []byte{}}, nil
	}
	flags := unix.MAP_SHARED
	if populate {
		flags |= mapPopulate
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, flags)
	if err != nil {
		return nil, fmt.Errorf("mmap: mmap: %w", err)
	}
	return &Map{data: data}, nil
}

// Bytes returns the mapped region. The returned slice must not be retained
// past a call to Close; callers that need to outlive the mapping must copy.
func (m *Map) Bytes() []byte { return m.data }

// Len returns the length of the mapped region.
func (m *Map) Len() int { return len(m.data) }

// Close unmaps the region. Safe to call once; calling it while decoded
// slices still borrow from Bytes is a use-after-free, which is why
// entitydb.Database always decodes into owned buffers before returning
// (spec.md §9, "Zero-copy reads").
func (m *Map) Close() error {
	if len(m.data) == 0 {
		return nil
	}
	return unix.Munmap(m.data)
}
