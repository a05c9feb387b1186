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

//go:build !linux && !darwin

package mmap

import (
	"fmt"
	"os"
)

// Map is a fallback, non-mmap'd stand-in for platforms without a
// golang.org/x/sys/unix mmap (spec.md targets commodity server disks, i.e.
// Linux/Darwin; this keeps the package buildable elsewhere without pulling
// in a second mmap dependency not present anywhere in the corpus).
type Map struct {
	data []byte
}

// Open reads the entire file into memory. populate is accepted for API
// parity but has no effect here.
func Open(f *os.File, populate bool) (*Map, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: stat: %w", err)
	}
	data := make([]byte, st.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, fmt.Errorf("mmap: read: %w", err)
	}
	return &Map{data: data}, nil
}

func (m *Map) Bytes() []byte { return m.data }
func (m *Map) Len() int      { return len(m.data) }
func (m *Map) Close() error  { return nil }
