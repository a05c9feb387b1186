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
	"encoding/binary"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/internal/mmap"
)

// Tape is an opened, read-only tape file: parsed headers plus a memory
// mapping of the store section (spec.md §3.6: "opened once at startup,
// live for the process, and share a read-only memory map").
type Tape struct {
	file    *os.File
	mapping *mmap.Map
	dict    []byte
	store   []byte // slice of mapping.Bytes() starting at the store section
	headers []Header
	byID    map[common.ID]int
}

// Open parses path's preamble and header block, validates the invariants
// of spec.md §3.2/§7 ("bad-tape ... fatal at open"), and memory-maps the
// store section. populate requests eager OS-level page population
// (spec.md §4.2), a hint honored only on Linux.
func Open(path string, populate bool) (*Tape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	closeOnErr := true
	defer func() {
		if closeOnErr {
			f.Close()
		}
	}()

	m, err := mmap.Open(f, populate)
	if err != nil {
		return nil, fmt.Errorf("tape: %w", err)
	}
	closeMapOnErr := true
	defer func() {
		if closeMapOnErr {
			m.Close()
		}
	}()

	data := m.Bytes()
	if len(data) < 25 || !bytes.Equal(data[:8], magic[:]) {
		return nil, &archerr.BadTapeError{Path: path, Reason: "missing or corrupt magic"}
	}
	codec := Codec(data[8])
	if codec != CodecZstd {
		return nil, &archerr.BadTapeError{Path: path, Reason: fmt.Sprintf("unsupported codec %d, reader expects %d", codec, CodecZstd)}
	}
	dictLen := binary.LittleEndian.Uint64(data[9:17])
	headerLen := binary.LittleEndian.Uint64(data[17:25])
	pos := uint64(25)

	if pos+dictLen+headerLen > uint64(len(data)) {
		return nil, &archerr.BadTapeError{Path: path, Reason: "preamble lengths exceed file size"}
	}
	dict := data[pos : pos+dictLen]
	pos += dictLen
	headerBlock := data[pos : pos+headerLen]
	pos += headerLen
	store := data[pos:]

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("tape: new header decoder: %w", err)
	}
	defer dec.Close()
	rawHeaders, err := dec.DecodeAll(headerBlock, nil)
	if err != nil {
		return nil, &archerr.BadTapeError{Path: path, Reason: fmt.Sprintf("header block decompression: %v", err)}
	}
	headers, err := decodeHeaders(rawHeaders)
	if err != nil {
		return nil, fmt.Errorf("tape %q: %w", path, err)
	}
	for _, h := range headers {
		if uint64(h.Offset)+uint64(h.CompressedLen) > uint64(len(store)) {
			return nil, &archerr.BadTapeError{Path: path, Reason: fmt.Sprintf("entity %s chain range exceeds store size", h.ID)}
		}
	}

	closeOnErr = false
	closeMapOnErr = false
	return &Tape{
		file:    f,
		mapping: m,
		dict:    dict,
		store:   store,
		headers: headers,
		byID:    indexByID(headers),
	}, nil
}

// Close unmaps the tape and releases its file descriptor.
func (t *Tape) Close() error {
	if err := t.mapping.Close(); err != nil {
		return err
	}
	return t.file.Close()
}

// HeaderCount returns the number of entity headers.
func (t *Tape) HeaderCount() int { return len(t.headers) }

// HeaderAt returns the header at the given slot, or false if out of range.
func (t *Tape) HeaderAt(i int) (Header, bool) {
	if i < 0 || i >= len(t.headers) {
		return Header{}, false
	}
	return t.headers[i], true
}

// HeaderIndex returns the header slot for id, or false if unknown.
func (t *Tape) HeaderIndex(id common.ID) (int, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// IDs returns every entity id this tape holds, in header-slot order
// (spec.md §4.2 "iterate all ids").
func (t *Tape) IDs() []common.ID {
	ids := make([]common.ID, len(t.headers))
	for i, h := range t.headers {
		ids[i] = h.ID
	}
	return ids
}

// CompressedChain returns the raw compressed bytes of header slot i's delta
// chain, a view directly into the memory mapping. Callers must not retain
// the slice past Close.
func (t *Tape) CompressedChain(i int) ([]byte, error) {
	h, ok := t.HeaderAt(i)
	if !ok {
		return nil, fmt.Errorf("tape: header index %d out of range (have %d)", i, len(t.headers))
	}
	return t.store[h.Offset : h.Offset+uint64(h.CompressedLen)], nil
}

// Dict returns the store section's shared compressor dictionary, or nil.
func (t *Tape) Dict() []byte { return t.dict }
