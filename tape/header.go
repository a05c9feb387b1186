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

// Package tape implements the on-disk tape container of spec.md §3.3/§6.1:
// a preamble, an optional compressor dictionary, a compressed vector of
// per-entity headers, and a memory-mapped store section holding each
// entity's delta chain.
package tape

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/common"
)

// magic identifies an archtape tape file. Distinct from the original
// format's magic since this is a from-scratch Go encoding, not a
// byte-compatible port.
var magic = [8]byte{'A', 'R', 'C', 'H', 'T', 'A', 'P', 'E'}

// Codec identifies the compressor used for a tape's store and header
// sections, recorded in the preamble so Open can refuse a tape written
// with a codec it doesn't expect instead of misdetecting it (spec.md §12.3
// "Snappy/zstd misdetection guard"). archtape currently ships one codec;
// the byte exists so a future second codec doesn't require a format break.
type Codec byte

// CodecZstd is the only codec archtape writes or reads today.
const CodecZstd Codec = 1

// Header is the per-entity metadata record of spec.md §3.2/§6.1.
type Header struct {
	ID                  common.ID
	CheckpointEvery     uint16
	Times               []int64
	CheckpointPositions []uint32
	Offset              uint64
	CompressedLen       uint32
	DecompressedLen     uint32
}

// validate checks the invariants of spec.md §3.2 that can be verified
// without touching the store section: sorted-no-duplicate times and a
// checkpoint_positions vector of the right shape.
func (h *Header) validate() error {
	for i := 1; i < len(h.Times); i++ {
		if h.Times[i] <= h.Times[i-1] {
			return fmt.Errorf("%w: entity %s times not strictly ascending at index %d", archerr.ErrBadTape, h.ID, i)
		}
	}
	if h.CheckpointEvery == 0 {
		return fmt.Errorf("%w: entity %s has checkpoint_every=0", archerr.ErrBadTape, h.ID)
	}
	wantRuns := (len(h.Times) + int(h.CheckpointEvery) - 1) / int(h.CheckpointEvery)
	if len(h.Times) > 0 && len(h.CheckpointPositions) != wantRuns {
		return fmt.Errorf("%w: entity %s has %d checkpoint positions, want %d", archerr.ErrBadTape, h.ID, len(h.CheckpointPositions), wantRuns)
	}
	if len(h.CheckpointPositions) > 0 && h.CheckpointPositions[0] != 0 {
		return fmt.Errorf("%w: entity %s checkpoint_positions[0] = %d, want 0", archerr.ErrBadTape, h.ID, h.CheckpointPositions[0])
	}
	return nil
}

// encodeHeaders serializes a slice of Header to the self-describing form
// stored (compressed) in the header block.
func encodeHeaders(headers []Header) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(headers)))
	for _, h := range headers {
		buf = append(buf, h.ID[:]...)
		buf = appendUint16(buf, h.CheckpointEvery)
		buf = appendUvarint(buf, uint64(len(h.Times)))
		for _, t := range h.Times {
			buf = appendUint64(buf, uint64(t))
		}
		buf = appendUvarint(buf, uint64(len(h.CheckpointPositions)))
		for _, p := range h.CheckpointPositions {
			buf = appendUint32(buf, p)
		}
		buf = appendUint64(buf, h.Offset)
		buf = appendUint32(buf, h.CompressedLen)
		buf = appendUint32(buf, h.DecompressedLen)
	}
	return buf
}

func decodeHeaders(data []byte) ([]Header, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, err
	}
	headers := make([]Header, 0, n)
	for i := uint64(0); i < n; i++ {
		var h Header
		if len(rest) < 16 {
			return nil, fmt.Errorf("%w: truncated entity id", archerr.ErrBadTape)
		}
		copy(h.ID[:], rest[:16])
		rest = rest[16:]

		var ce uint16
		ce, rest, err = readUint16(rest)
		if err != nil {
			return nil, err
		}
		h.CheckpointEvery = ce

		var timesLen uint64
		timesLen, rest, err = readUvarint(rest)
		if err != nil {
			return nil, err
		}
		h.Times = make([]int64, timesLen)
		for j := range h.Times {
			var t uint64
			t, rest, err = readUint64(rest)
			if err != nil {
				return nil, err
			}
			h.Times[j] = int64(t)
		}

		var posLen uint64
		posLen, rest, err = readUvarint(rest)
		if err != nil {
			return nil, err
		}
		h.CheckpointPositions = make([]uint32, posLen)
		for j := range h.CheckpointPositions {
			var p uint32
			p, rest, err = readUint32(rest)
			if err != nil {
				return nil, err
			}
			h.CheckpointPositions[j] = p
		}

		var off uint64
		off, rest, err = readUint64(rest)
		if err != nil {
			return nil, err
		}
		h.Offset = off

		var cl uint32
		cl, rest, err = readUint32(rest)
		if err != nil {
			return nil, err
		}
		h.CompressedLen = cl

		var dl uint32
		dl, rest, err = readUint32(rest)
		if err != nil {
			return nil, err
		}
		h.DecompressedLen = dl

		if err := h.validate(); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// indexByID builds the entity-id to header-slot index opened alongside the
// tape (spec.md §4.2: "builds an index from entity-id -> header slot").
func indexByID(headers []Header) map[common.ID]int {
	idx := make(map[common.ID]int, len(headers))
	for i, h := range headers {
		idx[h.ID] = i
	}
	return idx
}

// sortedByID returns header indices sorted by ID, an iteration order that
// does not depend on header-slot order. No code in this module calls it.
func sortedByID(headers []Header) []int {
	order := make([]int, len(headers))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return string(headers[order[a]].ID[:]) < string(headers[order[b]].ID[:])
	})
	return order
}

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

func appendUint16(buf []byte, x uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], x)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, x uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], x)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, x uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], x)
	return append(buf, tmp[:]...)
}

func readUvarint(data []byte) (uint64, []byte, error) {
	x, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("%w: malformed varint in header block", archerr.ErrBadTape)
	}
	return x, data[n:], nil
}

func readUint16(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("%w: truncated u16", archerr.ErrBadTape)
	}
	return binary.LittleEndian.Uint16(data[:2]), data[2:], nil
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("%w: truncated u32", archerr.ErrBadTape)
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

func readUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated u64", archerr.ErrBadTape)
	}
	return binary.LittleEndian.Uint64(data[:8]), data[8:], nil
}
