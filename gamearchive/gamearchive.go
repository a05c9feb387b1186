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

// Package gamearchive implements the secondary, simpler archive format of
// spec.md §6.2: one entity type whose versions are huge and independent is
// stored as a flat sequence of snappy-compressed records, each holding the
// full per-time snapshot list for one entity. Unlike the tape format,
// there is no delta chain, no dictionary and no memory mapping — each
// record stands alone, matching the original "game updates" archive this
// generalizes (original_source/encoder/src/lib.rs).
package gamearchive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/tree"
)

// SortKey is the opaque small sort key each record is keyed by — a
// generalization of the original format's per-game date string to an
// arbitrary 4-byte value, so this format isn't tied to any one domain
// (spec.md §12 supplements the source's GameDate-specific format this way).
type SortKey [4]byte

// Record is one archived entity's full snapshot list, keyed by SortKey
// for caller-defined ordering (e.g. a season/day code).
type Record struct {
	Key  SortKey
	List tree.Value // a tree.KindList of per-time snapshots
}

// Write appends records to w as the sequence of
// {compressed_len: u64 LE, decompressed_len: u64 LE, payload} defined in
// spec.md §6.2. The sort key is carried as the first 4 bytes of each
// record's decompressed payload.
func Write(w io.Writer, records []Record) error {
	for _, rec := range records {
		decoded := append(append([]byte{}, rec.Key[:]...), tree.Encode(rec.List)...)
		compressed := snappy.Encode(nil, decoded)

		var lens [16]byte
		binary.LittleEndian.PutUint64(lens[0:8], uint64(len(compressed)))
		binary.LittleEndian.PutUint64(lens[8:16], uint64(len(decoded)))
		if _, err := w.Write(lens[:]); err != nil {
			return err
		}
		if _, err := w.Write(compressed); err != nil {
			return err
		}
	}
	return nil
}

// ReadAll reads every record from path. The whole-file decode matches the
// source's access pattern for this archive (whole-game-history reads, not
// point lookups), so no seek table is built.
func ReadAll(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	pos := 0
	for pos < len(data) {
		if pos+16 > len(data) {
			return nil, fmt.Errorf("%w: truncated record length prefix at offset %d", archerr.ErrBadTape, pos)
		}
		compressedLen := binary.LittleEndian.Uint64(data[pos : pos+8])
		decompressedLen := binary.LittleEndian.Uint64(data[pos+8 : pos+16])
		pos += 16
		if uint64(pos)+compressedLen > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated record payload at offset %d", archerr.ErrBadTape, pos)
		}
		payload := data[pos : pos+int(compressedLen)]
		pos += int(compressedLen)

		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", archerr.ErrDecode, err)
		}
		if uint64(len(decoded)) != decompressedLen {
			return nil, fmt.Errorf("%w: decompressed to %d bytes, header declares %d", archerr.ErrDecode, len(decoded), decompressedLen)
		}
		if len(decoded) < 4 {
			return nil, fmt.Errorf("%w: record shorter than sort key", archerr.ErrBadTape)
		}
		var key SortKey
		copy(key[:], decoded[:4])
		list, err := tree.Decode(decoded[4:])
		if err != nil {
			return nil, err
		}
		records = append(records, Record{Key: key, List: list})
	}
	return records, nil
}
