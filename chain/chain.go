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

// Package chain implements the delta-chain codec of spec.md §4.1: a run of
// K versions is stored as one full checkpoint followed by K-1 diffs, so an
// individual version or a contiguous range can be reconstructed without
// touching sibling entities.
package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/tree"
)

// Encode lays out versions as runs of K: a checkpoint followed by K-1 diff
// records, and returns the decompressed buffer alongside the byte offset of
// each run's first byte (one entry per run, ⌈N/K⌉ total, offsets[0] == 0).
// The caller (tape.Builder) compresses the returned buffer with the entity
// type's trained dictionary.
func Encode(versions []tree.Value, k int) (buf []byte, checkpointPositions []uint32) {
	if k <= 0 {
		k = 1
	}
	for j := 0; j < len(versions); j += k {
		checkpointPositions = append(checkpointPositions, uint32(len(buf)))
		end := j + k
		if end > len(versions) {
			end = len(versions)
		}
		run := versions[j:end]
		buf = appendRecord(buf, tree.Encode(run[0]))
		for r := 0; r+1 < len(run); r++ {
			edits := tree.Diff(run[r], run[r+1])
			buf = appendRecord(buf, encodeEdits(edits))
		}
	}
	return buf, checkpointPositions
}

// DecodeAt reconstructs version i from a run's decoded chain bytes.
// checkpointPositions and k come from the entity's header (spec.md §3.2).
func DecodeAt(buf []byte, checkpointPositions []uint32, k, i int) (tree.Value, error) {
	j, r := i/k, i%k
	recs, err := runRecords(buf, checkpointPositions, j)
	if err != nil {
		return tree.Value{}, err
	}
	if r >= len(recs) {
		return tree.Value{}, fmt.Errorf("%w: version index %d past end of run %d (len %d)", archerr.ErrBadTape, i, j, len(recs))
	}
	return replay(recs, r)
}

// DecodeRange reconstructs the inclusive range [a, b], returning versions
// in ascending order. Both endpoints are inclusive per spec.md §8 invariant
// 2 and §9's resolution of the source's exclusive-range bug: every case
// below (same run, adjacent runs, disjoint runs) treats b as included.
func DecodeRange(buf []byte, checkpointPositions []uint32, k, a, b int) ([]tree.Value, error) {
	if a > b {
		return nil, nil
	}
	ja, ra := a/k, a%k
	jb, rb := b/k, b%k

	if ja == jb {
		recs, err := runRecords(buf, checkpointPositions, ja)
		if err != nil {
			return nil, err
		}
		return replayRange(recs, ra, rb)
	}

	var out []tree.Value

	firstRecs, err := runRecords(buf, checkpointPositions, ja)
	if err != nil {
		return nil, err
	}
	firstTail, err := replayRange(firstRecs, ra, len(firstRecs)-1)
	if err != nil {
		return nil, err
	}
	out = append(out, firstTail...)

	for j := ja + 1; j < jb; j++ {
		recs, err := runRecords(buf, checkpointPositions, j)
		if err != nil {
			return nil, err
		}
		full, err := replayRange(recs, 0, len(recs)-1)
		if err != nil {
			return nil, err
		}
		out = append(out, full...)
	}

	lastRecs, err := runRecords(buf, checkpointPositions, jb)
	if err != nil {
		return nil, err
	}
	lastHead, err := replayRange(lastRecs, 0, rb)
	if err != nil {
		return nil, err
	}
	out = append(out, lastHead...)

	return out, nil
}

// runRecords slices out run j's raw records (checkpoint + diffs) from buf.
// If checkpointPositions has fewer entries than the caller implies, the
// range extends to the end of buf (spec.md §4.1 edge cases).
func runRecords(buf []byte, checkpointPositions []uint32, j int) ([][]byte, error) {
	if j < 0 || j >= len(checkpointPositions) {
		return nil, fmt.Errorf("%w: run %d out of range (have %d)", archerr.ErrBadTape, j, len(checkpointPositions))
	}
	start := checkpointPositions[j]
	var end uint32
	if j+1 < len(checkpointPositions) {
		end = checkpointPositions[j+1]
	} else {
		end = uint32(len(buf))
	}
	if int(start) > len(buf) || int(end) > len(buf) || start > end {
		return nil, fmt.Errorf("%w: run %d byte range [%d,%d) invalid for buffer of length %d", archerr.ErrBadTape, j, start, end, len(buf))
	}
	region := buf[start:end]
	var recs [][]byte
	for len(region) > 0 {
		rec, rest, err := readRecord(region)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
		region = rest
	}
	return recs, nil
}

// replay applies recs[0] (a checkpoint) plus recs[1..=r] (diffs) in order.
func replay(recs [][]byte, r int) (tree.Value, error) {
	base, err := tree.Decode(recs[0])
	if err != nil {
		return tree.Value{}, fmt.Errorf("checkpoint: %w", err)
	}
	cur := base
	for step := 1; step <= r; step++ {
		edits, err := decodeEdits(recs[step])
		if err != nil {
			return tree.Value{}, fmt.Errorf("diff %d: %w", step, err)
		}
		cur, err = tree.Apply(cur, edits)
		if err != nil {
			return tree.Value{}, err
		}
	}
	return cur, nil
}

// replayRange returns versions [from, to] (inclusive, 0-based within the
// run) by walking the checkpoint and diffs once.
func replayRange(recs [][]byte, from, to int) ([]tree.Value, error) {
	if from > to || len(recs) == 0 {
		return nil, nil
	}
	if to >= len(recs) {
		to = len(recs) - 1
	}
	base, err := tree.Decode(recs[0])
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	cur := base
	var out []tree.Value
	if from == 0 {
		out = append(out, cur)
	}
	for step := 1; step <= to; step++ {
		edits, err := decodeEdits(recs[step])
		if err != nil {
			return nil, fmt.Errorf("diff %d: %w", step, err)
		}
		cur, err = tree.Apply(cur, edits)
		if err != nil {
			return nil, err
		}
		if step >= from {
			out = append(out, cur)
		}
	}
	return out, nil
}

func appendRecord(buf, rec []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(rec)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, rec...)
}

func readRecord(data []byte) (rec []byte, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated record length", archerr.ErrBadTape)
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint64(len(data)) < uint64(n) {
		return nil, nil, fmt.Errorf("%w: truncated record body", archerr.ErrBadTape)
	}
	return data[:n], data[n:], nil
}
