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

package stream

import (
	"fmt"

	"github.com/archtape/archtape/archerr"
)

// encodeTimestamps bit-packs times via delta+zigzag+run-length coding
// (spec.md §4.4.2): each timestamp is first replaced by its delta from the
// previous one (the first delta is relative to zero), zigzag-encoded so
// negative deltas (clock jumps) stay compact, then runs of equal deltas
// are collapsed to (run_length, value) pairs. The timestamp count itself
// is carried in the batch header (times_len), not in this block.
func encodeTimestamps(times []int64) []byte {
	var buf []byte
	var prev int64
	i := 0
	for i < len(times) {
		delta := times[i] - prev
		run := 1
		for i+run < len(times) && times[i+run]-times[i+run-1] == delta {
			run++
		}
		buf = appendUvarint(buf, uint64(run))
		buf = appendUvarint(buf, zigzagEncode(delta))
		prev = times[i+run-1]
		i += run
	}
	return buf
}

// decodeTimestamps reconstructs exactly count timestamps from data.
func decodeTimestamps(data []byte, count int) ([]int64, error) {
	out := make([]int64, 0, count)
	var prev int64
	for len(out) < count {
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: timestamp block exhausted before count reached", archerr.ErrBadTape)
		}
		runU, rest, err := readUvarint(data)
		if err != nil {
			return nil, err
		}
		deltaZ, rest2, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		delta := zigzagDecode(deltaZ)
		for r := uint64(0); r < runU && len(out) < count; r++ {
			prev += delta
			out = append(out, prev)
		}
		data = rest2
	}
	return out, nil
}

func zigzagEncode(x int64) uint64 {
	return uint64((x << 1) ^ (x >> 63))
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
