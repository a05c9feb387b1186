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

package tree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/archtape/archtape/archerr"
)

// Encode serializes v into the canonical binary form used for checkpoint
// records (chain.Encode) and as the preimage of ContentHash. Map keys
// are always written in sorted order so two structurally equal values
// produce byte-identical encodings, per spec.md §4.1's determinism
// requirement.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case KindNull:
	case KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.Int))
		buf = append(buf, tmp[:]...)
	case KindFloat:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.Float))
		buf = append(buf, tmp[:]...)
	case KindString:
		buf = appendLenPrefixed(buf, []byte(v.Str))
	case KindBytes:
		buf = appendLenPrefixed(buf, v.Bytes)
	case KindList:
		buf = appendUvarint(buf, uint64(len(v.List)))
		for _, e := range v.List {
			buf = appendValue(buf, e)
		}
	case KindMap:
		keys := v.SortedKeys()
		buf = appendUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			buf = appendLenPrefixed(buf, []byte(k))
			buf = appendValue(buf, v.Map[k])
		}
	}
	return buf
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

// Decode is the inverse of Encode. It returns archerr.ErrDecode (wrapped)
// on any structural inconsistency, since decode failures here always
// originate from a corrupt tape (spec.md §7).
func Decode(data []byte) (Value, error) {
	v, rest, err := readValue(data)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", archerr.ErrDecode, len(rest))
	}
	return v, nil
}

func readValue(data []byte) (Value, []byte, error) {
	if len(data) < 1 {
		return Value{}, nil, fmt.Errorf("%w: truncated value tag", archerr.ErrDecode)
	}
	kind := Kind(data[0])
	data = data[1:]
	switch kind {
	case KindNull:
		return Null(), data, nil
	case KindBool:
		if len(data) < 1 {
			return Value{}, nil, fmt.Errorf("%w: truncated bool", archerr.ErrDecode)
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindInt:
		if len(data) < 8 {
			return Value{}, nil, fmt.Errorf("%w: truncated int", archerr.ErrDecode)
		}
		return Int(int64(binary.LittleEndian.Uint64(data[:8]))), data[8:], nil
	case KindFloat:
		if len(data) < 8 {
			return Value{}, nil, fmt.Errorf("%w: truncated float", archerr.ErrDecode)
		}
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))), data[8:], nil
	case KindString:
		b, rest, err := readLenPrefixed(data)
		if err != nil {
			return Value{}, nil, err
		}
		return String(string(b)), rest, nil
	case KindBytes:
		b, rest, err := readLenPrefixed(data)
		if err != nil {
			return Value{}, nil, err
		}
		return Bytes(b), rest, nil
	case KindList:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Value{}, nil, err
		}
		list := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			var e Value
			e, rest, err = readValue(rest)
			if err != nil {
				return Value{}, nil, err
			}
			list = append(list, e)
		}
		return Value{Kind: KindList, List: list}, rest, nil
	case KindMap:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Value{}, nil, err
		}
		m := make(map[string]Value, n)
		for i := uint64(0); i < n; i++ {
			var kb []byte
			kb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return Value{}, nil, err
			}
			var e Value
			e, rest, err = readValue(rest)
			if err != nil {
				return Value{}, nil, err
			}
			m[string(kb)] = e
		}
		return Value{Kind: KindMap, Map: m}, rest, nil
	default:
		return Value{}, nil, fmt.Errorf("%w: unknown value tag %d", archerr.ErrDecode, kind)
	}
}

func readLenPrefixed(data []byte) ([]byte, []byte, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, fmt.Errorf("%w: truncated length-prefixed field", archerr.ErrDecode)
	}
	return rest[:n], rest[n:], nil
}

func readUvarint(data []byte) (uint64, []byte, error) {
	x, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("%w: malformed varint", archerr.ErrDecode)
	}
	return x, data[n:], nil
}
