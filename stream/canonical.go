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
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/manager"
)

func locFrom(headerIndex, timeIndex uint32) common.Location {
	return common.Location{HeaderIndex: headerIndex, TimeIndex: timeIndex}
}

// encodeNode is the compact structural codec of spec.md §4.4.2 ("the
// vector of packed snapshots is serialized with a compact structural
// codec"). It mirrors tree.Encode's varint-tagged shape, extended with the
// KindRef leaf (tag as a length-prefixed string, then an 8-byte location).
func encodeNode(buf []byte, n Node) []byte {
	buf = append(buf, byte(n.Kind))
	switch n.Kind {
	case KindNull:
	case KindBool:
		if n.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindInt:
		buf = appendUint64(buf, uint64(n.Int))
	case KindFloat:
		buf = appendUint64(buf, math.Float64bits(n.Float))
	case KindString:
		buf = appendLenPrefixed(buf, []byte(n.Str))
	case KindList:
		buf = appendUvarint(buf, uint64(len(n.List)))
		for _, c := range n.List {
			buf = encodeNode(buf, c)
		}
	case KindMap:
		keys := make([]string, 0, len(n.Map))
		for k := range n.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = appendUvarint(buf, uint64(len(keys)))
		for _, k := range keys {
			buf = appendLenPrefixed(buf, []byte(k))
			buf = encodeNode(buf, n.Map[k])
		}
	case KindRef:
		buf = appendLenPrefixed(buf, []byte(n.Ref.Tag))
		buf = appendUint32(buf, n.Ref.Loc.HeaderIndex)
		buf = appendUint32(buf, n.Ref.Loc.TimeIndex)
	default:
		panic(fmt.Sprintf("stream: cannot encode unresolved node kind %d", n.Kind))
	}
	return buf
}

func decodeNode(data []byte) (Node, []byte, error) {
	if len(data) < 1 {
		return Node{}, nil, fmt.Errorf("%w: truncated node tag", archerr.ErrDecode)
	}
	kind := Kind(data[0])
	data = data[1:]
	switch kind {
	case KindNull:
		return Null(), data, nil
	case KindBool:
		if len(data) < 1 {
			return Node{}, nil, fmt.Errorf("%w: truncated bool", archerr.ErrDecode)
		}
		return Bool(data[0] != 0), data[1:], nil
	case KindInt:
		x, rest, err := readUint64(data)
		if err != nil {
			return Node{}, nil, err
		}
		return Int(int64(x)), rest, nil
	case KindFloat:
		x, rest, err := readUint64(data)
		if err != nil {
			return Node{}, nil, err
		}
		return Float(math.Float64frombits(x)), rest, nil
	case KindString:
		b, rest, err := readLenPrefixed(data)
		if err != nil {
			return Node{}, nil, err
		}
		return String(string(b)), rest, nil
	case KindList:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Node{}, nil, err
		}
		list := make([]Node, 0, n)
		for i := uint64(0); i < n; i++ {
			var c Node
			c, rest, err = decodeNode(rest)
			if err != nil {
				return Node{}, nil, err
			}
			list = append(list, c)
		}
		return Node{Kind: KindList, List: list}, rest, nil
	case KindMap:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Node{}, nil, err
		}
		m := make(map[string]Node, n)
		for i := uint64(0); i < n; i++ {
			var kb []byte
			kb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return Node{}, nil, err
			}
			var c Node
			c, rest, err = decodeNode(rest)
			if err != nil {
				return Node{}, nil, err
			}
			m[string(kb)] = c
		}
		return Node{Kind: KindMap, Map: m}, rest, nil
	case KindRef:
		tagBytes, rest, err := readLenPrefixed(data)
		if err != nil {
			return Node{}, nil, err
		}
		headerIndex, rest, err := readUint32(rest)
		if err != nil {
			return Node{}, nil, err
		}
		timeIndex, rest, err := readUint32(rest)
		if err != nil {
			return Node{}, nil, err
		}
		return Node{Kind: KindRef, Ref: Ref{Tag: manager.Tag(tagBytes), Loc: locFrom(headerIndex, timeIndex)}}, rest, nil
	default:
		return Node{}, nil, fmt.Errorf("%w: unknown node tag %d", archerr.ErrDecode, kind)
	}
}

func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
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
		return 0, nil, fmt.Errorf("%w: malformed varint", archerr.ErrDecode)
	}
	return x, data[n:], nil
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

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("%w: truncated u32", archerr.ErrDecode)
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

func readUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated u64", archerr.ErrDecode)
	}
	return binary.LittleEndian.Uint64(data[:8]), data[8:], nil
}
