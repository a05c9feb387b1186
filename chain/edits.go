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

package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/tree"
)

// encodeEdits/decodeEdits serialize a tree.Diff result for storage inside a
// chain record. The wire shape mirrors tree.Encode's varint-and-tag style
// so the same decode-error taxonomy applies to corrupt diffs.
func encodeEdits(edits []tree.Edit) []byte {
	buf := appendUvarint(nil, uint64(len(edits)))
	for _, e := range edits {
		buf = append(buf, byte(e.Op))
		buf = appendUvarint(buf, uint64(len(e.Path)))
		for _, p := range e.Path {
			if p.IsIndex {
				buf = append(buf, 1)
				buf = appendUvarint(buf, uint64(p.Index))
			} else {
				buf = append(buf, 0)
				buf = appendLenPrefixed(buf, []byte(p.Key))
			}
		}
		switch e.Op {
		case tree.OpSetScalar, tree.OpReplaceSubtree:
			buf = appendLenPrefixed(buf, tree.Encode(e.Value))
		case tree.OpListInsert:
			buf = appendUvarint(buf, uint64(e.Index))
			buf = appendLenPrefixed(buf, tree.Encode(e.Value))
		case tree.OpListRemove:
			buf = appendUvarint(buf, uint64(e.Index))
		case tree.OpMapInsert:
			buf = appendLenPrefixed(buf, []byte(e.Key))
			buf = appendLenPrefixed(buf, tree.Encode(e.Value))
		case tree.OpMapRemove:
			buf = appendLenPrefixed(buf, []byte(e.Key))
		}
	}
	return buf
}

func decodeEdits(data []byte) ([]tree.Edit, error) {
	n, rest, err := readUvarint(data)
	if err != nil {
		return nil, err
	}
	edits := make([]tree.Edit, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(rest) < 1 {
			return nil, fmt.Errorf("%w: truncated edit op", archerr.ErrDecode)
		}
		op := tree.EditOp(rest[0])
		rest = rest[1:]
		var pathLen uint64
		pathLen, rest, err = readUvarint(rest)
		if err != nil {
			return nil, err
		}
		path := make([]tree.PathElem, 0, pathLen)
		for p := uint64(0); p < pathLen; p++ {
			if len(rest) < 1 {
				return nil, fmt.Errorf("%w: truncated path element", archerr.ErrDecode)
			}
			isIndex := rest[0] != 0
			rest = rest[1:]
			if isIndex {
				var idx uint64
				idx, rest, err = readUvarint(rest)
				if err != nil {
					return nil, err
				}
				path = append(path, tree.PathIndex(int(idx)))
			} else {
				var kb []byte
				kb, rest, err = readLenPrefixed(rest)
				if err != nil {
					return nil, err
				}
				path = append(path, tree.PathKey(string(kb)))
			}
		}
		e := tree.Edit{Op: op, Path: path}
		switch op {
		case tree.OpSetScalar, tree.OpReplaceSubtree:
			var vb []byte
			vb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			e.Value, err = tree.Decode(vb)
			if err != nil {
				return nil, err
			}
		case tree.OpListInsert:
			var idx uint64
			idx, rest, err = readUvarint(rest)
			if err != nil {
				return nil, err
			}
			e.Index = int(idx)
			var vb []byte
			vb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			e.Value, err = tree.Decode(vb)
			if err != nil {
				return nil, err
			}
		case tree.OpListRemove:
			var idx uint64
			idx, rest, err = readUvarint(rest)
			if err != nil {
				return nil, err
			}
			e.Index = int(idx)
		case tree.OpMapInsert:
			var kb []byte
			kb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			e.Key = string(kb)
			var vb []byte
			vb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			e.Value, err = tree.Decode(vb)
			if err != nil {
				return nil, err
			}
		case tree.OpMapRemove:
			var kb []byte
			kb, rest, err = readLenPrefixed(rest)
			if err != nil {
				return nil, err
			}
			e.Key = string(kb)
		default:
			return nil, fmt.Errorf("%w: unknown edit op %d", archerr.ErrDecode, op)
		}
		edits = append(edits, e)
	}
	return edits, nil
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
