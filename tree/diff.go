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
	"fmt"

	"github.com/archtape/archtape/archerr"
)

// EditOp discriminates the variants of Edit, per spec.md §4.1's diff algebra.
type EditOp uint8

const (
	// OpSetScalar replaces a scalar leaf addressed by Path with Value.
	OpSetScalar EditOp = iota
	// OpReplaceSubtree replaces an entire subtree addressed by Path.
	OpReplaceSubtree
	// OpListInsert inserts Value into the list at Path at index Index.
	OpListInsert
	// OpListRemove removes the element at Path/Index from a list.
	OpListRemove
	// OpMapInsert inserts or overwrites Value under Key in the map at Path.
	OpMapInsert
	// OpMapRemove deletes Key from the map at Path.
	OpMapRemove
)

// Edit is one step of a diff. A Diff is an ordered slice of Edits; applying
// them in order to a base Value reconstructs a later version (spec.md §4.1).
type Edit struct {
	Op    EditOp
	Path  []PathElem
	Index int
	Key   string
	Value Value
}

// PathElem addresses one step down a Value tree: either a map key or a
// list index.
type PathElem struct {
	Key     string
	Index   int
	IsIndex bool
}

func PathKey(k string) PathElem  { return PathElem{Key: k} }
func PathIndex(i int) PathElem   { return PathElem{Index: i, IsIndex: true} }

// Diff computes the ordered edit list that transforms base into next.
// Lists are compared positionally (no LCS/Myers alignment: spec.md §4.1
// specifies sequence edits only as append/remove-at-tail-or-index, not
// minimal-edit-distance diffing, since entity list fields are append-mostly
// logs in the source domain). Map fields are compared by key so unrelated
// keys never appear in the diff.
func Diff(base, next Value) []Edit {
	var edits []Edit
	diffInto(&edits, nil, base, next)
	return edits
}

func diffInto(edits *[]Edit, path []PathElem, base, next Value) {
	if base.Kind != next.Kind {
		*edits = append(*edits, Edit{Op: OpReplaceSubtree, Path: clonePath(path), Value: Clone(next)})
		return
	}
	switch base.Kind {
	case KindMap:
		for _, k := range next.SortedKeys() {
			nv := next.Map[k]
			if bv, ok := base.Map[k]; ok {
				if !Equal(bv, nv) {
					diffField(edits, path, k, bv, nv)
				}
			} else {
				*edits = append(*edits, Edit{Op: OpMapInsert, Path: clonePath(path), Key: k, Value: Clone(nv)})
			}
		}
		for _, k := range base.SortedKeys() {
			if _, ok := next.Map[k]; !ok {
				*edits = append(*edits, Edit{Op: OpMapRemove, Path: clonePath(path), Key: k})
			}
		}
	case KindList:
		minLen := len(base.List)
		if len(next.List) < minLen {
			minLen = len(next.List)
		}
		for i := 0; i < minLen; i++ {
			if !Equal(base.List[i], next.List[i]) {
				childPath := append(clonePath(path), PathIndex(i))
				diffInto(edits, childPath, base.List[i], next.List[i])
			}
		}
		for i := len(base.List) - 1; i >= minLen; i-- {
			*edits = append(*edits, Edit{Op: OpListRemove, Path: clonePath(path), Index: i})
		}
		for i := minLen; i < len(next.List); i++ {
			*edits = append(*edits, Edit{Op: OpListInsert, Path: clonePath(path), Index: i, Value: Clone(next.List[i])})
		}
	default:
		if !Equal(base, next) {
			*edits = append(*edits, Edit{Op: OpSetScalar, Path: clonePath(path), Value: Clone(next)})
		}
	}
}

func diffField(edits *[]Edit, path []PathElem, key string, bv, nv Value) {
	childPath := append(clonePath(path), PathKey(key))
	diffInto(edits, childPath, bv, nv)
}

func clonePath(p []PathElem) []PathElem {
	out := make([]PathElem, len(p))
	copy(out, p)
	return out
}

// Apply replays edits against base in order, returning the reconstructed
// Value. Apply never mutates base. An edit that does not structurally match
// its target (wrong kind at Path, out-of-range Index, missing Key on a
// remove) is reported via archerr.ErrDiffApply, matching the original
// implementation's behavior of surfacing corrupt delta chains rather than
// silently producing a wrong value (spec.md §7).
func Apply(base Value, edits []Edit) (Value, error) {
	cur := Clone(base)
	for i, e := range edits {
		next, err := applyOne(cur, e.Path, e)
		if err != nil {
			return Value{}, fmt.Errorf("edit %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

func applyOne(v Value, path []PathElem, e Edit) (Value, error) {
	if len(path) == 0 {
		return applyLeaf(v, e)
	}
	step := path[0]
	rest := path[1:]
	if step.IsIndex {
		if v.Kind != KindList || step.Index < 0 || step.Index >= len(v.List) {
			return Value{}, fmt.Errorf("%w: list index %d out of range", archerr.ErrDiffApply, step.Index)
		}
		list := make([]Value, len(v.List))
		copy(list, v.List)
		child, err := applyOne(list[step.Index], rest, e)
		if err != nil {
			return Value{}, err
		}
		list[step.Index] = child
		return Value{Kind: KindList, List: list}, nil
	}
	if v.Kind != KindMap {
		return Value{}, fmt.Errorf("%w: expected map at key %q", archerr.ErrDiffApply, step.Key)
	}
	child, ok := v.Map[step.Key]
	if !ok {
		return Value{}, fmt.Errorf("%w: missing key %q", archerr.ErrDiffApply, step.Key)
	}
	m := make(map[string]Value, len(v.Map))
	for k, val := range v.Map {
		m[k] = val
	}
	next, err := applyOne(child, rest, e)
	if err != nil {
		return Value{}, err
	}
	m[step.Key] = next
	return Value{Kind: KindMap, Map: m}, nil
}

func applyLeaf(v Value, e Edit) (Value, error) {
	switch e.Op {
	case OpSetScalar, OpReplaceSubtree:
		return Clone(e.Value), nil
	case OpListInsert:
		if v.Kind != KindList || e.Index < 0 || e.Index > len(v.List) {
			return Value{}, fmt.Errorf("%w: list insert index %d out of range", archerr.ErrDiffApply, e.Index)
		}
		list := make([]Value, 0, len(v.List)+1)
		list = append(list, v.List[:e.Index]...)
		list = append(list, Clone(e.Value))
		list = append(list, v.List[e.Index:]...)
		return Value{Kind: KindList, List: list}, nil
	case OpListRemove:
		if v.Kind != KindList || e.Index < 0 || e.Index >= len(v.List) {
			return Value{}, fmt.Errorf("%w: list remove index %d out of range", archerr.ErrDiffApply, e.Index)
		}
		list := make([]Value, 0, len(v.List)-1)
		list = append(list, v.List[:e.Index]...)
		list = append(list, v.List[e.Index+1:]...)
		return Value{Kind: KindList, List: list}, nil
	case OpMapInsert:
		if v.Kind != KindMap {
			return Value{}, fmt.Errorf("%w: map insert on non-map", archerr.ErrDiffApply)
		}
		m := make(map[string]Value, len(v.Map)+1)
		for k, val := range v.Map {
			m[k] = val
		}
		m[e.Key] = Clone(e.Value)
		return Value{Kind: KindMap, Map: m}, nil
	case OpMapRemove:
		if v.Kind != KindMap {
			return Value{}, fmt.Errorf("%w: map remove on non-map", archerr.ErrDiffApply)
		}
		if _, ok := v.Map[e.Key]; !ok {
			return Value{}, fmt.Errorf("%w: map remove missing key %q", archerr.ErrDiffApply, e.Key)
		}
		m := make(map[string]Value, len(v.Map)-1)
		for k, val := range v.Map {
			if k != e.Key {
				m[k] = val
			}
		}
		return Value{Kind: KindMap, Map: m}, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown edit op %d", archerr.ErrDiffApply, e.Op)
	}
}
