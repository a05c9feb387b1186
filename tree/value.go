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

// Package tree implements the structural value model that entity versions
// are diffed over, per spec.md §4.1. There is no off-the-shelf structural
// diff/patch library anywhere in the retrieved corpus; this package and its
// diff algebra are hand-rolled, justified in DESIGN.md under the standard-
// library section.
package tree

import "sort"

// Kind discriminates the variants of Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is a JSON-like tree: the generic representation entity versions are
// stored and diffed as, per spec.md §4.1 ("entities are opaque structured
// values; the engine never depends on a fixed Go struct"). Callers that want
// static types layer a codec on top (see entitydb.Record).
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Bytes  []byte
	List   []Value
	Map    map[string]Value
}

func Null() Value              { return Value{Kind: KindNull} }
func Bool(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value        { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value    { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value     { return Value{Kind: KindBytes, Bytes: b} }
func List(v ...Value) Value    { return Value{Kind: KindList, List: v} }
func Map(m map[string]Value) Value {
	return Value{Kind: KindMap, Map: m}
}

// SortedKeys returns a Map's keys in deterministic order, the order used by
// both canonical encoding and diffing.
func (v Value) SortedKeys() []string {
	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep structural equality.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		if len(a.Bytes) != len(b.Bytes) {
			return false
		}
		for i := range a.Bytes {
			if a.Bytes[i] != b.Bytes[i] {
				return false
			}
		}
		return true
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone deep-copies v so callers mutating a base Value never alias a cached
// or mmap-backed decode result.
func Clone(v Value) Value {
	switch v.Kind {
	case KindBytes:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return Value{Kind: KindBytes, Bytes: b}
	case KindList:
		l := make([]Value, len(v.List))
		for i, e := range v.List {
			l[i] = Clone(e)
		}
		return Value{Kind: KindList, List: l}
	case KindMap:
		m := make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = Clone(e)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return v
	}
}
