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

// Package stream implements the composite-stream layer of spec.md §3.4/§4.4:
// a "stream snapshot" tree whose leaves are references into per-type entity
// databases, packed and batched for storage, and rehydrated on demand.
package stream

import (
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/tree"
)

// Kind discriminates the variants of Node. It extends tree.Kind's scalar
// and container shapes with the two leaf kinds specific to stream
// snapshots, per spec.md §4.4.1.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	// KindEntity is an unresolved full entity record awaiting packing.
	// Only valid as input to Pack; never appears in a packed tree.
	KindEntity
	// KindRef is a resolved (tag, location) reference into an entity
	// database. Only produced by Pack and consumed by Rehydrate.
	KindRef
)

// Ref is a resolved entity-type reference, per spec.md §3.4.
type Ref struct {
	Tag manager.Tag
	Loc common.Location
}

// Node is one element of a stream snapshot tree. Before packing, leaves of
// kind KindEntity carry an entity's id, type tag and full serialized value;
// after packing, those leaves become KindRef. Both forms share the same
// Map/List recursion so a template snapshot and its packed form have
// identical shape (spec.md §4.4.1: "list-valued leaves are packed
// element-wise", "optional leaves preserve nullability").
type Node struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Node
	Map   map[string]Node

	Ref Ref

	EntityTag   manager.Tag
	EntityID    common.ID
	EntityValue tree.Value
}

func Null() Node           { return Node{Kind: KindNull} }
func Bool(b bool) Node     { return Node{Kind: KindBool, Bool: b} }
func Int(i int64) Node     { return Node{Kind: KindInt, Int: i} }
func Float(f float64) Node { return Node{Kind: KindFloat, Float: f} }
func String(s string) Node { return Node{Kind: KindString, Str: s} }
func List(n ...Node) Node  { return Node{Kind: KindList, List: n} }
func Map(m map[string]Node) Node {
	return Node{Kind: KindMap, Map: m}
}

// Entity builds an unresolved KindEntity leaf: id and tag identify the
// owning database, value is the canonical record to pack.
func Entity(tag manager.Tag, id common.ID, value tree.Value) Node {
	return Node{Kind: KindEntity, EntityTag: tag, EntityID: id, EntityValue: value}
}
