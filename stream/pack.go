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
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/hashloc"
	"github.com/archtape/archtape/log"
	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/tree"
)

// Packer resolves KindEntity leaves to KindRef locations at build time,
// per spec.md §4.4.1.
type Packer struct {
	hashes *hashloc.Map
	mgr    *manager.Manager
	log    *log.Logger
}

func NewPacker(hashes *hashloc.Map, mgr *manager.Manager, logger *log.Logger) *Packer {
	if logger == nil {
		logger = log.New()
	}
	return &Packer{hashes: hashes, mgr: mgr, log: logger}
}

// Pack walks node and resolves every KindEntity leaf against tSnapshot,
// the time this stream snapshot is being packed for.
func (p *Packer) Pack(node Node, tSnapshot int64) Node {
	switch node.Kind {
	case KindEntity:
		return p.packLeaf(node, tSnapshot)
	case KindList:
		out := make([]Node, 0, len(node.List))
		for _, c := range node.List {
			packed := p.Pack(c, tSnapshot)
			if packed.Kind == KindNull && c.Kind == KindEntity {
				// leaf dropped (spec.md §4.4.1: unknown identity), skip
				// the slot entirely rather than keep a null placeholder
				// in a list.
				continue
			}
			out = append(out, packed)
		}
		return Node{Kind: KindList, List: out}
	case KindMap:
		out := make(map[string]Node, len(node.Map))
		for k, c := range node.Map {
			out[k] = p.Pack(c, tSnapshot)
		}
		return Node{Kind: KindMap, Map: out}
	default:
		return node
	}
}

func (p *Packer) packLeaf(node Node, tSnapshot int64) Node {
	hash := tree.ContentHash(node.EntityValue)
	if p.hashes != nil {
		if loc, ok := p.hashes.Lookup(hash); ok {
			return Node{Kind: KindRef, Ref: Ref{Tag: node.EntityTag, Loc: loc}}
		}
	}

	raw, ok := p.mgr.Lookup(node.EntityTag)
	if !ok {
		p.log.Warn("stream: pack: unknown entity type, dropping leaf", "tag", node.EntityTag, "id", node.EntityID)
		return Null()
	}
	headerIndex, ok := raw.IndexFromID(node.EntityID)
	if !ok {
		p.log.Warn("stream: pack: unknown entity id, dropping leaf", "tag", node.EntityTag, "id", node.EntityID)
		return Null()
	}
	timeIndex, ok := raw.FindTime(headerIndex, tSnapshot)
	if !ok {
		p.log.Warn("stream: pack: no version at or before snapshot time, dropping leaf", "tag", node.EntityTag, "id", node.EntityID, "t", tSnapshot)
		return Null()
	}
	return Node{Kind: KindRef, Ref: Ref{Tag: node.EntityTag, Loc: common.Location{HeaderIndex: uint32(headerIndex), TimeIndex: uint32(timeIndex)}}}
}
