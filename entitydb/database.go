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

package entitydb

import (
	"fmt"
	"sort"

	"github.com/archtape/archtape/chain"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/log"
	"github.com/archtape/archtape/tape"
	"github.com/archtape/archtape/tree"
)

// RawDatabase is the type-erased view of an opened entity database used by
// the database manager and the composite-stream layer, which address
// entities only by header/time location, never by static Go type
// (spec.md §4.3/§4.4).
type RawDatabase interface {
	PointAtLocation(loc common.Location) (tree.Value, bool, error)
	IndexFromID(id common.ID) (int, bool)
	FindTime(headerIndex int, t int64) (timeIndex int, ok bool)
	HeaderCount() int
	Close() error
}

// raw is the non-generic core: all tape access, caching, decompression and
// range reconstruction happen here. Database[T] is a thin typed facade
// over it.
type raw struct {
	tp  *tape.Tape
	log *log.Logger

	cache *blockCache
}

func openRaw(path string, populate bool, logger *log.Logger) (*raw, error) {
	tp, err := tape.Open(path, populate)
	if err != nil {
		return nil, err
	}
	return &raw{tp: tp, log: logger, cache: newBlockCache()}, nil
}

func (r *raw) Close() error { return r.tp.Close() }

func (r *raw) HeaderCount() int { return r.tp.HeaderCount() }

func (r *raw) IndexFromID(id common.ID) (int, bool) { return r.tp.HeaderIndex(id) }

// IDs returns every entity id, in header-slot order (spec.md §4.2 "iterate
// all ids").
func (r *raw) IDs() []common.ID { return r.tp.IDs() }

// decodedChain returns header slot i's decompressed chain bytes, reading
// through the block cache. A fresh decompressor is used on a miss; callers
// that already hold one (fan-out workers) should prefer decodedChainWith.
func (r *raw) decodedChain(headerIndex int) ([]byte, tape.Header, error) {
	d, err := tape.NewDecompressor(r.tp.Dict())
	if err != nil {
		return nil, tape.Header{}, err
	}
	defer d.Close()
	return r.decodedChainWith(headerIndex, d)
}

func (r *raw) decodedChainWith(headerIndex int, d *tape.Decompressor) ([]byte, tape.Header, error) {
	h, ok := r.tp.HeaderAt(headerIndex)
	if !ok {
		return nil, tape.Header{}, fmt.Errorf("entitydb: header index %d out of range (have %d)", headerIndex, r.tp.HeaderCount())
	}
	key := blockKey{start: h.Offset, end: h.Offset + uint64(h.CompressedLen)}
	if data, ok := r.cache.get(key); ok {
		return data, h, nil
	}
	compressed, err := r.tp.CompressedChain(headerIndex)
	if err != nil {
		return nil, tape.Header{}, err
	}
	decoded, err := d.Decode(compressed, int(h.DecompressedLen))
	if err != nil {
		return nil, h, err
	}
	r.cache.put(key, decoded)
	return decoded, h, nil
}

// FindTime returns the index of the greatest times[i] <= t, per spec.md
// §4.4.1's "find_time".
func (r *raw) FindTime(headerIndex int, t int64) (int, bool) {
	h, ok := r.tp.HeaderAt(headerIndex)
	if !ok {
		return 0, false
	}
	i := sort.Search(len(h.Times), func(i int) bool { return h.Times[i] > t }) - 1
	if i < 0 {
		return 0, false
	}
	return i, true
}

// NextTime returns the smallest times[i] >= t, per spec.md §4.2 "next
// time". It does not decode a record.
func (r *raw) NextTime(id common.ID, t int64) (int64, bool) {
	idx, ok := r.tp.HeaderIndex(id)
	if !ok {
		return 0, false
	}
	h, _ := r.tp.HeaderAt(idx)
	i := sort.Search(len(h.Times), func(i int) bool { return h.Times[i] >= t })
	if i >= len(h.Times) {
		return 0, false
	}
	return h.Times[i], true
}

// PointAtLocation reconstructs exactly the version at (headerIndex,
// timeIndex), per spec.md §4.2 "point at location". Used by the composite
// stream reader. A location past the current header count or time index
// resolves to (zero, false, nil): spec.md §4.4.4 treats a dangling stream
// reference as "leaf absent", not an error.
func (r *raw) PointAtLocation(loc common.Location) (tree.Value, bool, error) {
	headerIndex := int(loc.HeaderIndex)
	h, ok := r.tp.HeaderAt(headerIndex)
	if !ok {
		return tree.Value{}, false, nil
	}
	timeIndex := int(loc.TimeIndex)
	if timeIndex < 0 || timeIndex >= len(h.Times) {
		return tree.Value{}, false, nil
	}
	decoded, h, err := r.decodedChain(headerIndex)
	if err != nil {
		return tree.Value{}, false, err
	}
	v, err := chain.DecodeAt(decoded, h.CheckpointPositions, int(h.CheckpointEvery), timeIndex)
	if err != nil {
		return tree.Value{}, false, err
	}
	return v, true, nil
}

// PointAtTime locates the greatest times[i] <= t for id and reconstructs
// that version, per spec.md §4.2 "point at time".
func (r *raw) PointAtTime(id common.ID, t int64) (tree.Value, int64, bool, error) {
	headerIndex, ok := r.tp.HeaderIndex(id)
	if !ok {
		return tree.Value{}, 0, false, nil
	}
	timeIndex, ok := r.FindTime(headerIndex, t)
	if !ok {
		return tree.Value{}, 0, false, nil
	}
	v, ok, err := r.PointAtLocation(common.Location{HeaderIndex: uint32(headerIndex), TimeIndex: uint32(timeIndex)})
	if err != nil || !ok {
		return tree.Value{}, 0, false, err
	}
	h, _ := r.tp.HeaderAt(headerIndex)
	return v, h.Times[timeIndex], true, nil
}

// First is equivalent to PointAtLocation with time_index=0 (spec.md §4.2).
func (r *raw) First(id common.ID) (tree.Value, int64, bool, error) {
	headerIndex, ok := r.tp.HeaderIndex(id)
	if !ok {
		return tree.Value{}, 0, false, nil
	}
	h, _ := r.tp.HeaderAt(headerIndex)
	if len(h.Times) == 0 {
		return tree.Value{}, 0, false, nil
	}
	v, ok, err := r.PointAtLocation(common.Location{HeaderIndex: uint32(headerIndex), TimeIndex: 0})
	if err != nil || !ok {
		return tree.Value{}, 0, false, err
	}
	return v, h.Times[0], true, nil
}

// Range reconstructs every version of id whose time lies in [after,
// before] inclusive, per spec.md §4.1 range reconstruction / §8 invariant
// 2. Single-threaded within one entity, per spec.md §5.
func (r *raw) Range(id common.ID, after, before int64) ([]tree.Value, []int64, error) {
	headerIndex, ok := r.tp.HeaderIndex(id)
	if !ok {
		return nil, nil, nil
	}
	decoded, h, err := r.decodedChain(headerIndex)
	if err != nil {
		return nil, nil, err
	}
	a := sort.Search(len(h.Times), func(i int) bool { return h.Times[i] >= after })
	b := sort.Search(len(h.Times), func(i int) bool { return h.Times[i] > before }) - 1
	if a > b || a >= len(h.Times) || b < 0 {
		return nil, nil, nil
	}
	values, err := chain.DecodeRange(decoded, h.CheckpointPositions, int(h.CheckpointEvery), a, b)
	if err != nil {
		return nil, nil, err
	}
	return values, h.Times[a : b+1], nil
}
