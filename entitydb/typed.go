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
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/chain"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/log"
	"github.com/archtape/archtape/metrics"
	"github.com/archtape/archtape/tape"
	"github.com/archtape/archtape/tree"
)

var (
	bulkPointSerialMeter   = metrics.DefaultRegistry.NewMeter("entitydb_bulkpoint_serial_items_total", "ids resolved by BulkPoint's serial short-circuit path")
	bulkPointParallelMeter = metrics.DefaultRegistry.NewMeter("entitydb_bulkpoint_parallel_items_total", "ids resolved by BulkPoint's worker-pool fan-out path")
)

// Database is the per-record-type reader of spec.md §4.2, generic over the
// concrete record type T. newT constructs a zero T for decode.
type Database[T Record] struct {
	raw  *raw
	newT func() T
}

// Open opens path as a Database[T]. populate requests eager page
// population of the memory map (spec.md §4.2).
func Open[T Record](path string, populate bool, newT func() T, logger *log.Logger) (*Database[T], error) {
	if logger == nil {
		logger = log.New()
	}
	r, err := openRaw(path, populate, logger)
	if err != nil {
		return nil, err
	}
	return &Database[T]{raw: r, newT: newT}, nil
}

func (db *Database[T]) Close() error                            { return db.raw.Close() }
func (db *Database[T]) HeaderCount() int                         { return db.raw.HeaderCount() }
func (db *Database[T]) IndexFromID(id common.ID) (int, bool)     { return db.raw.IndexFromID(id) }
func (db *Database[T]) IDs() []common.ID                         { return db.raw.IDs() }
func (db *Database[T]) FindTime(hi int, t int64) (int, bool)     { return db.raw.FindTime(hi, t) }
func (db *Database[T]) NextTime(id common.ID, t int64) (int64, bool) {
	return db.raw.NextTime(id, t)
}

// PointAtLocation satisfies RawDatabase for stream-layer rehydration: the
// manager and stream packages traffic only in tree.Value, never T
// directly, since a stream snapshot can reference many different record
// types through one uniform interface (spec.md §4.3).
func (db *Database[T]) PointAtLocation(loc common.Location) (tree.Value, bool, error) {
	return db.raw.PointAtLocation(loc)
}

// Point returns the latest version at or before t, per spec.md §4.2
// "point at time".
func (db *Database[T]) Point(id common.ID, t int64) (Versioned[T], bool, error) {
	v, at, ok, err := db.raw.PointAtTime(id, t)
	if err != nil || !ok {
		return Versioned[T]{}, false, err
	}
	versioned, err := decodeVersioned(v, at, db.newT)
	return versioned, err == nil, err
}

// First returns time_index=0 for id, per spec.md §4.2 "first".
func (db *Database[T]) First(id common.ID) (Versioned[T], bool, error) {
	v, at, ok, err := db.raw.First(id)
	if err != nil || !ok {
		return Versioned[T]{}, false, err
	}
	versioned, err := decodeVersioned(v, at, db.newT)
	return versioned, err == nil, err
}

// Range reconstructs every version of id in [after, before] inclusive, in
// ascending time order (spec.md §4.1/§4.2/§8 invariant 2).
func (db *Database[T]) Range(id common.ID, after, before int64) ([]Versioned[T], error) {
	values, times, err := db.raw.Range(id, after, before)
	if err != nil {
		return nil, err
	}
	out := make([]Versioned[T], len(values))
	for i, v := range values {
		vv, err := decodeVersioned(v, times[i], db.newT)
		if err != nil {
			return nil, err
		}
		out[i] = vv
	}
	return out, nil
}

// BulkPoint evaluates Point(id, t) for every id in ids, preserving input
// order regardless of completion order (spec.md §5/§8 invariant 6). Short
// lists run serially; longer ones fan out across a worker pool sized to
// GOMAXPROCS, each worker holding its own decompressor (spec.md §5).
func (db *Database[T]) BulkPoint(ids []common.ID, t int64) ([]Versioned[T], []bool, error) {
	results := make([]Versioned[T], len(ids))
	present := make([]bool, len(ids))

	p := runtime.GOMAXPROCS(0)
	if len(ids) < p {
		bulkPointSerialMeter.Mark(int64(len(ids)))
		for i, id := range ids {
			v, ok, err := db.Point(id, t)
			if err != nil {
				return nil, nil, err
			}
			results[i], present[i] = v, ok
		}
		return results, present, nil
	}

	bulkPointParallelMeter.Mark(int64(len(ids)))
	chunkSize := (len(ids) + p - 1) / p
	g, ctx := errgroup.WithContext(context.Background())
	for start := 0; start < len(ids); start += chunkSize {
		start := start
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		g.Go(func() error {
			d, err := tape.NewDecompressor(db.raw.tp.Dict())
			if err != nil {
				return err
			}
			defer d.Close()
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err // a sibling worker failed
				}
				headerIndex, ok := db.raw.IndexFromID(ids[i])
				if !ok {
					continue
				}
				timeIndex, ok := db.raw.FindTime(headerIndex, t)
				if !ok {
					continue
				}
				decoded, h, err := db.raw.decodedChainWith(headerIndex, d)
				if err != nil {
					return err
				}
				value, err := chain.DecodeAt(decoded, h.CheckpointPositions, int(h.CheckpointEvery), timeIndex)
				if err != nil {
					return err
				}
				versioned, err := decodeVersioned(value, h.Times[timeIndex], db.newT)
				if err != nil {
					return err
				}
				results[i] = versioned
				present[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", archerr.ErrParallelFailure, err)
	}
	return results, present, nil
}

// DebugDumpChain returns every reconstructed version of id with its time,
// for offline debugging (supplements spec.md's core operations; grounded
// in the original implementation's debug dump of a raw delta chain,
// original_source/vcr-lib/src/vhs/db.rs).
func (db *Database[T]) DebugDumpChain(id common.ID) ([]Versioned[T], error) {
	headerIndex, ok := db.raw.IndexFromID(id)
	if !ok {
		return nil, nil
	}
	h, _ := db.raw.tp.HeaderAt(headerIndex)
	if len(h.Times) == 0 {
		return nil, nil
	}
	return db.Range(id, h.Times[0], h.Times[len(h.Times)-1])
}
