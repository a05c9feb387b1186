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
	"os"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/klauspost/compress/zstd"

	"github.com/archtape/archtape/archerr"
	"github.com/archtape/archtape/log"
	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/metrics"
)

var (
	batchCacheHitsMeter   = metrics.DefaultRegistry.NewMeter("stream_batchcache_hits_total", "packed snapshot batches served from the decompressed-batch cache")
	batchCacheMissesMeter = metrics.DefaultRegistry.NewMeter("stream_batchcache_misses_total", "packed snapshot batches that required zstd decompression")
)

// batchCacheCapacity/batchCacheIdleTTL mirror entitydb's block cache
// sizing (spec.md §4.2); the stream archive's decompressed-batch cache is
// a distinct instance but follows the same bound.
const (
	batchCacheCapacity = 100
	batchCacheIdleTTL  = 10 * time.Minute
)

// descriptor is one batch's seek-table entry, built at open time by
// decoding only the batch's timestamp block (spec.md §4.4.3).
type descriptor struct {
	times               []int64
	dataOffset          int
	compressedLen       uint32
	uncompressedLen     uint32
}

// Reader is an opened stream archive: a scan-built seek table over
// batches plus a small decompressed-batch cache (spec.md §4.4.3/§6.4).
type Reader struct {
	mgr   *manager.Manager
	log   *log.Logger
	data  []byte
	descs []descriptor // sorted by descs[i].times[0]
	dec   *zstd.Decoder
	cache *lru.LRU[int, [][]byte] // dataOffset -> decoded per-slot records
}

// Open scans path's batch headers and builds the in-memory seek table. No
// outer index exists on disk (spec.md §6.4); this scan is the only pass
// over the whole file.
func Open(path string, mgr *manager.Manager, logger *log.Logger) (*Reader, error) {
	if logger == nil {
		logger = log.New()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("stream: new decoder: %w", err)
	}

	var descs []descriptor
	pos := 0
	for pos < len(data) {
		if pos+batchHeaderSize > len(data) {
			return nil, fmt.Errorf("%w: truncated batch header at offset %d", archerr.ErrBadTape, pos)
		}
		h := decodeBatchHeader(data[pos : pos+batchHeaderSize])
		pos += batchHeaderSize

		if pos+int(h.TimesBitsLen) > len(data) {
			return nil, fmt.Errorf("%w: truncated timestamp block at offset %d", archerr.ErrBadTape, pos)
		}
		timesBlock := data[pos : pos+int(h.TimesBitsLen)]
		pos += int(h.TimesBitsLen)

		times, err := decodeTimestamps(timesBlock, int(h.TimesLen))
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", path, err)
		}

		dataOffset := pos
		if pos+int(h.DataCompressedLen) > len(data) {
			return nil, fmt.Errorf("%w: truncated data block at offset %d", archerr.ErrBadTape, pos)
		}
		pos += int(h.DataCompressedLen)

		descs = append(descs, descriptor{
			times:           times,
			dataOffset:      dataOffset,
			compressedLen:   h.DataCompressedLen,
			uncompressedLen: h.DataUncompressedLen,
		})
	}
	sort.Slice(descs, func(i, j int) bool {
		return firstTime(descs[i]) < firstTime(descs[j])
	})

	return &Reader{
		mgr:   mgr,
		log:   logger,
		data:  data,
		descs: descs,
		dec:   dec,
		cache: lru.NewLRU[int, [][]byte](batchCacheCapacity, nil, batchCacheIdleTTL),
	}, nil
}

func firstTime(d descriptor) int64 {
	if len(d.times) == 0 {
		return 0
	}
	return d.times[0]
}

// Close releases the reader's decompressor.
func (r *Reader) Close() error {
	r.dec.Close()
	return nil
}

// slots decompresses and decodes descs[i]'s packed snapshot records,
// through the batch cache.
func (r *Reader) slots(i int) ([][]byte, error) {
	d := r.descs[i]
	if cached, ok := r.cache.Get(d.dataOffset); ok {
		batchCacheHitsMeter.Mark(1)
		return cached, nil
	}
	batchCacheMissesMeter.Mark(1)
	compressed := r.data[d.dataOffset : d.dataOffset+int(d.compressedLen)]
	decoded, err := r.dec.DecodeAll(compressed, make([]byte, 0, d.uncompressedLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archerr.ErrDecode, err)
	}
	var recs [][]byte
	rest := decoded
	for len(rest) > 0 {
		n, r2, err := readUvarint(rest)
		if err != nil {
			return nil, err
		}
		if uint64(len(r2)) < n {
			return nil, fmt.Errorf("%w: truncated packed snapshot record", archerr.ErrDecode)
		}
		recs = append(recs, r2[:n])
		rest = r2[n:]
	}
	r.cache.Add(d.dataOffset, recs)
	return recs, nil
}

// batchForTime returns the index of the batch whose first timestamp is
// the greatest <= t, or false if t precedes every batch.
func (r *Reader) batchForTime(t int64) (int, bool) {
	i := sort.Search(len(r.descs), func(i int) bool { return firstTime(r.descs[i]) > t }) - 1
	if i < 0 {
		return 0, false
	}
	return i, true
}

// slotFloor returns the greatest index with times[i] <= t, saturating to
// 0 (with a warning) if t precedes the batch's first timestamp. This is
// the fix for the source's index_by_time(...).unwrap() panic (spec.md §9).
func (r *Reader) slotFloor(times []int64, t int64) int {
	i := sort.Search(len(times), func(i int) bool { return times[i] > t }) - 1
	if i < 0 {
		r.log.Warn("stream: point query time precedes batch start, saturating to first slot", "t", t, "batch_first", times[0])
		return 0
	}
	return i
}

// slotCeil returns the smallest index with times[i] >= t, saturating to
// the batch's last slot (with a warning) if t exceeds every timestamp in
// the batch — the matching fix for the before-endpoint side of the same
// source bug.
func (r *Reader) slotCeil(times []int64, t int64) int {
	i := sort.Search(len(times), func(i int) bool { return times[i] >= t })
	if i >= len(times) {
		r.log.Warn("stream: range query end exceeds batch's last timestamp, saturating to last slot", "t", t, "batch_last", times[len(times)-1])
		return len(times) - 1
	}
	return i
}

// Point decodes the packed stream snapshot at the greatest timestamp <= t,
// or returns false if no batch precedes t. The returned Node still holds
// KindRef leaves; Rehydrate resolves them against the entity databases.
func (r *Reader) Point(t int64) (Node, int64, bool, error) {
	bi, ok := r.batchForTime(t)
	if !ok {
		return Node{}, 0, false, nil
	}
	d := r.descs[bi]
	si := r.slotFloor(d.times, t)
	recs, err := r.slots(bi)
	if err != nil {
		return Node{}, 0, false, err
	}
	node, _, err := decodeNode(recs[si])
	if err != nil {
		return Node{}, 0, false, err
	}
	return node, d.times[si], true, nil
}

// Range decodes every packed snapshot with timestamp in [after, before]
// inclusive, across the full inclusive span of batches, in ascending
// time order (spec.md §4.4.3). Like Point, it returns packed Nodes whose
// KindRef leaves are resolved by Rehydrate or RehydrateParallel.
func (r *Reader) Range(after, before int64) ([]Node, []int64, error) {
	if after > before || len(r.descs) == 0 {
		return nil, nil, nil
	}
	startBatch, ok := r.batchForTime(after)
	if !ok {
		startBatch = 0
	}
	endBatch, ok := r.batchForTime(before)
	if !ok {
		return nil, nil, nil
	}

	var nodes []Node
	var times []int64
	for bi := startBatch; bi <= endBatch; bi++ {
		d := r.descs[bi]
		recs, err := r.slots(bi)
		if err != nil {
			return nil, nil, err
		}
		lo := r.slotFloor(d.times, after)
		if d.times[lo] < after {
			lo++ // the floor may land one slot before after's true start
		}
		hi := r.slotCeil(d.times, before)
		for si := lo; si <= hi && si < len(d.times); si++ {
			if d.times[si] < after || d.times[si] > before {
				continue
			}
			node, _, err := decodeNode(recs[si])
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, node)
			times = append(times, d.times[si])
		}
	}
	return nodes, times, nil
}
