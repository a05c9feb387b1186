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

// Package entitydb implements the per-record-type reader of spec.md §4.2:
// point, range and bulk queries over one tape, backed by a TTL'd block
// cache and decompressors created per call or per fan-out worker.
package entitydb

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/archtape/archtape/metrics"
)

const (
	blockCacheCapacity    = 100
	blockCacheIdleTTL     = 10 * time.Minute
	blockCacheAbsoluteTTL = 20 * time.Minute
)

// blockKey identifies one entity's decompressed chain in the block cache,
// keyed by (offset, offset+compressed_len) per spec.md §4.2.
type blockKey struct {
	start, end uint64
}

// blockCache holds decompressed chain bytes. hashicorp/golang-lru/v2's
// expirable cache only exposes one TTL; spec.md calls for both an idle and
// an absolute age bound (10m/20m), so each entry additionally timestamps
// its own insertion and is evicted on next access once absolute age is
// exceeded, while the idle bound is enforced by the underlying expirable
// cache itself.
type blockCache struct {
	lru  *lru.LRU[blockKey, *cachedBlock]
	hits metrics.Meter
	miss metrics.Meter
}

type cachedBlock struct {
	data       []byte
	insertedAt time.Time
}

func newBlockCache() *blockCache {
	return &blockCache{
		lru:  lru.NewLRU[blockKey, *cachedBlock](blockCacheCapacity, nil, blockCacheIdleTTL),
		hits: metrics.DefaultRegistry.NewMeter("entitydb_blockcache_hits_total", "decompressed delta-chain blocks served from cache"),
		miss: metrics.DefaultRegistry.NewMeter("entitydb_blockcache_misses_total", "decompressed delta-chain blocks that required decompression"),
	}
}

// get returns the cached block, or false if absent or past its absolute
// age bound (in which case it is also evicted).
func (c *blockCache) get(key blockKey) ([]byte, bool) {
	b, ok := c.lru.Get(key)
	if !ok {
		c.miss.Mark(1)
		return nil, false
	}
	if time.Since(b.insertedAt) > blockCacheAbsoluteTTL {
		c.lru.Remove(key)
		c.miss.Mark(1)
		return nil, false
	}
	c.hits.Mark(1)
	return b.data, true
}

// put inserts a decompressed block. Insertion is last-writer-wins; a
// concurrent double-decompression race is permitted and its loser simply
// discarded, per spec.md §5.
func (c *blockCache) put(key blockKey, data []byte) {
	c.lru.Add(key, &cachedBlock{data: data, insertedAt: time.Now()})
}
