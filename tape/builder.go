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

package tape

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/archtape/archtape/chain"
	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/tree"
)

// Builder is the offline one-shot encoder of spec.md §3.6 ("tapes ... are
// built offline by a one-shot encoder and are immutable thereafter"). It is
// not used on any read path.
type Builder struct {
	dict     []byte
	entities []builderEntity
}

type builderEntity struct {
	id       common.ID
	versions []tree.Value
	times    []int64
	k        uint16
}

// NewBuilder creates a Builder. dict, when non-empty, is a pre-trained
// zstd dictionary for this entity type (spec.md §3.3: "used to prime the
// compressor with common JSON tokens for this entity type"). Training a
// dictionary from sample payloads is an offline, ad-hoc-CLI concern
// (spec.md §1 Non-goals); Builder only consumes an already-trained one.
func NewBuilder(dict []byte) *Builder {
	return &Builder{dict: dict}
}

// AddEntity appends one entity's full version history. times must be
// strictly ascending and the same length as versions; k is checkpoint_every.
func (b *Builder) AddEntity(id common.ID, versions []tree.Value, times []int64, k uint16) error {
	if len(versions) != len(times) {
		return fmt.Errorf("tape: entity %s has %d versions but %d times", id, len(versions), len(times))
	}
	if len(versions) == 0 {
		return fmt.Errorf("tape: entity %s has no versions", id)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return fmt.Errorf("tape: entity %s times not strictly ascending at index %d", id, i)
		}
	}
	if k == 0 {
		k = 1
	}
	b.entities = append(b.entities, builderEntity{id: id, versions: versions, times: times, k: k})
	return nil
}

// Build writes the complete tape to w: preamble, dictionary, compressed
// header block, then the concatenated per-entity compressed chains
// (spec.md §3.3/§6.1).
func (b *Builder) Build(w io.Writer) error {
	storeOpts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedDefault)}
	if len(b.dict) > 0 {
		storeOpts = append(storeOpts, zstd.WithEncoderDict(b.dict))
	}
	enc, err := zstd.NewWriter(nil, storeOpts...)
	if err != nil {
		return fmt.Errorf("tape: new store encoder: %w", err)
	}
	defer enc.Close()

	var store []byte
	headers := make([]Header, 0, len(b.entities))
	for _, e := range b.entities {
		decoded, positions := chain.Encode(e.versions, int(e.k))
		compressed := enc.EncodeAll(decoded, nil)
		headers = append(headers, Header{
			ID:                  e.id,
			CheckpointEvery:     e.k,
			Times:               e.times,
			CheckpointPositions: positions,
			Offset:              uint64(len(store)),
			CompressedLen:       uint32(len(compressed)),
			DecompressedLen:     uint32(len(decoded)),
		})
		store = append(store, compressed...)
	}

	headerEnc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("tape: new header encoder: %w", err)
	}
	defer headerEnc.Close()
	headerBlock := headerEnc.EncodeAll(encodeHeaders(headers), nil)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(CodecZstd)}); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(b.dict))); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(len(headerBlock))); err != nil {
		return err
	}
	if _, err := w.Write(b.dict); err != nil {
		return err
	}
	if _, err := w.Write(headerBlock); err != nil {
		return err
	}
	if _, err := w.Write(store); err != nil {
		return err
	}
	return nil
}

func writeUint64(w io.Writer, x uint64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], x)
	_, err := w.Write(tmp[:])
	return err
}
