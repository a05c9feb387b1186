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
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// DefaultBatchSize is B, the number of consecutive snapshots accumulated
// per batch before an implicit flush (spec.md §3.4).
const DefaultBatchSize = 100

// batchHeaderSize is pinned at exactly 16 bytes: four little-endian u32
// fields, per spec.md §3.4/§4.4.2/§6.4.
const batchHeaderSize = 16

// batchHeader is the fixed 16-byte record prefixing every batch.
type batchHeader struct {
	TimesLen           uint32 // count of timestamps in this batch
	TimesBitsLen       uint32 // byte length of the packed timestamp block
	DataCompressedLen  uint32
	DataUncompressedLen uint32
}

func (h batchHeader) encode() []byte {
	buf := make([]byte, batchHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.TimesLen)
	binary.LittleEndian.PutUint32(buf[4:8], h.TimesBitsLen)
	binary.LittleEndian.PutUint32(buf[8:12], h.DataCompressedLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.DataUncompressedLen)
	return buf
}

func decodeBatchHeader(buf []byte) batchHeader {
	return batchHeader{
		TimesLen:            binary.LittleEndian.Uint32(buf[0:4]),
		TimesBitsLen:        binary.LittleEndian.Uint32(buf[4:8]),
		DataCompressedLen:   binary.LittleEndian.Uint32(buf[8:12]),
		DataUncompressedLen: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// Writer accumulates packed snapshots and flushes them as batches to an
// underlying writer, per spec.md §4.4.2. Batches are written back-to-back
// with no outer index (spec.md §6.4): the reader builds its seek table by
// scanning on open.
type Writer struct {
	w         io.Writer
	batchSize int
	enc       *zstd.Encoder

	times  []int64
	leaves []Node
}

func NewWriter(w io.Writer, batchSize int) (*Writer, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("stream: new encoder: %w", err)
	}
	return &Writer{w: w, batchSize: batchSize, enc: enc}, nil
}

// Append adds one packed snapshot at time t. Once batchSize snapshots have
// accumulated, they are flushed automatically.
func (bw *Writer) Append(t int64, packed Node) error {
	bw.times = append(bw.times, t)
	bw.leaves = append(bw.leaves, packed)
	if len(bw.times) >= bw.batchSize {
		return bw.Flush()
	}
	return nil
}

// Flush writes out any partially accumulated batch. A no-op if empty.
func (bw *Writer) Flush() error {
	if len(bw.times) == 0 {
		return nil
	}
	timesBlock := encodeTimestamps(bw.times)

	var decoded []byte
	for _, leaf := range bw.leaves {
		rec := encodeNode(nil, leaf)
		decoded = appendUvarint(decoded, uint64(len(rec)))
		decoded = append(decoded, rec...)
	}
	compressed := bw.enc.EncodeAll(decoded, nil)

	h := batchHeader{
		TimesLen:            uint32(len(bw.times)),
		TimesBitsLen:        uint32(len(timesBlock)),
		DataCompressedLen:   uint32(len(compressed)),
		DataUncompressedLen: uint32(len(decoded)),
	}
	if _, err := bw.w.Write(h.encode()); err != nil {
		return err
	}
	if _, err := bw.w.Write(timesBlock); err != nil {
		return err
	}
	if _, err := bw.w.Write(compressed); err != nil {
		return err
	}

	bw.times = bw.times[:0]
	bw.leaves = bw.leaves[:0]
	return nil
}

// Close flushes any remaining batch and releases the encoder.
func (bw *Writer) Close() error {
	if err := bw.Flush(); err != nil {
		return err
	}
	bw.enc.Close()
	return nil
}
