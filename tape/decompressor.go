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
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/archtape/archtape/archerr"
)

// Decompressor wraps a zstd.Decoder primed with one tape's dictionary. It
// is cheap to construct (the dictionary is referenced, not copied) and is
// meant to be held one-per-worker, never shared across goroutines
// concurrently (spec.md §4.2/§5: "Decompressor instances must be re-usable
// across requests and local to the current worker").
type Decompressor struct {
	dec *zstd.Decoder
}

// NewDecompressor creates a Decompressor primed with dict (may be nil).
func NewDecompressor(dict []byte) (*Decompressor, error) {
	opts := []zstd.DOption{}
	if len(dict) > 0 {
		opts = append(opts, zstd.WithDecoderDicts(dict))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("tape: new decompressor: %w", err)
	}
	return &Decompressor{dec: dec}, nil
}

// Decode decompresses compressed into a freshly allocated buffer of
// exactly decompressedLen bytes. A length mismatch or corrupt stream
// surfaces as archerr.ErrDecode.
func (d *Decompressor) Decode(compressed []byte, decompressedLen int) ([]byte, error) {
	out, err := d.dec.DecodeAll(compressed, make([]byte, 0, decompressedLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archerr.ErrDecode, err)
	}
	if len(out) != decompressedLen {
		return nil, fmt.Errorf("%w: decompressed to %d bytes, header declares %d", archerr.ErrDecode, len(out), decompressedLen)
	}
	return out, nil
}

// Close releases the underlying zstd decoder's resources.
func (d *Decompressor) Close() { d.dec.Close() }
