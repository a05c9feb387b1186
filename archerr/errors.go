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

// Package archerr defines the closed error taxonomy the engine surfaces,
// per spec.md §7. It is the Go counterpart of the original Rust
// implementation's VCRError enum (original_source/vcr-lib/src/err.rs):
// one sentinel per kind, composed with fmt.Errorf("...: %w", ...) so
// errors.Is/errors.As work the way the rest of the corpus expects.
package archerr

import (
	"errors"
	"fmt"

	"github.com/archtape/archtape/common"
)

// Sentinel kinds. not-found is intentionally absent: spec.md requires it be
// surfaced as a successful absent result, never as an error value.
var (
	// ErrBadTape: malformed preamble, inconsistent header/store lengths,
	// invalid checkpoint offsets, or unsorted times. Fatal at open.
	ErrBadTape = errors.New("archtape: malformed tape")

	// ErrDecode: decompression or structural deserialization failure at
	// read time.
	ErrDecode = errors.New("archtape: decode failure")

	// ErrDiffApply: a diff was structurally invalid for its base.
	ErrDiffApply = errors.New("archtape: diff does not apply to base")

	// ErrParallelFailure: a worker task failed during fan-out; siblings
	// were cancelled on a best-effort basis.
	ErrParallelFailure = errors.New("archtape: parallel task failed")

	// ErrInvalidPageToken: boundary-only (HTTP front-end), defined here
	// only so the taxonomy is complete and importable by that (out of
	// scope) collaborator without redefining the sentinel elsewhere.
	ErrInvalidPageToken = errors.New("archtape: invalid or expired page token")
)

// DiffApplyError adds the entity id and time index to ErrDiffApply, per
// spec.md §7 ("Surfaced to the caller with the entity id and time index to
// aid post-mortem").
type DiffApplyError struct {
	ID        common.ID
	TimeIndex int
	Err       error
}

func (e *DiffApplyError) Error() string {
	return fmt.Sprintf("archtape: diff does not apply to base (id=%s time_index=%d): %v", e.ID, e.TimeIndex, e.Err)
}

func (e *DiffApplyError) Unwrap() error { return ErrDiffApply }

// BadTapeError carries the path of the offending tape.
type BadTapeError struct {
	Path   string
	Reason string
}

func (e *BadTapeError) Error() string {
	return fmt.Sprintf("archtape: malformed tape %q: %s", e.Path, e.Reason)
}

func (e *BadTapeError) Unwrap() error { return ErrBadTape }

// DecodeError carries the byte range that failed to decode.
type DecodeError struct {
	Offset, Length int64
	Err            error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("archtape: decode failure at [%d,%d): %v", e.Offset, e.Offset+e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error { return errors.Join(ErrDecode, e.Err) }
