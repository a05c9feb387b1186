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

// Package common holds small types shared across every layer of the archive:
// the opaque entity identity and the (header, time) location. It mirrors
// the role the teacher's own "common" package plays for go-ethereum.
package common

import (
	"encoding/hex"
	"errors"
)

// ID is the opaque 16-byte identity of an entity (spec.md §3.1). The engine
// never interprets its bytes; it is only compared, hashed and used as a map
// key.
type ID [16]byte

// ZeroID is the identity with all bytes zero; IsZero compares against it.
var ZeroID ID

// String renders the id as lowercase hex, matching the teacher's common.Hash
// stringer convention.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id == ZeroID
}

// ParseID decodes a 32-character hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, errors.New("common: wrong length for entity id")
	}
	copy(id[:], b)
	return id, nil
}

// Location is a stable reference to exactly one version inside one entity
// type's tape (spec.md glossary: "Location"). It is small enough to be
// copied by value throughout the stream layer.
type Location struct {
	HeaderIndex uint32
	TimeIndex   uint32
}

// IsZero reports whether loc is the zero Location. The zero Location is
// also a valid location the packer can produce (header index 0 with time
// index 0), so it cannot serve as an "absent" sentinel; callers needing
// one should use a pointer or a second boolean instead of relying on this.
func (loc Location) IsZero() bool {
	return loc.HeaderIndex == 0 && loc.TimeIndex == 0
}
