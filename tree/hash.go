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

package tree

import (
	"github.com/archtape/archtape/common"
	"golang.org/x/crypto/blake2b"
)

// ContentHash returns the 128-bit content hash of v's canonical encoding,
// used by the stream packer to deduplicate identical snapshots across the
// composite tree (spec.md §4.4.1). blake2b is configured for a 16-byte
// digest; it is a direct dependency of the teacher already used elsewhere
// for fixed-size hashing, and the corpus carries no purpose-built 128-bit
// hash (cespare/xxhash/v2 is 64-bit only).
func ContentHash(v Value) common.ID {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Only returns an error for invalid key/size combinations; 16 is
		// a valid blake2b digest size, so this is unreachable.
		panic(err)
	}
	h.Write(Encode(v))
	var id common.ID
	copy(id[:], h.Sum(nil))
	return id
}
