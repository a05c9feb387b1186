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

//go:build darwin

package mmap

// Darwin has no MAP_POPULATE equivalent exposed through golang.org/x/sys/unix;
// pre-population there is a page-fault-on-first-touch no-op, matching spec.md
// §4.2's framing of pre-population as "a hint, not a requirement".
const mapPopulate = 0
