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

// Package manager implements the database manager of spec.md §4.3: a
// type-tag-keyed registry binding entity-type identifiers to open
// databases, reachable both by static record type and by runtime tag.
package manager

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/archtape/archtape/entitydb"
	"github.com/archtape/archtape/log"
)

// Tag identifies one entity type. Tags are drawn from a closed
// enumeration fixed at build time (spec.md §4.3, §9 "preserve that
// closed-world assumption").
type Tag string

const (
	TagPlayer    Tag = "player"
	TagTeam      Tag = "team"
	TagGame      Tag = "game"
	TagStadium   Tag = "stadium"
	TagSeason    Tag = "season"
	TagStandings Tag = "standings"
	TagTemporal  Tag = "temporal"
	TagSchedule  Tag = "schedule"
)

// knownTags is the closed set open_folder recognizes; any other file stem
// is ignored, per spec.md §4.3.
var knownTags = map[Tag]bool{
	TagPlayer: true, TagTeam: true, TagGame: true, TagStadium: true,
	TagSeason: true, TagStandings: true, TagTemporal: true, TagSchedule: true,
}

// Manager is the type-tag-keyed registry of spec.md §4.3. It is
// initialised once at startup and is read-only thereafter (spec.md §5).
type Manager struct {
	mu  sync.RWMutex
	raw map[Tag]entitydb.RawDatabase
	log *log.Logger
}

// New creates an empty Manager.
func New(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New()
	}
	return &Manager{raw: make(map[Tag]entitydb.RawDatabase), log: logger}
}

// Register binds tag to database, replacing any prior binding.
func (m *Manager) Register(tag Tag, db entitydb.RawDatabase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[tag] = db
}

// Lookup returns the type-erased database bound to tag, or false if none.
func (m *Manager) Lookup(tag Tag) (entitydb.RawDatabase, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.raw[tag]
	return db, ok
}

// LookupTyped returns the generic Database[T] bound to tag after
// asserting it actually holds records of type T, matching spec.md §4.3's
// requirement that each database be reachable by its static record type.
func LookupTyped[T entitydb.Record](m *Manager, tag Tag) (*entitydb.Database[T], bool) {
	raw, ok := m.Lookup(tag)
	if !ok {
		return nil, false
	}
	db, ok := raw.(*entitydb.Database[T])
	return db, ok
}

// Tags returns every tag currently registered.
func (m *Manager) Tags() []Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tags := make([]Tag, 0, len(m.raw))
	for t := range m.raw {
		tags = append(tags, t)
	}
	return tags
}

// Close closes every registered database, returning the first error
// encountered (closing continues regardless).
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for tag, db := range m.raw {
		if err := db.Close(); err != nil && first == nil {
			first = fmt.Errorf("manager: closing %s: %w", tag, err)
		}
	}
	return first
}

// OpenFolder opens one tape per file in dir via open, whose file stem
// (basename without extension) is used as the tag; unrecognized stems are
// skipped with a warning (spec.md §4.3). open is supplied by the caller
// because each tag's concrete record type differs and only the caller
// knows how to construct a typed entitydb.Database for it.
func OpenFolder(dir string, m *Manager, open func(tag Tag, path string) (entitydb.RawDatabase, error)) error {
	entries, err := readDirTapes(dir)
	if err != nil {
		return err
	}
	for _, path := range entries {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tag := Tag(stem)
		if !knownTags[tag] {
			m.log.Warn("open_folder: skipping unrecognized tape", "path", path, "stem", stem)
			continue
		}
		db, err := open(tag, path)
		if err != nil {
			return fmt.Errorf("manager: opening %s: %w", path, err)
		}
		m.Register(tag, db)
	}
	return nil
}
