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

// Command archtape operates a storage engine instance: opening a tape
// folder, inspecting entity headers, and dumping a delta chain for
// debugging. It is an operational surface around the core engine, not the
// engine itself.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/archtape/archtape/common"
	"github.com/archtape/archtape/config"
	"github.com/archtape/archtape/entitydb"
	"github.com/archtape/archtape/log"
	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/tree"
)

// genericRecord is the dynamically-typed entitydb.Record used by CLI
// commands that only need to print the underlying tree.Value, never a
// concrete Go struct.
type genericRecord struct {
	value tree.Value
}

func (r *genericRecord) FromValue(v tree.Value) error { r.value = v; return nil }
func (r *genericRecord) ToValue() tree.Value           { return r.value }
func newGenericRecord() *genericRecord                 { return &genericRecord{} }

func main() {
	logger := log.New()
	log.SetHandler(log.StreamHandler(os.Stderr, log.TerminalFormat()))

	app := &cli.App{
		Name:  "archtape",
		Usage: "operate a versioned-entity storage engine instance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Required: true, Usage: "path to a TOML config file"},
		},
		Commands: []*cli.Command{
			{
				Name:  "inspect",
				Usage: "open the configured tape folder and print per-type entity counts",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					mgr := manager.New(logger)
					defer mgr.Close()
					if err := manager.OpenFolder(cfg.TapeDir, mgr, func(tag manager.Tag, path string) (entitydb.RawDatabase, error) {
						return entitydb.Open(path, cfg.Populate, newGenericRecord, logger)
					}); err != nil {
						return err
					}
					for _, tag := range mgr.Tags() {
						db, _ := mgr.Lookup(tag)
						fmt.Printf("%-12s %d entities\n", tag, db.HeaderCount())
					}
					return nil
				},
			},
			{
				Name:      "dump-chain",
				Usage:     "print every version of one entity",
				ArgsUsage: "<tag> <id-hex>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return fmt.Errorf("dump-chain requires <tag> <id-hex>")
					}
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					tag := manager.Tag(c.Args().Get(0))
					id, err := common.ParseID(c.Args().Get(1))
					if err != nil {
						return err
					}

					mgr := manager.New(logger)
					defer mgr.Close()
					if err := manager.OpenFolder(cfg.TapeDir, mgr, func(t manager.Tag, path string) (entitydb.RawDatabase, error) {
						return entitydb.Open(path, cfg.Populate, newGenericRecord, logger)
					}); err != nil {
						return err
					}

					db, ok := manager.LookupTyped[*genericRecord](mgr, tag)
					if !ok {
						return fmt.Errorf("unknown entity type %q", tag)
					}
					versions, err := db.DebugDumpChain(id)
					if err != nil {
						return err
					}
					for _, v := range versions {
						fmt.Printf("t=%d %s\n", v.Time, renderValue(v.Value.ToValue()))
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("archtape: fatal", "err", err)
		os.Exit(1)
	}
}

func renderValue(v tree.Value) string {
	switch v.Kind {
	case tree.KindNull:
		return "null"
	case tree.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case tree.KindInt:
		return fmt.Sprintf("%d", v.Int)
	case tree.KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case tree.KindString:
		return fmt.Sprintf("%q", v.Str)
	case tree.KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	case tree.KindList:
		out := "["
		for i, c := range v.List {
			if i > 0 {
				out += ", "
			}
			out += renderValue(c)
		}
		return out + "]"
	case tree.KindMap:
		out := "{"
		for i, k := range v.SortedKeys() {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%s: %s", k, renderValue(v.Map[k]))
		}
		return out + "}"
	default:
		return "?"
	}
}
