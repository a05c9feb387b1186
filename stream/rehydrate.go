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
	"golang.org/x/sync/errgroup"

	"github.com/archtape/archtape/manager"
	"github.com/archtape/archtape/tree"
)

// Rehydrate reconstructs a packed Node into a plain tree.Value, calling the
// appropriate database's point-at-location operation for every KindRef
// leaf (spec.md §4.4.3). A leaf whose location no longer resolves is
// dropped: the enclosing map loses that key, the enclosing list loses that
// element, matching spec.md §4.4.4 ("leaf resolves to nothing; the
// enclosing snapshot is still returned with that field absent").
func Rehydrate(mgr *manager.Manager, node Node) (tree.Value, error) {
	switch node.Kind {
	case KindRef:
		raw, ok := mgr.Lookup(node.Ref.Tag)
		if !ok {
			return tree.Null(), nil
		}
		v, ok, err := raw.PointAtLocation(node.Ref.Loc)
		if err != nil {
			return tree.Value{}, err
		}
		if !ok {
			return tree.Null(), nil
		}
		return v, nil
	case KindList:
		out := make([]tree.Value, 0, len(node.List))
		for _, c := range node.List {
			v, err := Rehydrate(mgr, c)
			if err != nil {
				return tree.Value{}, err
			}
			if c.Kind == KindRef && v.Kind == tree.KindNull {
				continue
			}
			out = append(out, v)
		}
		return tree.Value{Kind: tree.KindList, List: out}, nil
	case KindMap:
		out := make(map[string]tree.Value, len(node.Map))
		for k, c := range node.Map {
			v, err := Rehydrate(mgr, c)
			if err != nil {
				return tree.Value{}, err
			}
			if c.Kind == KindRef && v.Kind == tree.KindNull {
				continue
			}
			out[k] = v
		}
		return tree.Value{Kind: tree.KindMap, Map: out}, nil
	case KindNull:
		return tree.Null(), nil
	case KindBool:
		return tree.Bool(node.Bool), nil
	case KindInt:
		return tree.Int(node.Int), nil
	case KindFloat:
		return tree.Float(node.Float), nil
	case KindString:
		return tree.String(node.Str), nil
	default:
		return tree.Null(), nil
	}
}

// RehydrateParallel rehydrates every top-level entry of a KindList/KindMap
// node concurrently, one goroutine per leaf, then reassembles in the
// original shape. Callers rehydrating the packed Nodes returned by
// Reader.Range can use this to parallelise across the leaves of one batch
// slot (spec.md §5: "stream-range rehydration parallelises across leaves
// of one batch"); Reader.Range itself does not call it.
func RehydrateParallel(mgr *manager.Manager, node Node) (tree.Value, error) {
	switch node.Kind {
	case KindList:
		results := make([]tree.Value, len(node.List))
		present := make([]bool, len(node.List))
		g := new(errgroup.Group)
		for i, c := range node.List {
			i, c := i, c
			g.Go(func() error {
				v, err := Rehydrate(mgr, c)
				if err != nil {
					return err
				}
				results[i] = v
				present[i] = !(c.Kind == KindRef && v.Kind == tree.KindNull)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return tree.Value{}, err
		}
		out := make([]tree.Value, 0, len(results))
		for i, v := range results {
			if present[i] {
				out = append(out, v)
			}
		}
		return tree.Value{Kind: tree.KindList, List: out}, nil
	case KindMap:
		type kv struct {
			key     string
			value   tree.Value
			present bool
		}
		keys := make([]string, 0, len(node.Map))
		for k := range node.Map {
			keys = append(keys, k)
		}
		results := make([]kv, len(keys))
		g := new(errgroup.Group)
		for i, k := range keys {
			i, k := i, k
			c := node.Map[k]
			g.Go(func() error {
				v, err := Rehydrate(mgr, c)
				if err != nil {
					return err
				}
				results[i] = kv{key: k, value: v, present: !(c.Kind == KindRef && v.Kind == tree.KindNull)}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return tree.Value{}, err
		}
		out := make(map[string]tree.Value, len(results))
		for _, r := range results {
			if r.present {
				out[r.key] = r.value
			}
		}
		return tree.Value{Kind: tree.KindMap, Map: out}, nil
	default:
		return Rehydrate(mgr, node)
	}
}
