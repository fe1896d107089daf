// SNOFS: SNOMED CT Concept Feature Selection Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/snofs/blob/master/LICENSE.txt>.

package concept

import (
	"fmt"
)

// Depth calculation methods. Absolute measures how close a concept sits to the deepest point of its own subtree, in
// terms of shortest-path distance from the root. Relative measures the fraction of a concept's full hierarchy
// neighborhood that lies above it. Both are normalized to [0,1] with leaves close to 1 and broad near-root concepts
// close to 0.
const (
	AbsoluteDepth = "absolute"
	RelativeDepth = "relative"
)

// ResolveRoot returns the root concept to use for absolute depth calculation. When the caller supplies an explicit
// root (non-zero), that concept is used; otherwise the concept with the smallest ID among the concepts without
// ancestors is chosen. A pruned ontology commonly has several ancestor-less concepts, so the tie-break must be
// deterministic for runs to be reproducible.
func ResolveRoot(o *Ontology, root int64) (int64, error) {
	if root != 0 {
		if _, ok := o.Nodes[root]; !ok {
			return 0, &ConfigurationError{Parameter: "root", Value: fmt.Sprint(root)}
		}
		return root, nil
	}
	roots := Roots(o)
	if len(roots) == 0 {
		return 0, &GraphConstructionError{Reason: "hierarchy has no concept without ancestors"}
	}
	if len(roots) > 1 {
		fmt.Println("Found ", len(roots), " root concepts, using ", roots[0], " for absolute depth.")
	}
	return roots[0], nil
}

// ComputeDepths assigns every concept a normalized depth in [0,1] using the requested method. An unknown method is a
// configuration error. The root parameter is only consulted by the absolute method; pass 0 to let ResolveRoot pick
// deterministically.
func ComputeDepths(o *Ontology, reach *Reachability, method string, root int64) error {
	switch method {
	case AbsoluteDepth:
		return computeAbsoluteDepths(o, reach, root)
	case RelativeDepth:
		computeRelativeDepths(o, reach)
		return nil
	default:
		return &ConfigurationError{Parameter: "depthMethod", Value: method}
	}
}

// computeAbsoluteDepths computes depth(n) = level(n) / max(level(d) for d in descendants(n)), where level is the
// shortest-path distance from the root. Leaves get depth 1. Concepts not reachable from the root count as level 0; a
// concept whose descendants are all unreachable gets depth 0.
func computeAbsoluteDepths(o *Ontology, reach *Reachability, root int64) error {
	root, err := ResolveRoot(o, root)
	if err != nil {
		return err
	}
	levels := bfsLevels(o, root)
	for id, node := range o.Nodes {
		descendants := reach.Descendants(id)
		if len(descendants) == 0 {
			node.Depth = 1
			continue
		}
		maxLevel := 0
		for d := range descendants {
			if l, ok := levels[d]; ok && l > maxLevel {
				maxLevel = l
			}
		}
		if maxLevel == 0 {
			node.Depth = 0
			continue
		}
		node.Depth = float64(levels[id]) / float64(maxLevel)
	}
	return nil
}

// computeRelativeDepths computes depth(n) = |ancestors(n)| / (|ancestors(n)| + |descendants(n)|). A concept without
// any ancestor or descendant is treated as a leaf and gets depth 1.
func computeRelativeDepths(o *Ontology, reach *Reachability) {
	for id, node := range o.Nodes {
		nofAncestors := len(reach.Ancestors(id))
		nofDescendants := len(reach.Descendants(id))
		if nofAncestors+nofDescendants == 0 {
			node.Depth = 1
			continue
		}
		node.Depth = float64(nofAncestors) / float64(nofAncestors+nofDescendants)
	}
}

// bfsLevels returns the shortest-path distance from the root for every concept reachable from it.
func bfsLevels(o *Ontology, root int64) map[int64]int {
	levels := map[int64]int{root: 0}
	queue := []int64{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range o.Children[id] {
			if _, ok := levels[child]; !ok {
				levels[child] = levels[id] + 1
				queue = append(queue, child)
			}
		}
	}
	return levels
}
