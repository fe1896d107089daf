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
	"sort"
)

// SelectionParameters constrain the greedy concept selection. MaxConcepts <= 0 means unbounded. TotalPatients is the
// size of the labeled patient population; a concept qualifies only when it captures more than
// RarityThreshold*TotalPatients patients.
type SelectionParameters struct {
	MinScore        float64 //minimum weighted score; scanning stops at the first non-excluded concept below it
	MinDepth        float64 //minimum normalized depth
	RarityThreshold float64 //minimum captured fraction of the total population
	MaxConcepts     int     //maximum number of selected concepts, <= 0 for unbounded
	TotalPatients   int     //total labeled patient population
}

// SelectConcepts greedily selects the highest scoring concepts that satisfy the depth, rarity, and count constraints,
// such that no selected concept is an ancestor or descendant of another. Concepts are visited in order of decreasing
// weighted score, with ties broken toward the deeper concept and then toward the smaller ID for determinism. Whenever
// a concept is selected, all its ancestors and descendants enter a tabu set and are skipped for the rest of the scan,
// which makes the result an antichain in the hierarchy. Because the candidates are sorted, the first concept below
// the minimum score terminates the scan; tabu concepts are skipped without terminating, since an excluded high scorer
// says nothing about the scores still to come. WeightScores must have run before selection. The selected concept IDs
// are returned in selection order, best first.
func SelectConcepts(o *Ontology, reach *Reachability, params SelectionParameters) []int64 {
	candidates := make([]*Concept, 0, len(o.Nodes))
	for _, id := range o.order {
		candidates = append(candidates, o.Nodes[id])
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].WeightedScore != candidates[j].WeightedScore {
			return candidates[i].WeightedScore > candidates[j].WeightedScore
		}
		if candidates[i].Depth != candidates[j].Depth {
			return candidates[i].Depth > candidates[j].Depth
		}
		return candidates[i].ID < candidates[j].ID
	})
	tabu := map[int64]bool{}
	selected := []int64{}
	for _, node := range candidates {
		if tabu[node.ID] {
			continue
		}
		if node.WeightedScore < params.MinScore {
			break
		}
		if params.MaxConcepts > 0 && len(selected) >= params.MaxConcepts {
			break
		}
		if float64(CapturedCount(node)) <= params.RarityThreshold*float64(params.TotalPatients) {
			continue
		}
		if node.Depth < params.MinDepth {
			continue
		}
		selected = append(selected, node.ID)
		tabu[node.ID] = true
		for a := range reach.Ancestors(node.ID) {
			tabu[a] = true
		}
		for d := range reach.Descendants(node.ID) {
			tabu[d] = true
		}
	}
	fmt.Println("Selected ", len(selected), " concepts out of ", len(candidates), " candidates.")
	return selected
}
