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

package concept_test

import (
	"snofs/concept"
	"snofs/utils"
	"testing"
)

// prepareChain builds the chain 1 -> 2 -> 3 with one labeled patient propagated to all concepts, and assigns the
// given weighted scores.
func prepareChain(t *testing.T, scores map[int64]float64) (*concept.Ontology, *concept.Reachability) {
	edges := []concept.Edge{
		{Ancestor: 1, Descendant: 2},
		{Ancestor: 2, Descendant: 3},
	}
	o, err := concept.BuildOntology(edges, map[int64]string{})
	if err != nil {
		t.Fatal(err)
	}
	concept.PropagateSubsumption(o, map[int64]map[string]bool{3: {"p1": true}}, map[string]string{"p1": "case"})
	for id, score := range scores {
		o.Nodes[id].WeightedScore = score
		o.Nodes[id].Depth = 0.5
	}
	return o, concept.BuildReachability(o)
}

func TestSelectConceptsAntichain(t *testing.T) {
	o, reach := prepareChain(t, map[int64]float64{1: 1, 2: 3, 3: 2})
	selected := concept.SelectConcepts(o, reach, concept.SelectionParameters{TotalPatients: 1})
	// selecting the best concept excludes its ancestors and descendants
	if len(selected) != 1 || selected[0] != 2 {
		t.Errorf("expected [2], got %v", selected)
	}
}

func TestSelectConceptsSkipsTabuWithoutStopping(t *testing.T) {
	// two independent chains: 1 -> 2 and 3 -> 4
	edges := []concept.Edge{
		{Ancestor: 1, Descendant: 2},
		{Ancestor: 3, Descendant: 4},
	}
	o, err := concept.BuildOntology(edges, map[int64]string{})
	if err != nil {
		t.Fatal(err)
	}
	direct := map[int64]map[string]bool{2: {"p1": true}, 4: {"p2": true}}
	labels := map[string]string{"p1": "case", "p2": "case"}
	concept.PropagateSubsumption(o, direct, labels)
	for id, score := range map[int64]float64{2: 5, 1: 4, 3: 3, 4: 0.5} {
		o.Nodes[id].WeightedScore = score
		o.Nodes[id].Depth = 0.5
	}
	reach := concept.BuildReachability(o)
	params := concept.SelectionParameters{MinScore: 1, TotalPatients: 2}
	selected := concept.SelectConcepts(o, reach, params)
	// 2 is selected, 1 becomes tabu and is skipped, 3 is still selected, 4 falls below the score threshold
	if len(selected) != 2 || selected[0] != 2 || selected[1] != 3 {
		t.Errorf("expected [2 3], got %v", selected)
	}
	if utils.MemberInt64(1, selected) || utils.MemberInt64(4, selected) {
		t.Errorf("tabu or low scoring concepts selected: %v", selected)
	}
}

func TestSelectConceptsStopsBelowMinScore(t *testing.T) {
	o, reach := prepareChain(t, map[int64]float64{1: 0.1, 2: 0.2, 3: 0.3})
	params := concept.SelectionParameters{MinScore: 1, TotalPatients: 1}
	selected := concept.SelectConcepts(o, reach, params)
	if len(selected) != 0 {
		t.Errorf("expected no selection below the score threshold, got %v", selected)
	}
}

func TestSelectConceptsMaxConcepts(t *testing.T) {
	// three independent roots
	edges := []concept.Edge{
		{Ancestor: 1, Descendant: 4},
		{Ancestor: 2, Descendant: 5},
		{Ancestor: 3, Descendant: 6},
	}
	o, err := concept.BuildOntology(edges, map[int64]string{})
	if err != nil {
		t.Fatal(err)
	}
	direct := map[int64]map[string]bool{4: {"p1": true}, 5: {"p2": true}, 6: {"p3": true}}
	labels := map[string]string{"p1": "x", "p2": "x", "p3": "x"}
	concept.PropagateSubsumption(o, direct, labels)
	for id, score := range map[int64]float64{4: 3, 5: 2, 6: 1} {
		o.Nodes[id].WeightedScore = score
		o.Nodes[id].Depth = 1
	}
	reach := concept.BuildReachability(o)
	params := concept.SelectionParameters{MaxConcepts: 2, TotalPatients: 3}
	selected := concept.SelectConcepts(o, reach, params)
	if len(selected) != 2 || selected[0] != 4 || selected[1] != 5 {
		t.Errorf("expected [4 5], got %v", selected)
	}
}

func TestSelectConceptsRarityThreshold(t *testing.T) {
	o, reach := prepareChain(t, map[int64]float64{1: 1, 2: 3, 3: 2})
	// the chain captures a single patient; require more than half the population of 10
	params := concept.SelectionParameters{RarityThreshold: 0.5, TotalPatients: 10}
	selected := concept.SelectConcepts(o, reach, params)
	if len(selected) != 0 {
		t.Errorf("expected rare concepts to be excluded, got %v", selected)
	}
}

func TestSelectConceptsMinDepth(t *testing.T) {
	o, reach := prepareChain(t, map[int64]float64{1: 1, 2: 3, 3: 2})
	// all concepts sit at depth 0.5; requiring 0.8 excludes them all
	params := concept.SelectionParameters{MinDepth: 0.8, TotalPatients: 1}
	selected := concept.SelectConcepts(o, reach, params)
	if len(selected) != 0 {
		t.Errorf("expected shallow concepts to be excluded, got %v", selected)
	}
}

func TestSelectConceptsTieBreak(t *testing.T) {
	// two independent concepts with equal scores: the deeper one wins, then the smaller ID
	edges := []concept.Edge{
		{Ancestor: 1, Descendant: 3},
		{Ancestor: 2, Descendant: 4},
	}
	o, err := concept.BuildOntology(edges, map[int64]string{})
	if err != nil {
		t.Fatal(err)
	}
	direct := map[int64]map[string]bool{3: {"p1": true}, 4: {"p2": true}}
	labels := map[string]string{"p1": "x", "p2": "x"}
	concept.PropagateSubsumption(o, direct, labels)
	o.Nodes[3].WeightedScore, o.Nodes[3].Depth = 1, 0.4
	o.Nodes[4].WeightedScore, o.Nodes[4].Depth = 1, 0.9
	reach := concept.BuildReachability(o)
	selected := concept.SelectConcepts(o, reach, concept.SelectionParameters{TotalPatients: 2})
	if len(selected) != 2 || selected[0] != 4 || selected[1] != 3 {
		t.Errorf("expected the deeper concept first, got %v", selected)
	}
}
