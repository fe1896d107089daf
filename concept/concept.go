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

// Edge represents a directed is-a hierarchy edge from an ancestor concept to a descendant concept. In SNOMED CT
// relationship terms, the destination of an is-a relationship is the ancestor and the source is the descendant.
type Edge struct {
	Ancestor, Descendant int64
}

// Concept represents a node in the concept hierarchy. The ID is the stable SNOMED CT concept identifier from the
// input. All other fields are computed by the pipeline: Depth by ComputeDepths, InstanceIDs and LabelCounts by
// PropagateSubsumption, Score and WeightedScore by ScoreConcepts and WeightScores. Score and WeightedScore are
// transient and recomputed on every scoring pass.
type Concept struct {
	ID            int64           //SNOMED CT concept identifier
	Label         string          //human-readable term, lookup only
	Depth         float64         //normalized hierarchy position in [0,1]
	InstanceIDs   map[string]bool //patients assigned to this concept or any descendant
	LabelCounts   map[string]int  //per cohort label, nr of instance IDs with that label
	Score         float64         //scorer output
	WeightedScore float64         //depth-adjusted score
}

// Ontology holds the directed acyclic concept hierarchy for one analysis run. The hierarchy is built once from the
// is-a edge list and is immutable afterwards; only the computed attributes of its concepts are (re)written by the
// downstream pipeline stages.
type Ontology struct {
	Nodes    map[int64]*Concept
	Parents  map[int64][]int64 //concept -> direct ancestors
	Children map[int64][]int64 //concept -> direct descendants
	order    []int64           //topological order, ancestors before descendants
}

// ConfigurationError reports an invalid configuration value, e.g. an unknown depth method or scorer name. Such errors
// abort a run immediately; the pipeline never silently falls back to a default.
type ConfigurationError struct {
	Parameter, Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Value)
}

// GraphConstructionError reports malformed or inconsistent hierarchy input, e.g. a relationship row with missing
// fields or an edge list that contains a cycle. It is surfaced before any traversal begins.
type GraphConstructionError struct {
	Reason string
}

func (e *GraphConstructionError) Error() string {
	return fmt.Sprintf("cannot construct concept graph: %s", e.Reason)
}

// BuildOntology builds the concept hierarchy from a list of is-a edges and a concept term lookup table. The edge list
// must already be filtered down to active is-a relationships (cf. the app package parsers). Construction is permissive
// about dangling references: every concept mentioned on either side of an edge becomes a node, and concepts without an
// entry in the term table get an empty label. A cyclic edge list yields a GraphConstructionError, since none of the
// downstream traversals are defined on a non-DAG.
func BuildOntology(edges []Edge, terms map[int64]string) (*Ontology, error) {
	o := &Ontology{
		Nodes:    map[int64]*Concept{},
		Parents:  map[int64][]int64{},
		Children: map[int64][]int64{},
	}
	seen := map[Edge]bool{}
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		o.addNode(e.Ancestor, terms)
		o.addNode(e.Descendant, terms)
		o.Children[e.Ancestor] = append(o.Children[e.Ancestor], e.Descendant)
		o.Parents[e.Descendant] = append(o.Parents[e.Descendant], e.Ancestor)
	}
	order, err := topologicalOrder(o)
	if err != nil {
		return nil, err
	}
	o.order = order
	return o, nil
}

func (o *Ontology) addNode(id int64, terms map[int64]string) {
	if _, ok := o.Nodes[id]; !ok {
		o.Nodes[id] = &Concept{ID: id, Label: terms[id]}
	}
}

// topologicalOrder computes an order over all concepts in which every ancestor precedes its descendants. It returns a
// GraphConstructionError when the edges contain a cycle. Concepts with equal rank are visited in increasing ID order
// so the result is deterministic.
func topologicalOrder(o *Ontology) ([]int64, error) {
	inDegree := map[int64]int{}
	for id := range o.Nodes {
		inDegree[id] = len(o.Parents[id])
	}
	queue := []int64{}
	for id, d := range inDegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sortIds(queue)
	order := []int64{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		next := []int64{}
		for _, child := range o.Children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				next = append(next, child)
			}
		}
		sortIds(next)
		queue = append(queue, next...)
	}
	if len(order) != len(o.Nodes) {
		return nil, &GraphConstructionError{Reason: "is-a edges contain a cycle"}
	}
	return order, nil
}

func sortIds(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// TopologicalOrder returns the concept IDs ordered so that every ancestor precedes its descendants.
func TopologicalOrder(o *Ontology) []int64 {
	return o.order
}

// Roots returns the concepts without any ancestor, in increasing ID order.
func Roots(o *Ontology) []int64 {
	roots := []int64{}
	for _, id := range o.order {
		if len(o.Parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sortIds(roots)
	return roots
}

// Subgraph returns the induced subgraph that retains the given concepts and only the edges between retained concepts.
func Subgraph(o *Ontology, keep map[int64]bool) *Ontology {
	terms := map[int64]string{}
	edges := []Edge{}
	for id := range keep {
		node, ok := o.Nodes[id]
		if !ok {
			continue
		}
		terms[id] = node.Label
		for _, child := range o.Children[id] {
			if keep[child] {
				edges = append(edges, Edge{Ancestor: id, Descendant: child})
			}
		}
	}
	sub, _ := BuildOntology(edges, terms) // a subgraph of a DAG cannot introduce a cycle
	// retain concepts that end up without any edge
	for id := range keep {
		if node, ok := o.Nodes[id]; ok {
			sub.addNode(id, map[int64]string{id: node.Label})
		}
	}
	order, _ := topologicalOrder(sub)
	sub.order = order
	return sub
}

// FilterToUsed restricts the ontology to the given codes and all their ancestors. This prunes an oversized ontology
// down to the concepts actually observed in the patient population plus their hierarchical context, which bounds the
// cost of all subsequent stages. Codes that do not occur in the ontology are ignored.
func FilterToUsed(o *Ontology, codes []int64) *Ontology {
	keep := map[int64]bool{}
	queue := []int64{}
	for _, code := range codes {
		if _, ok := o.Nodes[code]; ok && !keep[code] {
			keep[code] = true
			queue = append(queue, code)
		}
	}
	// multi-source upward traversal marks all ancestors of any used code
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, parent := range o.Parents[id] {
			if !keep[parent] {
				keep[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return Subgraph(o, keep)
}

// Reachability is a precomputed closure index with the full ancestor and descendant sets of every concept. Both sets
// are materialized with a single forward and a single reverse pass over the topological order, instead of one
// traversal per query, because per-node reachability queries dominate the cost of depth calculation and selection on
// large pruned graphs.
type Reachability struct {
	ancestors   map[int64]map[int64]bool
	descendants map[int64]map[int64]bool
}

// BuildReachability computes the reachability index for an ontology.
func BuildReachability(o *Ontology) *Reachability {
	r := &Reachability{
		ancestors:   map[int64]map[int64]bool{},
		descendants: map[int64]map[int64]bool{},
	}
	for _, id := range o.order {
		anc := map[int64]bool{}
		for _, parent := range o.Parents[id] {
			anc[parent] = true
			for a := range r.ancestors[parent] {
				anc[a] = true
			}
		}
		r.ancestors[id] = anc
	}
	for i := len(o.order) - 1; i >= 0; i-- {
		id := o.order[i]
		desc := map[int64]bool{}
		for _, child := range o.Children[id] {
			desc[child] = true
			for d := range r.descendants[child] {
				desc[d] = true
			}
		}
		r.descendants[id] = desc
	}
	return r
}

// Ancestors returns all concepts with a directed path to the given concept.
func (r *Reachability) Ancestors(id int64) map[int64]bool {
	return r.ancestors[id]
}

// Descendants returns all concepts reachable from the given concept.
func (r *Reachability) Descendants(id int64) map[int64]bool {
	return r.descendants[id]
}

// Distance returns the length of the shortest directed path from one concept to another, or -1 when no such path
// exists. The sentinel avoids raising an error for auxiliary distance queries between unrelated concepts.
func Distance(o *Ontology, from, to int64) int {
	if _, ok := o.Nodes[from]; !ok {
		return -1
	}
	if from == to {
		return 0
	}
	dist := map[int64]int{from: 0}
	queue := []int64{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range o.Children[id] {
			if _, ok := dist[child]; !ok {
				dist[child] = dist[id] + 1
				if child == to {
					return dist[child]
				}
				queue = append(queue, child)
			}
		}
	}
	return -1
}
