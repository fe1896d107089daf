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

// Subsumption propagation. An ancestor concept's patient population is the union of its own directly assigned
// patients and the populations of all its descendants. The propagation walks the hierarchy in reverse topological
// order so that every child closure is fully resolved before its parents, which makes the whole pass a single union
// per edge instead of a full descendant enumeration per concept.

// PropagateSubsumption assigns every concept the union of the patient IDs directly assigned to it and to all its
// descendants, and counts the cohort labels of the resulting closure. Patients without an entry in the label map are
// carried in the instance sets but do not contribute to the label counts. The function fully resets InstanceIDs and
// LabelCounts before propagating, so calling it again with a new assignment recomputes from scratch and calling it
// with the same assignment is idempotent.
func PropagateSubsumption(o *Ontology, direct map[int64]map[string]bool, labels map[string]string) {
	fmt.Println("Propagating patient sets through ", len(o.Nodes), " concepts...")
	for i := len(o.order) - 1; i >= 0; i-- {
		id := o.order[i]
		node := o.Nodes[id]
		ids := map[string]bool{}
		for pid := range direct[id] {
			ids[pid] = true
		}
		for _, child := range o.Children[id] {
			for pid := range o.Nodes[child].InstanceIDs {
				ids[pid] = true
			}
		}
		node.InstanceIDs = ids
		counts := map[string]int{}
		for pid := range ids {
			if label, ok := labels[pid]; ok {
				counts[label]++
			}
		}
		node.LabelCounts = counts
	}
}

// GroupLabels derives a patient -> group name map from a group -> patient set map. Cohort counting with the derived
// map is equivalent to group-membership aggregation; the input groups are expected to be disjoint, which is not
// enforced here.
func GroupLabels(groups map[string]map[string]bool) map[string]string {
	labels := map[string]string{}
	for group, patients := range groups {
		for pid := range patients {
			labels[pid] = group
		}
	}
	return labels
}

// LabelTotals counts the total patient population per cohort label.
func LabelTotals(labels map[string]string) map[string]int {
	totals := map[string]int{}
	for _, label := range labels {
		totals[label]++
	}
	return totals
}

// GroupedInstances splits every concept's propagated patient closure by group membership. It must be called after
// PropagateSubsumption. The result maps concept -> group -> the patients of that group captured at the concept.
func GroupedInstances(o *Ontology, groups map[string]map[string]bool) map[int64]map[string][]string {
	grouped := map[int64]map[string][]string{}
	for id, node := range o.Nodes {
		byGroup := map[string][]string{}
		for group, patients := range groups {
			members := []string{}
			for pid := range node.InstanceIDs {
				if patients[pid] {
					members = append(members, pid)
				}
			}
			byGroup[group] = members
		}
		grouped[id] = byGroup
	}
	return grouped
}

// CapturedCount returns the number of patients captured at a concept that carry a known cohort label.
func CapturedCount(node *Concept) int {
	captured := 0
	for _, ctr := range node.LabelCounts {
		captured += ctr
	}
	return captured
}
