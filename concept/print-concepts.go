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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Output of the computed concept attribute table and the selected concept list.

// chiSquaredPValue converts a chi-squared statistic with one degree of freedom into a p-value. A statistic of 0 (also
// the degenerate-table sentinel) maps to p = 1.
func chiSquaredPValue(statistic float64) float64 {
	if statistic <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: 1}.Survival(statistic)
}

// formatLabelCounts renders a concept's label counts as label:count pairs in sorted label order.
func formatLabelCounts(counts map[string]int, totals map[string]int) string {
	parts := []string{}
	for _, label := range sortedLabels(totals) {
		parts = append(parts, fmt.Sprintf("%s:%d", label, counts[label]))
	}
	return strings.Join(parts, ",")
}

// PrintConceptAttributesToTabFile writes per concept one line to a tab file: concept ID, term, depth, captured
// patient count, per-label counts, score, weighted score, and the chi-squared p-value of the concept's contingency
// table against the positive label. Concepts are written in topological order.
func PrintConceptAttributesToTabFile(o *Ontology, totals map[string]int, positiveLabel, name string) {
	file, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	chi2 := ChiSquaredScorer(positiveLabel)
	fmt.Fprintf(file, "conceptId\tterm\tdepth\tcaptured\tlabelCounts\tscore\tweightedScore\tpValue\n")
	for _, id := range o.order {
		node := o.Nodes[id]
		pValue := chiSquaredPValue(chi2(node.LabelCounts, totals))
		fmt.Fprintf(file, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			node.ID, node.Label,
			strconv.FormatFloat(node.Depth, 'f', 6, 64),
			CapturedCount(node),
			formatLabelCounts(node.LabelCounts, totals),
			strconv.FormatFloat(node.Score, 'E', -1, 64),
			strconv.FormatFloat(node.WeightedScore, 'E', -1, 64),
			strconv.FormatFloat(pValue, 'E', -1, 64))
	}
}

// PrintSelectedConceptsToTabFile writes the selected concepts to a tab file, one line per concept in selection order:
// concept ID, term, depth, captured patient count, weighted score.
func PrintSelectedConceptsToTabFile(o *Ontology, selected []int64, name string) {
	file, err := os.Create(name)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	for _, id := range selected {
		node := o.Nodes[id]
		fmt.Fprintf(file, "%d\t%s\t%s\t%d\t%s\n",
			node.ID, node.Label,
			strconv.FormatFloat(node.Depth, 'f', 6, 64),
			CapturedCount(node),
			strconv.FormatFloat(node.WeightedScore, 'E', -1, 64))
	}
}

// PrintSelectedConcept prints a selected concept to standard output.
func PrintSelectedConcept(o *Ontology, id int64) {
	node := o.Nodes[id]
	fmt.Println(node.ID, " : ", node.Label, " (depth ", node.Depth, ", captured ", CapturedCount(node),
		", weighted score ", node.WeightedScore, ")")
}

// PrintConceptsToFile writes the full attribute table and the selected concept list to the output path, using the
// experiment name to derive the file names.
func PrintConceptsToFile(o *Ontology, selected []int64, totals map[string]int, positiveLabel, name, path string) {
	attributesFile := filepath.Join(path, fmt.Sprintf("%s.attributes.tab", name))
	selectedFile := filepath.Join(path, fmt.Sprintf("%s.selected.tab", name))
	PrintConceptAttributesToTabFile(o, totals, positiveLabel, attributesFile)
	PrintSelectedConceptsToTabFile(o, selected, selectedFile)
	fmt.Println("Wrote concept attribute table to: ", attributesFile)
	fmt.Println("Wrote selected concepts to: ", selectedFile)
}
