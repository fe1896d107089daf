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
	"math"
	"sort"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/stat"
)

// A Scorer reduces a concept's aggregated label counts plus the global per-label population totals to a single
// discriminative score. Scorers must be pure functions of their arguments: scoring runs in parallel over all concepts
// and every concept's score is written exactly once per pass.
type Scorer func(counts map[string]int, totals map[string]int) float64

// Recognized scorer names.
const (
	DifferenceScorerName         = "difference"
	EntropyScorerName            = "entropy"
	ChiSquaredScorerName         = "chi2"
	OddsRatioScorerName          = "odds_ratio"
	PrecisionDeviationScorerName = "precision_deviation"
)

// ScorerByName returns the scorer registered under the given name. The positive label parameter is only consulted by
// the contingency-table based scorers (chi2, odds_ratio). An unknown name is a configuration error.
func ScorerByName(name, positiveLabel string) (Scorer, error) {
	switch name {
	case DifferenceScorerName:
		return DifferenceScorer(), nil
	case EntropyScorerName:
		return EntropyScorer(), nil
	case ChiSquaredScorerName:
		return ChiSquaredScorer(positiveLabel), nil
	case OddsRatioScorerName:
		return OddsRatioScorer(positiveLabel), nil
	case PrecisionDeviationScorerName:
		return PrecisionDeviationScorer(), nil
	default:
		return nil, &ConfigurationError{Parameter: "scorer", Value: name}
	}
}

// sortedLabels returns the cohort labels in a deterministic order.
func sortedLabels(totals map[string]int) []string {
	labels := make([]string, 0, len(totals))
	for label := range totals {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// captureProportions computes per label the fraction of that label's total population captured at the concept, in
// sorted label order.
func captureProportions(counts, totals map[string]int) []float64 {
	labels := sortedLabels(totals)
	proportions := make([]float64, len(labels))
	for i, label := range labels {
		if totals[label] > 0 {
			proportions[i] = float64(counts[label]) / float64(totals[label])
		}
	}
	return proportions
}

// DifferenceScorer scores a concept by the difference in capture proportions between cohorts. For a two-label
// population the score is the signed difference proportion(label1) - proportion(label0) in sorted label order; for
// more than two cohorts it is the mean absolute difference over all cohort pairs.
func DifferenceScorer() Scorer {
	return func(counts, totals map[string]int) float64 {
		proportions := captureProportions(counts, totals)
		if len(proportions) == 2 {
			return proportions[1] - proportions[0]
		}
		differences := []float64{}
		for i := 0; i < len(proportions); i++ {
			for j := i + 1; j < len(proportions); j++ {
				differences = append(differences, math.Abs(proportions[i]-proportions[j]))
			}
		}
		if len(differences) == 0 {
			return 0
		}
		return stat.Mean(differences, nil)
	}
}

// shannonEntropy computes the base 2 Shannon entropy of a proportion vector, with 0*log(0) taken as 0. The input is
// not required to sum to 1; it is the vector of per-label capture proportions.
func shannonEntropy(proportions []float64) float64 {
	entropy := 0.0
	for _, p := range proportions {
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

// EntropyScorer scores a concept as 1 minus the Shannon entropy of its per-label capture proportions. A concept whose
// captured patients concentrate in a single cohort scores close to 1; an even split over two cohorts scores 0. The
// score is used as a purity signal, not a probability.
func EntropyScorer() Scorer {
	return func(counts, totals map[string]int) float64 {
		return 1 - shannonEntropy(captureProportions(counts, totals))
	}
}

// contingencyTable builds the 2x2 contingency table of instances captured at a concept versus the chosen positive
// label: TP, TN, FP, FN.
func contingencyTable(counts, totals map[string]int, positiveLabel string) (tp, tn, fp, fn int) {
	tp = counts[positiveLabel]
	fn = totals[positiveLabel] - tp
	for _, ctr := range counts {
		fp += ctr
	}
	fp -= tp
	for _, total := range totals {
		tn += total
	}
	tn -= tp + fp + fn
	return tp, tn, fp, fn
}

// ChiSquaredScorer scores a concept by the chi-squared statistic of its 2x2 contingency table against the positive
// label, with Yates' continuity correction as is standard for 2x2 tables. A degenerate table (a zero row or column
// marginal, which makes the test undefined) scores 0 rather than surfacing an error, so one degenerate concept never
// aborts a scoring pass.
func ChiSquaredScorer(positiveLabel string) Scorer {
	return func(counts, totals map[string]int) float64 {
		tp, tn, fp, fn := contingencyTable(counts, totals, positiveLabel)
		observed := [2][2]float64{{float64(tp), float64(fp)}, {float64(fn), float64(tn)}}
		rows := [2]float64{observed[0][0] + observed[0][1], observed[1][0] + observed[1][1]}
		cols := [2]float64{observed[0][0] + observed[1][0], observed[0][1] + observed[1][1]}
		n := rows[0] + rows[1]
		if rows[0] == 0 || rows[1] == 0 || cols[0] == 0 || cols[1] == 0 {
			return 0
		}
		chi2 := 0.0
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				expected := rows[i] * cols[j] / n
				delta := math.Abs(observed[i][j]-expected) - 0.5
				if delta < 0 {
					delta = 0
				}
				chi2 += delta * delta / expected
			}
		}
		return chi2
	}
}

// OddsRatioScorer scores a concept by the odds ratio (TP*TN)/(FP*FN) of its 2x2 contingency table against the
// positive label. A zero denominator factor yields the sentinel -1. An odds ratio below 1 is inverted so that a
// larger score always signals a stronger association regardless of direction.
func OddsRatioScorer(positiveLabel string) Scorer {
	return func(counts, totals map[string]int) float64 {
		tp, tn, fp, fn := contingencyTable(counts, totals, positiveLabel)
		if fp == 0 || fn == 0 {
			return -1
		}
		oddsRatio := float64(tp*tn) / float64(fp*fn)
		if oddsRatio < 1 && oddsRatio != 0 {
			oddsRatio = 1 / oddsRatio
		}
		return oddsRatio
	}
}

// PrecisionDeviationScorer scores a concept by how far the cohort composition of its captured patients deviates from
// the baseline cohort proportions of the whole population. Per cohort, when the concept captures more than 1% of that
// cohort, it contributes |precision - baseline cohort proportion| where precision is the cohort's share of all
// patients captured at the concept; cohorts below the 1% gate contribute 0. The score is the mean over cohorts.
func PrecisionDeviationScorer() Scorer {
	return func(counts, totals map[string]int) float64 {
		labels := sortedLabels(totals)
		grandTotal := 0
		captured := 0
		for _, label := range labels {
			grandTotal += totals[label]
			captured += counts[label]
		}
		if grandTotal == 0 {
			return 0
		}
		deviations := make([]float64, 0, len(labels))
		for _, label := range labels {
			tp := counts[label]
			if float64(tp) > float64(totals[label])*0.01 {
				precision := 0.0
				if captured > 0 {
					precision = float64(tp) / float64(captured)
				}
				baseline := float64(totals[label]) / float64(grandTotal)
				deviations = append(deviations, math.Abs(precision-baseline))
			} else {
				deviations = append(deviations, 0)
			}
		}
		return stat.Mean(deviations, nil)
	}
}

// ScoreConcepts scores every concept with the given scorer. Scoring is a pure per-concept function of the already
// propagated label counts, so the concepts are scored in parallel. Scores are always recomputed; no score from a
// previous pass survives.
func ScoreConcepts(o *Ontology, scorer Scorer, totals map[string]int) {
	fmt.Println("Scoring ", len(o.Nodes), " concepts...")
	nodes := make([]*Concept, 0, len(o.Nodes))
	for _, id := range o.order {
		nodes = append(nodes, o.Nodes[id])
	}
	parallel.Range(0, len(nodes), 0, func(low, high int) {
		for _, node := range nodes[low:high] {
			node.Score = scorer(node.LabelCounts, totals)
		}
	})
}

// WeightScores computes every concept's depth-weighted score |score| * (1 + depth*weight). A weight of 0 disables
// depth weighting; a positive weight biases subsequent selection toward deeper, more specific concepts.
func WeightScores(o *Ontology, weight float64) {
	for _, node := range o.Nodes {
		node.WeightedScore = math.Abs(node.Score) * (1 + node.Depth*weight)
	}
}
