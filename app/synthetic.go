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

package app

import (
	"fmt"
	"snofs/concept"

	"github.com/valyala/fastrand"
)

//Synthetic population generation. Used by the tests and for trying out the tool without access to a real SNOMED CT
//release and patient extract. The generated hierarchy is a small polyhierarchy-free excerpt rooted at the SNOMED CT
//root concept; the generated population skews one cohort toward the diabetes branch so that the selection pipeline
//has a real signal to find.

// Synthetic concept IDs (real SNOMED CT codes).
const (
	SyntheticRoot       = int64(138875005) //SNOMED CT Concept
	ClinicalFinding     = int64(404684003)
	DiabetesMellitus    = int64(73211009)
	Type2Diabetes       = int64(44054006)
	Type1Diabetes       = int64(46635009)
	HypertensiveDisease = int64(38341003)
	Asthma              = int64(195967001)
	Procedure           = int64(71388002)
	SurgicalProcedure   = int64(387713003)
	MedicationReview    = int64(182836005)
)

// SyntheticOntology returns the is-a edges and terms of a small concept hierarchy rooted at the SNOMED CT root
// concept, with a clinical finding branch and a procedure branch.
func SyntheticOntology() ([]concept.Edge, map[int64]string) {
	edges := []concept.Edge{
		{Ancestor: SyntheticRoot, Descendant: ClinicalFinding},
		{Ancestor: SyntheticRoot, Descendant: Procedure},
		{Ancestor: ClinicalFinding, Descendant: DiabetesMellitus},
		{Ancestor: ClinicalFinding, Descendant: HypertensiveDisease},
		{Ancestor: ClinicalFinding, Descendant: Asthma},
		{Ancestor: DiabetesMellitus, Descendant: Type2Diabetes},
		{Ancestor: DiabetesMellitus, Descendant: Type1Diabetes},
		{Ancestor: Procedure, Descendant: SurgicalProcedure},
		{Ancestor: Procedure, Descendant: MedicationReview},
	}
	terms := map[int64]string{
		SyntheticRoot:       "SNOMED CT Concept",
		ClinicalFinding:     "Clinical finding",
		DiabetesMellitus:    "Diabetes mellitus",
		Type2Diabetes:       "Type 2 diabetes mellitus",
		Type1Diabetes:       "Type 1 diabetes mellitus",
		HypertensiveDisease: "Hypertensive disorder",
		Asthma:              "Asthma",
		Procedure:           "Procedure",
		SurgicalProcedure:   "Surgical procedure",
		MedicationReview:    "Medication review",
	}
	return edges, terms
}

// syntheticLeaves are the concepts patients get directly assigned to.
var syntheticLeaves = []int64{Type2Diabetes, Type1Diabetes, HypertensiveDisease, Asthma, SurgicalProcedure, MedicationReview}

// diabetesLeaves is the subset of leaves the case cohort is skewed toward.
var diabetesLeaves = []int64{Type2Diabetes, Type1Diabetes}

// SyntheticPopulation generates a patient population of the given size per cohort over the synthetic ontology's
// leaves. Patients of the case cohort draw 70% of their codes from the diabetes leaves; control patients draw
// uniformly from all leaves. Every patient gets one or two codes. It returns the direct assignment per concept and
// the cohort partition.
func SyntheticPopulation(nofPatientsPerCohort int) (map[int64]map[string]bool, map[string]map[string]bool) {
	direct := map[int64]map[string]bool{}
	groups := map[string]map[string]bool{
		"case":    {},
		"control": {},
	}
	assign := func(code int64, pidString string) {
		if _, ok := direct[code]; !ok {
			direct[code] = map[string]bool{}
		}
		direct[code][pidString] = true
	}
	for i := 0; i < nofPatientsPerCohort; i++ {
		pidString := fmt.Sprintf("case-%d", i)
		groups["case"][pidString] = true
		nofCodes := 1 + int(fastrand.Uint32n(2))
		for j := 0; j < nofCodes; j++ {
			if fastrand.Uint32n(10) < 7 {
				assign(diabetesLeaves[fastrand.Uint32n(uint32(len(diabetesLeaves)))], pidString)
			} else {
				assign(syntheticLeaves[fastrand.Uint32n(uint32(len(syntheticLeaves)))], pidString)
			}
		}
	}
	for i := 0; i < nofPatientsPerCohort; i++ {
		pidString := fmt.Sprintf("control-%d", i)
		groups["control"][pidString] = true
		nofCodes := 1 + int(fastrand.Uint32n(2))
		for j := 0; j < nofCodes; j++ {
			assign(syntheticLeaves[fastrand.Uint32n(uint32(len(syntheticLeaves)))], pidString)
		}
	}
	return direct, groups
}

// SyntheticCodesUsed returns the distinct codes occurring in a direct assignment, for pruning the ontology.
func SyntheticCodesUsed(direct map[int64]map[string]bool) []int64 {
	codes := []int64{}
	for code := range direct {
		codes = append(codes, code)
	}
	return codes
}
