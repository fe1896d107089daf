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

package app_test

import (
	"io/ioutil"
	"path/filepath"
	"snofs/app"
	"snofs/concept"
	"testing"
)

func writeTempFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const rf2RelationshipHeader = "id\teffectiveTime\tactive\tmoduleId\tsourceId\tdestinationId\trelationshipGroup\ttypeId\tcharacteristicTypeId\tmodifierId\n"

func TestParseRF2Relationships(t *testing.T) {
	content := rf2RelationshipHeader +
		"100\t20220131\t1\t900000000000207008\t44054006\t73211009\t0\t116680003\t900000000000011006\t900000000000451002\n" +
		"101\t20220131\t0\t900000000000207008\t46635009\t73211009\t0\t116680003\t900000000000011006\t900000000000451002\n" +
		"102\t20220131\t1\t900000000000207008\t44054006\t64572001\t0\t363698007\t900000000000011006\t900000000000451002\n"
	file := writeTempFile(t, "relationships.txt", content)
	edges, err := app.ParseRelationships(file)
	if err != nil {
		t.Fatal(err)
	}
	// only the active is-a row survives; the destination concept is the ancestor
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Ancestor != 73211009 || edges[0].Descendant != 44054006 {
		t.Errorf("unexpected edge: %v", edges[0])
	}
}

func TestParseRF2RelationshipsMalformedRow(t *testing.T) {
	content := rf2RelationshipHeader +
		"100\t20220131\t1\n"
	file := writeTempFile(t, "relationships.txt", content)
	_, err := app.ParseRelationships(file)
	if err == nil {
		t.Fatal("expected an error for a row with missing columns")
	}
	if _, ok := err.(*concept.GraphConstructionError); !ok {
		t.Errorf("expected a GraphConstructionError, got %T", err)
	}
}

func TestParseChildParentEdges(t *testing.T) {
	content := "child,parent\n" +
		"44054006,73211009\n" +
		"73211009,404684003\n"
	file := writeTempFile(t, "relationships.csv", content)
	edges, err := app.ParseRelationships(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0].Ancestor != 73211009 || edges[0].Descendant != 44054006 {
		t.Errorf("unexpected edge: %v", edges[0])
	}
}

const rf2DescriptionHeader = "id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId\n"

func TestParseRF2Descriptions(t *testing.T) {
	content := rf2DescriptionHeader +
		"200\t20220131\t1\t900000000000207008\t73211009\ten\t900000000000013009\tDiabetes\t900000000000448009\n" +
		"201\t20220131\t1\t900000000000207008\t73211009\ten\t900000000000003001\tDiabetes mellitus (disorder)\t900000000000448009\n" +
		"202\t20220131\t0\t900000000000207008\t44054006\ten\t900000000000003001\tType 2 diabetes mellitus (disorder)\t900000000000448009\n"
	file := writeTempFile(t, "descriptions.txt", content)
	terms, err := app.ParseConceptTerms(file)
	if err != nil {
		t.Fatal(err)
	}
	// the fully specified name wins over the synonym parsed first
	if terms[73211009] != "Diabetes mellitus (disorder)" {
		t.Errorf("expected the fully specified name, got %q", terms[73211009])
	}
	// inactive descriptions are skipped
	if _, ok := terms[44054006]; ok {
		t.Errorf("expected inactive descriptions to be skipped")
	}
}

func TestParseConceptTermCsv(t *testing.T) {
	content := "concept,term\n" +
		"73211009,Diabetes mellitus\n" +
		"44054006,Type 2 diabetes mellitus\n"
	file := writeTempFile(t, "terms.csv", content)
	terms, err := app.ParseConceptTerms(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 2 || terms[44054006] != "Type 2 diabetes mellitus" {
		t.Errorf("unexpected terms: %v", terms)
	}
}

func TestParsePatientAssignments(t *testing.T) {
	content := "patient_id,code\n" +
		"p1,44054006\n" +
		"p1,38341003\n" +
		"p2,44054006\n" +
		"p3,notacode\n"
	file := writeTempFile(t, "assignments.csv", content)
	direct, codes := app.ParsePatientAssignments(file)
	if len(codes) != 2 {
		t.Fatalf("expected 2 distinct codes, got %v", codes)
	}
	if len(direct[44054006]) != 2 || !direct[44054006]["p1"] || !direct[44054006]["p2"] {
		t.Errorf("unexpected assignment for 44054006: %v", direct[44054006])
	}
	// non-numeric codes are skipped, not fatal
	for _, patients := range direct {
		if patients["p3"] {
			t.Errorf("expected the malformed row for p3 to be skipped")
		}
	}
}

func TestParsePatientAssignmentsThreeColumns(t *testing.T) {
	content := "instance_id,date,code\n" +
		"p1,2020-01-15,44054006\n" +
		"p2,2021-07-01,38341003\n"
	file := writeTempFile(t, "assignments.csv", content)
	direct, codes := app.ParsePatientAssignments(file)
	if len(codes) != 2 {
		t.Fatalf("expected 2 distinct codes, got %v", codes)
	}
	if !direct[44054006]["p1"] || !direct[38341003]["p2"] {
		t.Errorf("unexpected assignments: %v", direct)
	}
}

func TestParseCohortLabels(t *testing.T) {
	content := "patient_id,cohort\n" +
		"p1,case\n" +
		"p2,case\n" +
		"p3,control\n"
	file := writeTempFile(t, "cohorts.csv", content)
	groups, labels := app.ParseCohortLabels(file)
	if len(groups) != 2 || len(groups["case"]) != 2 || len(groups["control"]) != 1 {
		t.Errorf("unexpected groups: %v", groups)
	}
	if labels["p1"] != "case" || labels["p3"] != "control" {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestParseAnalysisData(t *testing.T) {
	relationships := writeTempFile(t, "relationships.csv",
		"child,parent\n"+
			"73211009,404684003\n"+
			"44054006,73211009\n"+
			"46635009,73211009\n"+
			"38341003,404684003\n")
	descriptions := writeTempFile(t, "terms.csv",
		"concept,term\n"+
			"404684003,Clinical finding\n"+
			"73211009,Diabetes mellitus\n"+
			"44054006,Type 2 diabetes mellitus\n")
	assignments := writeTempFile(t, "assignments.csv",
		"patient_id,code\n"+
			"p1,44054006\n"+
			"p2,44054006\n"+
			"p3,44054006\n")
	cohorts := writeTempFile(t, "cohorts.csv",
		"patient_id,cohort\n"+
			"p1,case\n"+
			"p2,case\n"+
			"p3,control\n")
	input, err := app.ParseAnalysisData(relationships, descriptions, assignments, cohorts)
	if err != nil {
		t.Fatal(err)
	}
	// the ontology is pruned to the used code plus its ancestors
	if len(input.Ontology.Nodes) != 3 {
		t.Fatalf("expected 3 concepts after pruning, got %d", len(input.Ontology.Nodes))
	}
	for _, id := range []int64{404684003, 73211009, 44054006} {
		if _, ok := input.Ontology.Nodes[id]; !ok {
			t.Errorf("expected concept %d to survive pruning", id)
		}
	}
	if input.Totals["case"] != 2 || input.Totals["control"] != 1 {
		t.Errorf("unexpected totals: %v", input.Totals)
	}
	if input.Ontology.Nodes[44054006].Label != "Type 2 diabetes mellitus" {
		t.Errorf("concept labels lost in pruning")
	}
}
