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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"snofs/concept"
	"strconv"
	"strings"
)

//Package app implements the input adapters of the snofs tool.
//The snofs program has 4 data inputs:
//A file with is-a relationships between SNOMED CT concepts (RF2 relationship snapshot, or a simple child,parent csv).
//A file with concept descriptions, mapping concept ID -> term (RF2 description snapshot, or a conceptId,term csv).
//A file with patient concept assignments, mapping patient ID -> concept code.
//A file with cohort labels, mapping patient ID -> cohort.
//The adapters hand the core package already-parsed data structures; all hierarchy and cohort semantics live in the
//concept package.

//SNOMED CT RF2 constants. In a relationship snapshot, hierarchy edges are rows with the is-a relationship type that
//are marked active; the destination concept of an is-a row is the ancestor and the source concept the descendant.
const (
	isARelationshipTypeID = "116680003"
	fsnDescriptionTypeID  = "900000000000003001"
	activeFlag            = "1"
)

//RF2 relationship snapshot columns:
//id effectiveTime active moduleId sourceId destinationId relationshipGroup typeId characteristicTypeId modifierId
const (
	relationshipActiveColumn      = 2
	relationshipSourceColumn      = 4
	relationshipDestinationColumn = 5
	relationshipTypeColumn        = 7
)

//RF2 description snapshot columns:
//id effectiveTime active moduleId conceptId languageCode typeId term caseSignificanceId
const (
	descriptionActiveColumn  = 2
	descriptionConceptColumn = 4
	descriptionTypeColumn    = 6
	descriptionTermColumn    = 7
)

// sniffHeader reads the first line of a file to detect its format without consuming the file.
func sniffHeader(file string) string {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// openTabularFile opens a file and returns a csv reader configured for the given delimiter, plus the file handle the
// caller must close.
func openTabularFile(file string, comma rune) (*csv.Reader, *os.File) {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader, f
}

// parseRelationships parses the is-a hierarchy edges from a relationships file. A header mentioning typeId selects
// the tab-separated RF2 relationship snapshot format, in which only active is-a rows participate; any other header
// selects the simple child,parent csv format in which every row is a hierarchy edge. A malformed row yields a
// GraphConstructionError before any graph traversal can begin.
func parseRelationships(file string) ([]concept.Edge, error) {
	if strings.Contains(sniffHeader(file), "typeId") {
		return parseRF2Relationships(file)
	}
	return parseChildParentEdges(file)
}

// parseRF2Relationships parses active is-a edges from a tab-separated RF2 relationship snapshot.
func parseRF2Relationships(file string) ([]concept.Edge, error) {
	fmt.Println("Parsing is-a relationships from RF2 snapshot: ", file)
	reader, f := openTabularFile(file, '\t')
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader.Read() // skip header
	edges := []concept.Edge{}
	row := 1
	totalCtr := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: %v", row, err)}
		}
		row++
		totalCtr++
		if len(record) <= relationshipTypeColumn {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: missing columns", row)}
		}
		if record[relationshipTypeColumn] != isARelationshipTypeID || record[relationshipActiveColumn] != activeFlag {
			continue
		}
		source, err := strconv.ParseInt(record[relationshipSourceColumn], 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: bad sourceId: %v", row, err)}
		}
		destination, err := strconv.ParseInt(record[relationshipDestinationColumn], 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: bad destinationId: %v", row, err)}
		}
		//the source concept is-a the destination concept, so the destination is the ancestor
		edges = append(edges, concept.Edge{Ancestor: destination, Descendant: source})
	}
	fmt.Println("Parsed ", totalCtr, " relationship rows of which ", len(edges), " active is-a edges.")
	return edges, nil
}

// parseChildParentEdges parses hierarchy edges from a child,parent csv file with a header line.
func parseChildParentEdges(file string) ([]concept.Edge, error) {
	fmt.Println("Parsing is-a relationships from child,parent csv: ", file)
	reader, f := openTabularFile(file, ',')
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader.Read() // skip header
	edges := []concept.Edge{}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: %v", row, err)}
		}
		row++
		if len(record) < 2 {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: missing columns", row)}
		}
		child, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: bad child id: %v", row, err)}
		}
		parent, err := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("relationships row %d: bad parent id: %v", row, err)}
		}
		edges = append(edges, concept.Edge{Ancestor: parent, Descendant: child})
	}
	fmt.Println("Parsed ", len(edges), " hierarchy edges.")
	return edges, nil
}

// parseConceptTerms parses the concept ID -> term lookup table from a descriptions file. A header mentioning
// conceptId selects the tab-separated RF2 description snapshot format, in which only active rows participate and the
// fully specified name wins over synonyms; any other header selects a conceptId,term csv.
func parseConceptTerms(file string) (map[int64]string, error) {
	if strings.Contains(sniffHeader(file), "conceptId") {
		return parseRF2Descriptions(file)
	}
	return parseConceptTermCsv(file)
}

// parseRF2Descriptions parses concept terms from a tab-separated RF2 description snapshot.
func parseRF2Descriptions(file string) (map[int64]string, error) {
	fmt.Println("Parsing concept descriptions from RF2 snapshot: ", file)
	reader, f := openTabularFile(file, '\t')
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader.Read() // skip header
	terms := map[int64]string{}
	fsn := map[int64]bool{} //concepts whose term came from a fully specified name
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: %v", row, err)}
		}
		row++
		if len(record) <= descriptionTermColumn {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: missing columns", row)}
		}
		if record[descriptionActiveColumn] != activeFlag {
			continue
		}
		conceptID, err := strconv.ParseInt(record[descriptionConceptColumn], 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: bad conceptId: %v", row, err)}
		}
		isFsn := record[descriptionTypeColumn] == fsnDescriptionTypeID
		if _, ok := terms[conceptID]; !ok || (isFsn && !fsn[conceptID]) {
			terms[conceptID] = record[descriptionTermColumn]
			fsn[conceptID] = isFsn
		}
	}
	fmt.Println("Parsed terms for ", len(terms), " concepts.")
	return terms, nil
}

// parseConceptTermCsv parses concept terms from a conceptId,term csv file with a header line.
func parseConceptTermCsv(file string) (map[int64]string, error) {
	fmt.Println("Parsing concept descriptions from csv: ", file)
	reader, f := openTabularFile(file, ',')
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader.Read() // skip header
	terms := map[int64]string{}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: %v", row, err)}
		}
		row++
		if len(record) < 2 {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: missing columns", row)}
		}
		conceptID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, &concept.GraphConstructionError{Reason: fmt.Sprintf("descriptions row %d: bad conceptId: %v", row, err)}
		}
		terms[conceptID] = record[1]
	}
	fmt.Println("Parsed terms for ", len(terms), " concepts.")
	return terms, nil
}

// parsePatientAssignments parses the patient concept assignments csv, mapping each concept code to the set of
// directly assigned patient IDs. Rows may be patient_id,code or instance_id,date,code; in the 3-column format the
// middle column is ignored. Rows with a non-numeric code are skipped and counted, since real-world extracts routinely
// carry codes outside the ontology's namespace. It also returns the list of distinct codes observed, which drives the
// pruning of the ontology to the used concepts.
func parsePatientAssignments(file string) (map[int64]map[string]bool, []int64) {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.Read() // skip header
	direct := map[int64]map[string]bool{}
	codes := []int64{}
	patients := map[string]bool{}
	skippedCtr := 0
	assignmentCtr := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		if len(record) < 2 {
			skippedCtr++
			continue
		}
		pidString := record[0]
		codeString := record[len(record)-1] //code is the last column in both supported formats
		code, err := strconv.ParseInt(strings.TrimSpace(codeString), 10, 64)
		if err != nil {
			skippedCtr++
			continue
		}
		if _, ok := direct[code]; !ok {
			direct[code] = map[string]bool{}
			codes = append(codes, code)
		}
		direct[code][pidString] = true
		patients[pidString] = true
		assignmentCtr++
	}
	fmt.Println("Parsed patient assignments.")
	fmt.Print("Parsed ", assignmentCtr, " assignments for ", len(patients), " patients over ", len(codes), " distinct codes")
	fmt.Println("; skipped ", skippedCtr, " malformed rows.")
	return direct, codes
}

// parseCohortLabels parses the cohort file (patient_id,cohort) into a cohort -> patient set map and the derived
// patient -> cohort label map.
func parseCohortLabels(file string) (map[string]map[string]bool, map[string]string) {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			panic(err)
		}
	}()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.Read() // skip header
	groups := map[string]map[string]bool{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		if len(record) < 2 {
			continue
		}
		pidString := record[0]
		cohort := strings.TrimSpace(record[1])
		if _, ok := groups[cohort]; !ok {
			groups[cohort] = map[string]bool{}
		}
		groups[cohort][pidString] = true
	}
	labels := concept.GroupLabels(groups)
	fmt.Println("Parsed cohort labels for ", len(labels), " patients in ", len(groups), " cohorts:")
	for cohort, patients := range groups {
		fmt.Print(cohort, ": ", len(patients), ", ")
	}
	fmt.Println("")
	return groups, labels
}

// AnalysisInput bundles the parsed data structures the core pipeline operates on: the pruned ontology, the direct
// patient assignment per concept, the cohort partition, and the derived label map and per-label population totals.
type AnalysisInput struct {
	Ontology  *concept.Ontology
	Direct    map[int64]map[string]bool //concept -> directly assigned patients
	CodesUsed []int64                   //distinct codes observed in the assignments
	Groups    map[string]map[string]bool
	Labels    map[string]string
	Totals    map[string]int
}

// ParseAnalysisData parses the four input files and builds the pruned concept hierarchy for one analysis run. The
// full ontology is restricted to the codes observed in the patient assignments plus all their ancestors before it is
// returned.
func ParseAnalysisData(relationshipsFile, descriptionsFile, assignmentsFile, cohortsFile string) (*AnalysisInput, error) {
	terms, err := parseConceptTerms(descriptionsFile)
	if err != nil {
		return nil, err
	}
	edges, err := parseRelationships(relationshipsFile)
	if err != nil {
		return nil, err
	}
	direct, codes := parsePatientAssignments(assignmentsFile)
	groups, labels := parseCohortLabels(cohortsFile)
	fmt.Println("Building concept graph...")
	ontology, err := concept.BuildOntology(edges, terms)
	if err != nil {
		return nil, err
	}
	fmt.Println("Built concept graph with ", len(ontology.Nodes), " concepts.")
	ontology = concept.FilterToUsed(ontology, codes)
	fmt.Println("Filtered down to ", len(ontology.Nodes), " concepts used by the patient population plus ancestors.")
	return &AnalysisInput{
		Ontology:  ontology,
		Direct:    direct,
		CodesUsed: codes,
		Groups:    groups,
		Labels:    labels,
		Totals:    concept.LabelTotals(labels),
	}, nil
}
