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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"snofs/app"
	"snofs/concept"
	"snofs/utils"
)

/*
Snofs is a tool for selecting discriminative SNOMED CT concepts from patient populations.

Usage:
	snofs relationshipsFile descriptionsFile assignmentsFile cohortsFile outputPath [flags]

Example:
	snofs sct2_Relationship_Snapshot.txt sct2_Description_Snapshot.txt assignments.csv cohorts.csv ./diabetes_run/
	--scorer odds_ratio --positiveLabel case --depthMethod absolute --weight 0.5 --rarityThreshold 0.01
	--minDepth 0.2 --minScore 2.0 --nConcepts 50 --name diabetes_run

The flags are:

--depthMethod absolute | relative
	Sets the method for computing concept depths. The absolute method computes the depth of a concept as its
	distance from the ontology root, normalized by the maximum root distance among its descendants. The relative
	method computes the depth of a concept as the fraction of its ancestors over its ancestors plus descendants.
	Both methods yield depths in (0,1] where deeper means more specific.
--scorer difference | entropy | chi2 | odds_ratio | precision_deviation
	Sets the scoring function that quantifies how well a concept discriminates between the patient cohorts. The
	chi2 and odds_ratio scorers compare the cohort given by --positiveLabel against all other patients; the
	remaining scorers work on any number of cohorts.
--positiveLabel string
	Sets the cohort label treated as the positive class by the chi2 and odds_ratio scorers.
--weight nr
	Sets the depth weight. The final rank of a concept is |score| * (1 + depth * weight), so a weight of 0 ranks
	purely by score and larger weights favor more specific concepts.
--rarityThreshold nr
	Sets the minimum fraction of the total population a concept must capture to be selectable. E.g. 0.05 requires
	a concept to subsume codes of more than 5% of all patients.
--minDepth nr
	Sets the minimum depth a concept must have to be selectable. This excludes overly generic concepts near the
	ontology root.
--minScore nr
	Sets the weighted score below which selection stops. Once a selectable concept scores below this threshold, no
	further concepts are selected.
--nConcepts nr
	Sets the maximum number of concepts to select. 0 means unbounded.
--root nr
	Sets the SNOMED CT concept ID to use as the ontology root for absolute depth computation. If not given, the
	root is detected as the concept without ancestors, choosing the smallest ID when multiple candidates exist.
--config file
	A yaml file with run parameters. Flags given on the command line override values from this file.
--name string
	Sets the name of the run. This is used to generate the names of the output files.
--nrOfThreads nr
	Sets the number of threads snofs uses.

The relationships file is either an RF2 relationship snapshot (tab separated, is-a relationships are extracted) or
a two-column child,parent csv file. The descriptions file is either an RF2 description snapshot (fully specified
names are extracted) or a two-column conceptId,term csv file. The assignments file lists patient_id,code pairs or
instance_id,date,code triples. The cohorts file lists patient_id,label pairs.
*/

const (
	programVersion = 0.1
	programName    = "snofs"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const snofsHelp = "\nsnofs parameters:\n" +
	"snofs relationshipsFile descriptionsFile assignmentsFile cohortsFile outputPath \n" +
	"[--depthMethod absolute | relative]\n" +
	"[--scorer difference | entropy | chi2 | odds_ratio | precision_deviation]\n" +
	"[--positiveLabel string]\n" +
	"[--weight nr]\n" +
	"[--rarityThreshold nr]\n" +
	"[--minDepth nr]\n" +
	"[--minScore nr]\n" +
	"[--nConcepts nr]\n" +
	"[--root nr]\n" +
	"[--config file]\n" +
	"[--name string]\n" +
	"[--nrOfThreads nr]\n"

func parseFlags(flags *flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

func main() {
	var (
		// required parameters
		relationshipsFile string //The file with is-a relationships between concepts.
		descriptionsFile  string //The file with concept descriptions.
		assignmentsFile   string //The file with patient code assignments.
		cohortsFile       string //The file with patient cohort labels.
		outputPath        string //The path where output files are written.
		// optional flags
		configFile      string
		depthMethod     string
		scorer          string
		positiveLabel   string
		weight          float64
		rarityThreshold float64
		minDepth        float64
		minScore        float64
		nConcepts       int
		root            int64
		name            string
		nrOfThreads     int
	)
	defaults := app.DefaultRunConfig()
	var flags flag.FlagSet
	// options for the snofs command
	flags.StringVar(&configFile, "config", "", "A yaml file with run parameters. Command line flags "+
		"override values from this file.")
	flags.StringVar(&depthMethod, "depthMethod", defaults.DepthMethod, "The method for computing "+
		"concept depths: absolute or relative.")
	flags.StringVar(&scorer, "scorer", defaults.Scorer, "The scoring function for ranking concepts: "+
		"difference, entropy, chi2, odds_ratio, or precision_deviation.")
	flags.StringVar(&positiveLabel, "positiveLabel", defaults.PositiveLabel, "The cohort label "+
		"treated as the positive class by the chi2 and odds_ratio scorers.")
	flags.Float64Var(&weight, "weight", defaults.Weight, "The depth weight used when ranking "+
		"concepts. 0 ranks purely by score.")
	flags.Float64Var(&rarityThreshold, "rarityThreshold", defaults.RarityThreshold, "The minimum "+
		"fraction of the population a concept must capture to be selectable.")
	flags.Float64Var(&minDepth, "minDepth", defaults.MinDepth, "The minimum depth a concept must "+
		"have to be selectable.")
	flags.Float64Var(&minScore, "minScore", defaults.MinScore, "The weighted score below which "+
		"selection stops.")
	flags.IntVar(&nConcepts, "nConcepts", defaults.NConcepts, "The maximum number of concepts to "+
		"select. 0 means unbounded.")
	flags.Int64Var(&root, "root", defaults.Root, "The concept ID to use as the ontology root. 0 "+
		"means detect the root automatically.")
	flags.StringVar(&name, "name", defaults.Name, "The name of the run. This is used to generate the "+
		"names of the output files.")
	flags.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads snofs uses.")
	// parse optional arguments
	parseFlags(&flags, 6, snofsHelp)
	// parse required arguments
	relationshipsFile = getFileName(os.Args[1], snofsHelp)
	descriptionsFile = getFileName(os.Args[2], snofsHelp)
	assignmentsFile = getFileName(os.Args[3], snofsHelp)
	cohortsFile = getFileName(os.Args[4], snofsHelp)
	outputPath, _ = filepath.Abs(getFileName(os.Args[5], snofsHelp))
	outputPath = outputPath + string(filepath.Separator)
	fmt.Println("Output path: ", outputPath)
	// create output directory
	err := os.MkdirAll(filepath.Dir(outputPath), 0700)
	if err != nil {
		panic(err)
	}
	// assemble the run configuration: config file values first, then command line overrides
	cfg := defaults
	if configFile != "" {
		cfg, err = app.LoadRunConfig(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	flagsSeen := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { flagsSeen[f.Name] = true })
	if flagsSeen["depthMethod"] {
		cfg.DepthMethod = depthMethod
	}
	if flagsSeen["scorer"] {
		cfg.Scorer = scorer
	}
	if flagsSeen["positiveLabel"] {
		cfg.PositiveLabel = positiveLabel
	}
	if flagsSeen["weight"] {
		cfg.Weight = weight
	}
	if flagsSeen["rarityThreshold"] {
		cfg.RarityThreshold = rarityThreshold
	}
	if flagsSeen["minDepth"] {
		cfg.MinDepth = minDepth
	}
	if flagsSeen["minScore"] {
		cfg.MinScore = minScore
	}
	if flagsSeen["nConcepts"] {
		cfg.NConcepts = nConcepts
	}
	if flagsSeen["root"] {
		cfg.Root = root
	}
	if flagsSeen["name"] {
		cfg.Name = name
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// build an output command line
	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ", relationshipsFile, " ", descriptionsFile, " ", assignmentsFile,
		" ", cohortsFile, " ", outputPath)
	fmt.Fprint(&command, " --depthMethod ", cfg.DepthMethod)
	fmt.Fprint(&command, " --scorer ", cfg.Scorer)
	fmt.Fprint(&command, " --positiveLabel ", cfg.PositiveLabel)
	fmt.Fprint(&command, " --weight ", cfg.Weight)
	fmt.Fprint(&command, " --rarityThreshold ", cfg.RarityThreshold)
	fmt.Fprint(&command, " --minDepth ", cfg.MinDepth)
	fmt.Fprint(&command, " --minScore ", cfg.MinScore)
	fmt.Fprint(&command, " --nConcepts ", cfg.NConcepts)
	if cfg.Root != 0 {
		fmt.Fprint(&command, " --root ", cfg.Root)
	}
	fmt.Fprint(&command, " --name ", cfg.Name)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nrOfThreads ", nrOfThreads)
	}
	// start execution
	log.Println(programMessage())
	log.Println("Executing command:\n", command.String())
	//1. Parse the ontology and population inputs
	input, err := app.ParseAnalysisData(relationshipsFile, descriptionsFile, assignmentsFile, cohortsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	//2. Compute the reachability index and concept depths
	reach := concept.BuildReachability(input.Ontology)
	if err := concept.ComputeDepths(input.Ontology, reach, cfg.DepthMethod, cfg.Root); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	//3. Propagate the patient sets up the hierarchy
	concept.PropagateSubsumption(input.Ontology, input.Direct, input.Labels)
	//4. Score and rank the concepts
	scorerFn, err := concept.ScorerByName(cfg.Scorer, cfg.PositiveLabel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	concept.ScoreConcepts(input.Ontology, scorerFn, input.Totals)
	concept.WeightScores(input.Ontology, cfg.Weight)
	//5. Select a non-redundant concept set
	totalPatients := 0
	for _, n := range input.Totals {
		totalPatients += n
	}
	params := concept.SelectionParameters{
		MinScore:        cfg.MinScore,
		MinDepth:        cfg.MinDepth,
		RarityThreshold: cfg.RarityThreshold,
		MaxConcepts:     cfg.NConcepts,
		TotalPatients:   totalPatients,
	}
	selected := concept.SelectConcepts(input.Ontology, reach, params)
	//6. Print the results to file
	concept.PrintConceptsToFile(input.Ontology, selected, input.Totals, cfg.PositiveLabel, cfg.Name, outputPath)
	fmt.Println("Selected concepts: ")
	for i := 0; i < utils.MinInt(len(selected), 100); i++ {
		concept.PrintSelectedConcept(input.Ontology, selected[i])
	}
}
