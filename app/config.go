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
	"io/ioutil"
	"snofs/concept"

	"gopkg.in/yaml.v3"
)

// RunConfig holds the recognized analysis options of one selection run. The options can be set on the command line or
// collected in a yaml file passed with --config; command line flags that are explicitly set win over file values.
type RunConfig struct {
	Name            string  `yaml:"name"`
	DepthMethod     string  `yaml:"depth_method"`     //absolute or relative
	Scorer          string  `yaml:"scorer"`           //difference, entropy, chi2, odds_ratio, or precision_deviation
	PositiveLabel   string  `yaml:"positive_label"`   //positive cohort label for the contingency-table scorers
	Weight          float64 `yaml:"weight"`           //depth weighting multiplier, 0 disables
	RarityThreshold float64 `yaml:"rarity_threshold"` //minimum captured fraction of the population
	MinDepth        float64 `yaml:"min_depth"`        //minimum normalized depth
	MinScore        float64 `yaml:"min_score"`        //minimum weighted score
	NConcepts       int     `yaml:"n_concepts"`       //maximum number of selected concepts, <= 0 for unbounded
	Root            int64   `yaml:"root"`             //explicit root concept for absolute depth, 0 to auto-detect
}

// DefaultRunConfig returns the default analysis options.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Name:            "run1",
		DepthMethod:     concept.AbsoluteDepth,
		Scorer:          concept.DifferenceScorerName,
		PositiveLabel:   "1",
		Weight:          0,
		RarityThreshold: 0.05,
		MinDepth:        0.1,
		MinScore:        0,
		NConcepts:       0,
		Root:            0,
	}
}

// LoadRunConfig reads analysis options from a yaml file on top of the defaults.
func LoadRunConfig(file string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	bytes, err := ioutil.ReadFile(file)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return cfg, err
	}
	fmt.Println("Loaded run configuration from: ", file)
	return cfg, nil
}

// Validate fails fast on invalid options so a run never starts with a configuration it would only reject halfway
// through the pipeline.
func (cfg RunConfig) Validate() error {
	if cfg.DepthMethod != concept.AbsoluteDepth && cfg.DepthMethod != concept.RelativeDepth {
		return &concept.ConfigurationError{Parameter: "depthMethod", Value: cfg.DepthMethod}
	}
	if _, err := concept.ScorerByName(cfg.Scorer, cfg.PositiveLabel); err != nil {
		return err
	}
	if cfg.Weight < 0 {
		return &concept.ConfigurationError{Parameter: "weight", Value: fmt.Sprint(cfg.Weight)}
	}
	if cfg.RarityThreshold < 0 || cfg.RarityThreshold > 1 {
		return &concept.ConfigurationError{Parameter: "rarityThreshold", Value: fmt.Sprint(cfg.RarityThreshold)}
	}
	if cfg.MinDepth < 0 || cfg.MinDepth > 1 {
		return &concept.ConfigurationError{Parameter: "minDepth", Value: fmt.Sprint(cfg.MinDepth)}
	}
	return nil
}
