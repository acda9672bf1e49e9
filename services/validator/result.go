// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hackvet/hackvet/services/devpost"
	"github.com/hackvet/hackvet/services/rule_engine"
)

// ProvenanceFacts are the source-control facts the validator gathered
// about a submission's authorship window.
type ProvenanceFacts struct {
	// Available is false when commit history could not be analyzed.
	// The remaining counters are zero in that case.
	Available bool `json:"available"`

	RepoName  string    `json:"repo_name"`
	CreatedAt time.Time `json:"created_at"`
	PushedAt  time.Time `json:"pushed_at"`

	CreatedDuringWindow bool `json:"created_during_window"`
	TotalCommits        int  `json:"total_commits"`
	CommitsDuringWindow int  `json:"commits_during_window"`
}

// ValidationResult is the terminal outcome of validating one
// submission. It is constructed once by ValidateProject and never
// mutated afterwards; Passed is derived, not settable.
type ValidationResult struct {
	RunID      string `json:"run_id"`
	RepoURL    string `json:"repo_url"`
	DevpostURL string `json:"devpost_url,omitempty"`

	Passed       bool    `json:"passed"`
	AIScore      float64 `json:"ai_score"`
	ProvenanceOK bool    `json:"provenance_ok"`

	// Warnings are ordered: provenance warnings first, then engine
	// warnings in finding order, then compliance and decision reasons.
	Warnings []string `json:"warnings"`

	// Reasons are the failure reasons behind Passed == false. Empty on
	// a passing result.
	Reasons []string `json:"failure_reasons,omitempty"`

	Findings []rule_engine.Finding `json:"findings"`

	Provenance ProvenanceFacts     `json:"provenance"`
	Devpost    *devpost.Submission `json:"devpost,omitempty"`

	FilesScanned int       `json:"files_scanned"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// HighSeverityCount returns how many findings are high severity.
func (r *ValidationResult) HighSeverityCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == rule_engine.SeverityHigh {
			n++
		}
	}
	return n
}

// SaveJSON writes the result as indented JSON to path.
func (r *ValidationResult) SaveJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding validation result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing validation result to %s: %w", path, err)
	}
	return nil
}
