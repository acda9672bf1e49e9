// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import (
	"encoding/json"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Severity ranks how strongly a rule match suggests non-compliant or
// AI-generated content. It is a heuristic confidence level, not ground
// truth.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// UnmarshalYAML enforces the closed severity set when rules are loaded
// from YAML rule files.
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := Severity(raw)
	if !incoming.Valid() {
		return fmt.Errorf("invalid value for severity: %q", incoming)
	}
	*s = incoming
	return nil
}

// UnmarshalJSON enforces the closed severity set when rules are loaded
// from JSON rule files.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	incoming := Severity(raw)
	if !incoming.Valid() {
		return fmt.Errorf("invalid value for severity: %q", incoming)
	}
	*s = incoming
	return nil
}

// RuleSource records which party contributed a rule to a registry.
// Sources participate in the name-collision policy: a later
// registration from any source replaces an earlier rule of the same
// name, and unloading a plugin removes only the rules it still owns.
type RuleSource string

const (
	SourceBuiltin RuleSource = "builtin"
	SourceCustom  RuleSource = "custom"
)

// PluginSource returns the rule source tag for a named plugin.
func PluginSource(pluginName string) RuleSource {
	return RuleSource("plugin:" + pluginName)
}

// RuleSpec is the declaration shape shared by builtin rule files,
// custom rules and plugin rule registrations.
//
// Severity is optional and defaults to medium, matching the contract
// exposed to plugin authors.
type RuleSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Description string   `yaml:"description" json:"description"`
	Severity    Severity `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// Rule is an immutable, compiled detection rule.
//
// A Rule can only be obtained through NewRule, which compiles and
// validates the pattern. Construction is the single failure point for
// malformed patterns; a Rule held by a registry is always usable.
type Rule struct {
	name        string
	pattern     *regexp.Regexp
	rawPattern  string
	description string
	severity    Severity
	source      RuleSource
}

// NewRule compiles spec into a Rule owned by source.
//
// Returns a *RuleDefinitionError if the name is empty, the severity is
// unknown, or the pattern does not compile. An unset severity defaults
// to medium.
func NewRule(spec RuleSpec, source RuleSource) (Rule, error) {
	if spec.Name == "" {
		return Rule{}, &RuleDefinitionError{Name: spec.Name, Err: fmt.Errorf("rule name must not be empty")}
	}
	severity := spec.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	if !severity.Valid() {
		return Rule{}, &RuleDefinitionError{Name: spec.Name, Err: fmt.Errorf("invalid severity %q", spec.Severity)}
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return Rule{}, &RuleDefinitionError{Name: spec.Name, Err: fmt.Errorf("failed to compile pattern %q: %w", spec.Pattern, err)}
	}
	return Rule{
		name:        spec.Name,
		pattern:     re,
		rawPattern:  spec.Pattern,
		description: spec.Description,
		severity:    severity,
		source:      source,
	}, nil
}

// Name returns the registry-unique rule name.
func (r Rule) Name() string { return r.name }

// Pattern returns the uncompiled pattern text.
func (r Rule) Pattern() string { return r.rawPattern }

// Description returns the human-readable explanation attached to
// findings produced by this rule.
func (r Rule) Description() string { return r.description }

// Severity returns the rule's severity level.
func (r Rule) Severity() Severity { return r.severity }

// Source returns the party that contributed the current registration
// of this rule.
func (r Rule) Source() RuleSource { return r.source }

// Spec returns the declaration the rule was built from, with the
// effective severity filled in.
func (r Rule) Spec() RuleSpec {
	return RuleSpec{
		Name:        r.name,
		Pattern:     r.rawPattern,
		Description: r.description,
		Severity:    r.severity,
	}
}

// Finding is one concrete rule or plugin match against submitted
// content. Findings are produced fresh per evaluation and owned by the
// caller; the engine keeps no reference to them.
type Finding struct {
	// Rule is the name of the rule (or synthetic plugin marker) that
	// produced the finding.
	Rule string `json:"rule"`

	// Description explains what the match means.
	Description string `json:"description"`

	// Severity is copied from the producing rule.
	Severity Severity `json:"severity"`

	// File is the corpus path the content came from, when known.
	File string `json:"file,omitempty"`

	// Line is the best-effort 1-based line of the match start.
	Line int `json:"line,omitempty"`

	// Offset is the byte offset of the match start within the content.
	Offset int `json:"offset"`

	// Excerpt is the matched text, truncated for display.
	Excerpt string `json:"excerpt,omitempty"`
}

// excerptLimit bounds how much matched text a finding carries.
const excerptLimit = 50

// truncateExcerpt shortens matched text for report display.
func truncateExcerpt(match string) string {
	if len(match) > excerptLimit {
		return match[:excerptLimit] + "..."
	}
	return match
}
