// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package builtin embeds the default detection rule set into the
// binary. Embedding means the core rules cannot drift from the code
// that evaluates them, and operators can fingerprint the exact rule
// set a binary carries (see Checksum).
package builtin

import (
	"crypto/sha256"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hackvet/hackvet/services/rule_engine"
)

// defaultRules is the raw embedded rule file.
//
//go:embed default_rules.yaml
var defaultRules []byte

// ruleFile mirrors the embedded YAML document.
type ruleFile struct {
	Rules []rule_engine.RuleSpec `yaml:"rules"`
}

// Specs parses the embedded rule set into declarations ready for
// registration. The embedded file ships with the binary, so a parse
// failure is a build defect, not a runtime condition; it is still
// returned rather than panicking so callers control the exit path.
func Specs() ([]rule_engine.RuleSpec, error) {
	var file ruleFile
	if err := yaml.Unmarshal(defaultRules, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rule file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("embedded rule file declares no rules")
	}
	return file.Rules, nil
}

// Raw returns the embedded rule file bytes, for dumping and
// fingerprint verification.
func Raw() []byte {
	out := make([]byte, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// Checksum returns the sha256 fingerprint of the embedded rule file so
// operators can verify which rule set a binary carries.
func Checksum() string {
	sum := sha256.Sum256(defaultRules)
	return fmt.Sprintf("sha256:%x", sum)
}
