// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import "strings"

// MatchRules scans content with every rule and returns one finding per
// non-overlapping match.
//
// # Determinism
//
// The output order is fixed: rules in the order given, and within a
// rule, matches in scan order. Two calls with the same rules and
// content produce identical finding sequences.
//
// # Pattern semantics
//
// Matching is case-sensitive and single-line by default. A rule that
// needs multiline or case-insensitive behavior must opt in through its
// own pattern flags ((?m), (?i), (?s)); the matcher never alters the
// compiled semantics.
func MatchRules(rules []Rule, content string) []Finding {
	if content == "" {
		return nil
	}

	var findings []Finding
	for _, rule := range rules {
		locs := rule.pattern.FindAllStringIndex(content, -1)
		for _, loc := range locs {
			findings = append(findings, Finding{
				Rule:        rule.name,
				Description: rule.description,
				Severity:    rule.severity,
				Line:        lineAt(content, loc[0]),
				Offset:      loc[0],
				Excerpt:     truncateExcerpt(content[loc[0]:loc[1]]),
			})
		}
	}
	return findings
}

// lineAt computes the best-effort 1-based line number of a byte offset.
func lineAt(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}
