// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterIdempotent(t *testing.T) {
	engine := NewEngine()
	spec := RuleSpec{Name: "dup", Pattern: `x`, Severity: SeverityLow}

	if err := engine.Register(spec); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := engine.Register(spec); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	if got := len(engine.Rules()); got != 1 {
		t.Fatalf("registry has %d rules after duplicate registration, want 1", got)
	}
}

func TestRegisterReplaceKeepsPosition(t *testing.T) {
	engine := NewEngine()
	for _, name := range []string{"first", "second", "third"} {
		if err := engine.Register(RuleSpec{Name: name, Pattern: name}); err != nil {
			t.Fatal(err)
		}
	}

	// Shadow the middle rule; its registry position must not move.
	if err := engine.Register(RuleSpec{Name: "second", Pattern: `replaced`, Severity: SeverityHigh}); err != nil {
		t.Fatal(err)
	}

	rules := engine.Rules()
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(rules))
	}
	if rules[1].Name() != "second" || rules[1].Pattern() != "replaced" {
		t.Errorf("position 1 = %s/%s, want second/replaced", rules[1].Name(), rules[1].Pattern())
	}
}

func TestRegisterFromStopsAtFirstBadSpec(t *testing.T) {
	engine := NewEngine()
	err := engine.RegisterFrom(SourceCustom,
		RuleSpec{Name: "good", Pattern: `a`},
		RuleSpec{Name: "bad", Pattern: `a(`},
		RuleSpec{Name: "never", Pattern: `b`},
	)
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
	var defErr *RuleDefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("error type = %T, want *RuleDefinitionError", err)
	}

	rules := engine.Rules()
	if len(rules) != 1 || rules[0].Name() != "good" {
		t.Errorf("registry after partial failure = %v, want only %q", ruleNames(rules), "good")
	}
}

func TestRemoveRule(t *testing.T) {
	engine := NewEngine()
	engine.Register(RuleSpec{Name: "keep", Pattern: `a`})
	engine.Register(RuleSpec{Name: "drop", Pattern: `b`})

	if !engine.RemoveRule("drop") {
		t.Fatal("RemoveRule returned false for existing rule")
	}
	if engine.RemoveRule("drop") {
		t.Fatal("RemoveRule returned true for already-removed rule")
	}
	if _, ok := engine.Rule("drop"); ok {
		t.Error("removed rule still resolvable")
	}
	if _, ok := engine.Rule("keep"); !ok {
		t.Error("unrelated rule lost by removal")
	}
}

// countingPlugin records lifecycle calls for swap/unload assertions.
type countingPlugin struct {
	name     string
	initErr  error
	cleanups atomic.Int32
	specs    []RuleSpec
	check    func(string) ([]Finding, error)
}

func (p *countingPlugin) Name() string              { return p.name }
func (p *countingPlugin) Initialize() error         { return p.initErr }
func (p *countingPlugin) RegisterRules() []RuleSpec { return p.specs }
func (p *countingPlugin) Cleanup() error {
	p.cleanups.Add(1)
	return nil
}
func (p *countingPlugin) CheckContent(content string) ([]Finding, error) {
	if p.check == nil {
		return nil, nil
	}
	return p.check(content)
}

func TestPluginHotSwapCleansUpOldInstanceOnce(t *testing.T) {
	engine := NewEngine()

	old := &countingPlugin{name: "swap", specs: []RuleSpec{{Name: "swap_rule", Pattern: `old`}}}
	if err := engine.InstallPlugin(old); err != nil {
		t.Fatalf("first install failed: %v", err)
	}

	replacement := &countingPlugin{name: "swap", specs: []RuleSpec{{Name: "swap_rule", Pattern: `new`}}}
	if err := engine.InstallPlugin(replacement); err != nil {
		t.Fatalf("hot swap failed: %v", err)
	}

	if got := old.cleanups.Load(); got != 1 {
		t.Errorf("old instance Cleanup ran %d times, want exactly 1", got)
	}
	if got := replacement.cleanups.Load(); got != 0 {
		t.Errorf("new instance Cleanup ran %d times, want 0", got)
	}

	rule, ok := engine.Rule("swap_rule")
	if !ok || rule.Pattern() != "new" {
		t.Errorf("rule after swap = %v/%v, want swap_rule/new", ok, rule.Pattern())
	}
	if got := len(engine.Plugins()); got != 1 {
		t.Errorf("plugin registry has %d entries after swap, want 1", got)
	}
}

func TestPluginInitFailureRegistersNothing(t *testing.T) {
	engine := NewEngine()
	engine.Register(RuleSpec{Name: "preexisting", Pattern: `a`})

	bad := &countingPlugin{
		name:    "broken",
		initErr: fmt.Errorf("refusing to start"),
		specs:   []RuleSpec{{Name: "never_registered", Pattern: `b`}},
	}
	err := engine.InstallPlugin(bad)
	if err == nil {
		t.Fatal("expected PluginInitError")
	}
	var initErr *PluginInitError
	if !errors.As(err, &initErr) {
		t.Fatalf("error type = %T, want *PluginInitError", err)
	}

	if got := len(engine.Rules()); got != 1 {
		t.Errorf("registry has %d rules after failed load, want 1", got)
	}
	if got := len(engine.Plugins()); got != 0 {
		t.Errorf("plugin registry has %d entries after failed load, want 0", got)
	}
}

func TestPluginInvalidRuleAbortsWholeLoad(t *testing.T) {
	engine := NewEngine()
	bad := &countingPlugin{
		name: "halfbad",
		specs: []RuleSpec{
			{Name: "fine", Pattern: `a`},
			{Name: "broken", Pattern: `a(`},
		},
	}
	if err := engine.InstallPlugin(bad); err == nil {
		t.Fatal("expected load failure for invalid contributed rule")
	}
	if got := len(engine.Rules()); got != 0 {
		t.Errorf("all-or-nothing violated: %d rules registered", got)
	}
}

func TestUnloadPluginRespectsOverrides(t *testing.T) {
	engine := NewEngine()
	p := &countingPlugin{name: "owner", specs: []RuleSpec{
		{Name: "stays", Pattern: `a`},
		{Name: "goes", Pattern: `b`},
	}}
	if err := engine.InstallPlugin(p); err != nil {
		t.Fatal(err)
	}

	// A later custom registration takes ownership of "stays".
	if err := engine.Register(RuleSpec{Name: "stays", Pattern: `a2`}); err != nil {
		t.Fatal(err)
	}

	if err := engine.UnloadPlugin("owner"); err != nil {
		t.Fatal(err)
	}
	if got := p.cleanups.Load(); got != 1 {
		t.Errorf("Cleanup ran %d times, want 1", got)
	}
	if _, ok := engine.Rule("goes"); ok {
		t.Error("plugin-owned rule survived unload")
	}
	rule, ok := engine.Rule("stays")
	if !ok {
		t.Fatal("overridden rule was removed by unload")
	}
	if rule.Source() != SourceCustom {
		t.Errorf("surviving rule source = %q, want custom", rule.Source())
	}

	if err := engine.UnloadPlugin("owner"); err == nil {
		t.Error("unloading twice should fail")
	}
}

func TestEvaluateFaultContainment(t *testing.T) {
	tests := []struct {
		name  string
		check func(string) ([]Finding, error)
	}{
		{"error", func(string) ([]Finding, error) { return nil, fmt.Errorf("backend down") }},
		{"panic", func(string) ([]Finding, error) { panic("boom") }},
		{"timeout", func(string) ([]Finding, error) {
			time.Sleep(time.Second)
			return nil, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(WithPluginBudget(50 * time.Millisecond))
			engine.Register(RuleSpec{Name: "pattern_rule", Pattern: `needle`, Severity: SeverityHigh})

			faulty := &countingPlugin{name: "faulty_" + tt.name, check: tt.check}
			healthy := &countingPlugin{name: "healthy", check: func(string) ([]Finding, error) {
				return []Finding{{Rule: "healthy_check", Severity: SeverityLow}}, nil
			}}
			if err := engine.InstallPlugin(faulty); err != nil {
				t.Fatal(err)
			}
			if err := engine.InstallPlugin(healthy); err != nil {
				t.Fatal(err)
			}

			findings := engine.Evaluate("a needle in a haystack")

			var synthetic, pattern, healthyHits int
			for _, f := range findings {
				switch f.Rule {
				case "plugin_error":
					synthetic++
					if f.Severity != SeverityLow {
						t.Errorf("synthetic finding severity = %q, want low", f.Severity)
					}
					if !strings.Contains(f.Description, faulty.name) {
						t.Errorf("synthetic finding does not name the plugin: %q", f.Description)
					}
				case "pattern_rule":
					pattern++
				case "healthy_check":
					healthyHits++
				}
			}
			if synthetic != 1 {
				t.Errorf("got %d synthetic findings, want exactly 1", synthetic)
			}
			if pattern != 1 || healthyHits != 1 {
				t.Errorf("other results disturbed: pattern=%d healthy=%d, want 1/1", pattern, healthyHits)
			}
		})
	}
}

func TestEvaluateOrdering(t *testing.T) {
	engine := NewEngine()
	engine.Register(RuleSpec{Name: "r1", Pattern: `one`})
	engine.Register(RuleSpec{Name: "r2", Pattern: `two`})
	p := &countingPlugin{name: "p", check: func(string) ([]Finding, error) {
		return []Finding{{Rule: "plugin_finding", Severity: SeverityLow}}, nil
	}}
	if err := engine.InstallPlugin(p); err != nil {
		t.Fatal(err)
	}

	findings := engine.Evaluate("one two")
	want := []string{"r1", "r2", "plugin_finding"}
	if got := findingNames(findings); !equalStrings(got, want) {
		t.Errorf("finding order = %v, want %v", got, want)
	}
}

func TestEvaluateNormalizesPluginFindings(t *testing.T) {
	engine := NewEngine()
	p := &countingPlugin{name: "procedural", check: func(string) ([]Finding, error) {
		return []Finding{
			{Rule: "custom_hit"},                          // no severity declared
			{Rule: "odd_hit", Severity: Severity("wild")}, // unknown severity
			{Severity: SeverityHigh},                      // no rule name
		}, nil
	}}
	if err := engine.InstallPlugin(p); err != nil {
		t.Fatal(err)
	}

	findings := engine.Evaluate("anything")
	if len(findings) != 3 {
		t.Fatalf("got %d findings, want 3", len(findings))
	}
	if findings[0].Severity != SeverityMedium {
		t.Errorf("undeclared severity = %q, want the medium default", findings[0].Severity)
	}
	if findings[1].Severity != SeverityLow {
		t.Errorf("unknown severity = %q, want clamped to low", findings[1].Severity)
	}
	if findings[2].Rule != string(PluginSource("procedural")) {
		t.Errorf("unnamed finding rule = %q, want %q", findings[2].Rule, PluginSource("procedural"))
	}

	// Every plugin finding must carry score weight: adding any finding
	// strictly increases the aggregate.
	scorer, err := NewScorer(nil)
	if err != nil {
		t.Fatal(err)
	}
	prev := 0.0
	for i := range findings {
		score := scorer.Score(findings[:i+1])
		if score <= prev {
			t.Fatalf("score did not increase at finding %d: %v <= %v", i, score, prev)
		}
		prev = score
	}
}

func TestEmptyRegistryPasses(t *testing.T) {
	engine := NewEngine()
	findings := engine.Evaluate("any content at all")
	if len(findings) != 0 {
		t.Fatalf("empty registry produced findings: %+v", findings)
	}

	scorer, err := NewScorer(nil)
	if err != nil {
		t.Fatal(err)
	}
	score := scorer.Score(findings)
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
	decision := scorer.Decide(score, findings, DecisionConfig{AIThreshold: 0.5})
	if !decision.Passed {
		t.Errorf("decision failed with empty findings: %+v", decision.Reasons)
	}
}

func TestSingleHighFindingScoreAndThreshold(t *testing.T) {
	engine := NewEngine()
	if err := engine.Register(RuleSpec{Name: "todo_ai", Pattern: `AI-generated`, Severity: SeverityHigh}); err != nil {
		t.Fatal(err)
	}

	findings := engine.Evaluate("// This file is AI-generated, do not edit")
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}

	scorer, err := NewScorer(nil)
	if err != nil {
		t.Fatal(err)
	}
	score := scorer.Score(findings)
	want := 1 - math.Exp(-0.35)
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}

	decision := scorer.Decide(score, findings, DecisionConfig{AIThreshold: 0.2})
	if decision.Passed {
		t.Error("score above threshold should fail")
	}
	if len(decision.Reasons) != 1 {
		t.Errorf("got %d reasons, want 1: %v", len(decision.Reasons), decision.Reasons)
	}
}

func TestLoadPluginBadFileLeavesRegistryUnchanged(t *testing.T) {
	engine := NewEngine()
	engine.Register(RuleSpec{Name: "existing", Pattern: `a`})

	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("- name: bad\n  pattern: 'a('\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := engine.LoadPlugin(path)
	if err == nil {
		t.Fatal("expected load failure")
	}
	var loadErr *PluginLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error type = %T, want *PluginLoadError", err)
	}
	if got := len(engine.Rules()); got != 1 {
		t.Errorf("registry has %d rules after failed load, want 1", got)
	}
	if got := len(engine.Plugins()); got != 0 {
		t.Errorf("plugin registry has %d entries after failed load, want 0", got)
	}
}

func TestLoadDeclarativePluginEndToEnd(t *testing.T) {
	engine := NewEngine()

	dir := t.TempDir()
	path := filepath.Join(dir, "team_rules.yaml")
	content := "- name: team_marker\n  pattern: 'TEAM_[A-Z]+'\n  description: team marker\n  severity: high\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := engine.LoadPlugin(path); err != nil {
		t.Fatalf("LoadPlugin failed: %v", err)
	}

	plugins := engine.Plugins()
	if len(plugins) != 1 || plugins[0].Name != "team_rules" {
		t.Fatalf("plugins = %+v, want one named team_rules", plugins)
	}
	if plugins[0].HasContentCheck {
		t.Error("declarative plugin should not report a content check")
	}

	rule, ok := engine.Rule("team_marker")
	if !ok {
		t.Fatal("declared rule not registered")
	}
	if rule.Source() != PluginSource("team_rules") {
		t.Errorf("rule source = %q, want plugin:team_rules", rule.Source())
	}

	findings := engine.Evaluate("left by TEAM_ALPHA yesterday")
	if len(findings) != 1 || findings[0].Rule != "team_marker" {
		t.Fatalf("findings = %+v, want one team_marker match", findings)
	}
}

func ruleNames(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name()
	}
	return out
}

func findingNames(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Rule
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
