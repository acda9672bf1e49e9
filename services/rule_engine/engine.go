// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rule_engine implements the detection core of hackvet: an
// ordered registry of compiled pattern rules plus runtime-loaded
// plugins, evaluated deterministically over submission content.
//
// # Ownership
//
// An Engine instance exclusively owns its rule registry and loaded
// plugin set. There is no package-level registry; callers construct
// engines and may run several side by side (the test suites do).
//
// # Concurrency
//
// Registry mutations (Register, LoadPlugin, UnloadPlugin, RemoveRule)
// take an exclusive lock. Evaluate snapshots the registry under a read
// lock and then runs lock-free, so concurrent evaluations are safe and
// a plugin hot-swap never races an in-flight evaluation.
package rule_engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/hackvet/hackvet/pkg/logging"
)

// DefaultPluginBudget bounds a single plugin content check. A plugin
// that exceeds it is treated exactly like one that returned an error.
const DefaultPluginBudget = 5 * time.Second

// syntheticRuleName tags findings the engine fabricates when a plugin
// content check fails, times out or panics.
const syntheticRuleName = "plugin_error"

// Engine owns the rule registry and the loaded plugin set.
type Engine struct {
	mu          sync.RWMutex
	rules       []Rule         // registration order; replaced in place on name collision
	ruleIndex   map[string]int // rule name -> position in rules
	plugins     []*registeredPlugin
	pluginIndex map[string]int

	loader *Loader
	budget time.Duration
	log    *logging.Logger
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithPluginBudget overrides the wall-clock budget applied to each
// plugin content check during evaluation.
func WithPluginBudget(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.budget = d
		}
	}
}

// WithLogger attaches a structured logger to the engine.
func WithLogger(log *logging.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine constructs an empty engine. Builtin or custom rules are
// added by the caller through RegisterFrom.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		ruleIndex:   make(map[string]int),
		pluginIndex: make(map[string]int),
		loader:      NewLoader(),
		budget:      DefaultPluginBudget,
		log:         logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces a caller-supplied rule by name. The call
// is idempotent: registering an identical declaration twice leaves the
// registry equivalent to registering it once.
func (e *Engine) Register(spec RuleSpec) error {
	return e.RegisterFrom(SourceCustom, spec)
}

// RegisterFrom adds or replaces rules under the given provenance tag.
// Registration stops at the first malformed declaration; rules before
// it stay registered.
func (e *Engine) RegisterFrom(source RuleSource, specs ...RuleSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, spec := range specs {
		rule, err := NewRule(spec, source)
		if err != nil {
			return err
		}
		e.registerLocked(rule)
	}
	return nil
}

// registerLocked installs a compiled rule. A name collision replaces
// the existing entry in place, preserving its registry position so
// evaluation order stays stable across shadowing; this is the
// documented last-write-wins policy, not an error.
func (e *Engine) registerLocked(rule Rule) {
	if pos, ok := e.ruleIndex[rule.name]; ok {
		e.rules[pos] = rule
		return
	}
	e.ruleIndex[rule.name] = len(e.rules)
	e.rules = append(e.rules, rule)
}

// Rules returns a snapshot of the registry in registration order.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Rule looks up a single rule by name.
func (e *Engine) Rule(name string) (Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, ok := e.ruleIndex[name]
	if !ok {
		return Rule{}, false
	}
	return e.rules[pos], true
}

// RemoveRule deletes a rule by name and reports whether it existed.
func (e *Engine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.ruleIndex[name]
	if !ok {
		return false
	}
	e.removeRuleAtLocked(pos)
	return true
}

// removeRuleAtLocked deletes the rule at pos and rebuilds the index
// for the entries that shifted.
func (e *Engine) removeRuleAtLocked(pos int) {
	name := e.rules[pos].name
	e.rules = append(e.rules[:pos], e.rules[pos+1:]...)
	delete(e.ruleIndex, name)
	for i := pos; i < len(e.rules); i++ {
		e.ruleIndex[e.rules[i].name] = i
	}
}

// PluginInfo describes a registered plugin for listings.
type PluginInfo struct {
	Name            string         `json:"name"`
	State           LifecycleState `json:"state"`
	Source          string         `json:"source"`
	HasContentCheck bool           `json:"has_content_check"`
}

// Plugins returns the loaded plugin set in load order.
func (e *Engine) Plugins() []PluginInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]PluginInfo, 0, len(e.plugins))
	for _, p := range e.plugins {
		out = append(out, PluginInfo{
			Name:            p.name,
			State:           p.state,
			Source:          p.source,
			HasContentCheck: p.hasCheck,
		})
	}
	return out
}

// LoadPlugin loads, initializes and registers the plugin at path.
//
// The operation is all-or-nothing: the plugin's rules are compiled and
// validated before anything is installed, so a failure at any step
// leaves the registry exactly as it was. Loading a plugin whose name
// matches an already-registered one is a hot swap, not an error: the
// old instance's Cleanup runs exactly once before the new instance
// becomes visible.
func (e *Engine) LoadPlugin(path string) error {
	p, err := e.loader.Load(path)
	if err != nil {
		return err
	}
	return e.registerPlugin(p, path)
}

// InstallPlugin registers an already-constructed plugin. It follows
// the same initialize/validate/swap sequence as LoadPlugin and exists
// for callers that build plugins in process.
func (e *Engine) InstallPlugin(p Plugin) error {
	return e.registerPlugin(p, "")
}

func (e *Engine) registerPlugin(p Plugin, path string) error {
	name := p.Name()
	if name == "" {
		return &PluginLoadError{Path: path, Reason: "plugin has no name"}
	}

	if err := p.Initialize(); err != nil {
		return &PluginInitError{Name: name, Err: err}
	}

	// Compile every contributed rule before touching the registry.
	source := PluginSource(name)
	specs := p.RegisterRules()
	compiled := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := NewRule(spec, source)
		if err != nil {
			return &PluginLoadError{Path: path, Reason: fmt.Sprintf("plugin %q contributed an invalid rule", name), Err: err}
		}
		compiled = append(compiled, rule)
	}

	record := &registeredPlugin{
		name:     name,
		impl:     p,
		hasCheck: hasContentCheck(p),
		state:    StateInitialized,
		source:   path,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if pos, ok := e.pluginIndex[name]; ok {
		old := e.plugins[pos]
		if err := old.impl.Cleanup(); err != nil {
			e.log.Warn("plugin cleanup failed during hot swap", "plugin", name, "error", err)
		}
		old.state = StateCleaned
		e.removePluginRulesLocked(source)
		// Keep the load-order slot so evaluation order is stable.
		e.plugins[pos] = record
	} else {
		e.pluginIndex[name] = len(e.plugins)
		e.plugins = append(e.plugins, record)
	}

	for _, rule := range compiled {
		e.registerLocked(rule)
	}

	e.log.Info("plugin registered",
		"plugin", name,
		"rules", len(compiled),
		"content_check", record.hasCheck,
	)
	return nil
}

// UnloadPlugin runs the plugin's Cleanup and removes it together with
// the rules it still owns. Rules the plugin once contributed but that
// were since overridden by another source carry that newer source's
// tag and therefore survive.
func (e *Engine) UnloadPlugin(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.pluginIndex[name]
	if !ok {
		return fmt.Errorf("plugin %q is not loaded", name)
	}
	p := e.plugins[pos]
	if err := p.impl.Cleanup(); err != nil {
		e.log.Warn("plugin cleanup failed during unload", "plugin", name, "error", err)
	}
	p.state = StateCleaned

	e.removePluginRulesLocked(PluginSource(name))

	e.plugins = append(e.plugins[:pos], e.plugins[pos+1:]...)
	delete(e.pluginIndex, name)
	for i := pos; i < len(e.plugins); i++ {
		e.pluginIndex[e.plugins[i].name] = i
	}
	return nil
}

// removePluginRulesLocked drops every rule still owned by source.
func (e *Engine) removePluginRulesLocked(source RuleSource) {
	for i := len(e.rules) - 1; i >= 0; i-- {
		if e.rules[i].source == source {
			e.removeRuleAtLocked(i)
		}
	}
}

// Evaluate runs the full registry and every plugin content check over
// content and returns the combined findings.
//
// The registry is snapshotted up front, so the sequence is stable even
// if another goroutine mutates the engine mid-run. Pattern findings
// come first in registration order, then plugin findings in plugin
// load order. A plugin whose check errors, panics or exceeds the
// budget contributes a single synthetic low-severity finding naming it
// and never disturbs the other results.
func (e *Engine) Evaluate(content string) []Finding {
	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	checkers := make([]*registeredPlugin, 0, len(e.plugins))
	for _, p := range e.plugins {
		if p.hasCheck {
			checkers = append(checkers, p)
		}
	}
	budget := e.budget
	e.mu.RUnlock()

	findings := MatchRules(rules, content)

	for _, p := range checkers {
		pluginFindings, err := runContentCheck(p.impl, content, budget)
		if err != nil {
			rtErr := &PluginRuntimeError{Plugin: p.name, Err: err}
			e.log.Warn("plugin content check recovered", "plugin", p.name, "error", err)
			findings = append(findings, Finding{
				Rule:        syntheticRuleName,
				Description: rtErr.Error(),
				Severity:    SeverityLow,
			})
			continue
		}
		for _, f := range pluginFindings {
			findings = append(findings, normalizePluginFinding(p.name, f))
		}
	}
	return findings
}

// normalizePluginFinding brings a plugin-returned finding onto the
// registry's terms: an empty severity gets the same medium default a
// rule declaration gets, an unknown one is clamped to low, and an
// empty rule name is replaced so the finding stays attributable. Every
// finding must carry a scoreable severity or it would silently drop
// out of the aggregate score.
func normalizePluginFinding(pluginName string, f Finding) Finding {
	if f.Severity == "" {
		f.Severity = SeverityMedium
	} else if !f.Severity.Valid() {
		f.Severity = SeverityLow
	}
	if f.Rule == "" {
		f.Rule = string(PluginSource(pluginName))
	}
	return f
}

// runContentCheck invokes one plugin check under a wall-clock budget,
// converting panics into errors. On timeout the goroutine is abandoned
// (plugin code takes no context), which is why the result channel is
// buffered.
func runContentCheck(p Plugin, content string, budget time.Duration) ([]Finding, error) {
	type checkResult struct {
		findings []Finding
		err      error
	}
	ch := make(chan checkResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- checkResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		findings, err := p.CheckContent(content)
		ch <- checkResult{findings: findings, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.findings, res.err
	case <-timer.C:
		return nil, fmt.Errorf("content check exceeded %s budget", budget)
	}
}
