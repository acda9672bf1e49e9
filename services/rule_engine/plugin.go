// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

// Plugin is the capability interface every loaded plugin is normalized
// into, regardless of the shape it was authored in.
//
// Plugins run with full process privilege; fault containment during
// evaluation (per-call recover and wall-clock budget) is the only
// isolation applied. Operators must treat plugin sources as trusted.
type Plugin interface {
	// Name identifies the plugin within a session. Loading another
	// plugin with the same name hot-swaps this one.
	Name() string

	// Initialize is invoked exactly once, immediately after load.
	// A non-nil error aborts the load; nothing gets registered.
	Initialize() error

	// RegisterRules returns the rule declarations the plugin
	// contributes to the registry.
	RegisterRules() []RuleSpec

	// CheckContent runs the plugin's procedural matcher, if any.
	// Implementations without custom logic return (nil, nil).
	CheckContent(content string) ([]Finding, error)

	// Cleanup releases plugin resources. Called exactly once, when the
	// plugin is unloaded or replaced by a newer load of the same name.
	Cleanup() error
}

// ContentChecker is implemented by plugins that carry a procedural
// matcher. The engine only invokes CheckContent on plugins whose
// HasContentCheck reports true, so rule-only plugins cost nothing at
// evaluation time.
type ContentChecker interface {
	HasContentCheck() bool
}

// LifecycleState tracks a registered plugin through its session.
type LifecycleState string

const (
	StateLoaded      LifecycleState = "loaded"
	StateInitialized LifecycleState = "initialized"
	StateFailed      LifecycleState = "failed"
	StateCleaned     LifecycleState = "cleaned"
)

// FunctionPlugin adapts a bundle of loose functions into the Plugin
// interface. It is the normalized form of both declarative rule files
// (rules only) and function-shaped shared objects.
type FunctionPlugin struct {
	// PluginName is the session-unique plugin name, typically derived
	// from the source file name.
	PluginName string

	// Rules produces the plugin's rule declarations. Required.
	Rules func() []RuleSpec

	// Check is the optional procedural matcher.
	Check func(content string) ([]Finding, error)
}

func (p *FunctionPlugin) Name() string { return p.PluginName }

func (p *FunctionPlugin) Initialize() error { return nil }

func (p *FunctionPlugin) RegisterRules() []RuleSpec {
	if p.Rules == nil {
		return nil
	}
	return p.Rules()
}

func (p *FunctionPlugin) CheckContent(content string) ([]Finding, error) {
	if p.Check == nil {
		return nil, nil
	}
	return p.Check(content)
}

func (p *FunctionPlugin) Cleanup() error { return nil }

func (p *FunctionPlugin) HasContentCheck() bool { return p.Check != nil }

var (
	_ Plugin         = (*FunctionPlugin)(nil)
	_ ContentChecker = (*FunctionPlugin)(nil)
)

// hasContentCheck reports whether p carries a usable procedural
// matcher. Object plugins implement the full interface, so they are
// assumed to have one unless they say otherwise via ContentChecker.
func hasContentCheck(p Plugin) bool {
	if cc, ok := p.(ContentChecker); ok {
		return cc.HasContentCheck()
	}
	return true
}

// registeredPlugin is the engine's bookkeeping record for a loaded
// plugin.
type registeredPlugin struct {
	name     string
	impl     Plugin
	hasCheck bool
	state    LifecycleState
	source   string // path the plugin was loaded from
}
