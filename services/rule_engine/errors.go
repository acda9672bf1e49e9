// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import "fmt"

// RuleDefinitionError reports a malformed rule at registration time.
// It is fatal to that registration only, never to the engine.
type RuleDefinitionError struct {
	Name string
	Err  error
}

func (e *RuleDefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid rule definition: %v", e.Err)
	}
	return fmt.Sprintf("invalid rule definition %q: %v", e.Name, e.Err)
}

func (e *RuleDefinitionError) Unwrap() error { return e.Err }

// PluginLoadError reports an unreadable or unrecognized plugin source.
// It is fatal to that load call only; the registry is left untouched.
type PluginLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PluginLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load plugin %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load plugin %q: %s", e.Path, e.Reason)
}

func (e *PluginLoadError) Unwrap() error { return e.Err }

// PluginInitError reports that a plugin's own setup failed. The load
// is aborted and nothing is registered.
type PluginInitError struct {
	Name string
	Err  error
}

func (e *PluginInitError) Error() string {
	return fmt.Sprintf("plugin %q failed to initialize: %v", e.Name, e.Err)
}

func (e *PluginInitError) Unwrap() error { return e.Err }

// PluginRuntimeError reports a content check that failed during
// evaluation. The engine recovers it into a synthetic finding and
// continues; the type exists so callers and logs can classify it.
type PluginRuntimeError struct {
	Plugin string
	Err    error
}

func (e *PluginRuntimeError) Error() string {
	return fmt.Sprintf("plugin %q content check failed: %v", e.Plugin, e.Err)
}

func (e *PluginRuntimeError) Unwrap() error { return e.Err }
