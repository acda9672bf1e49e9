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
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves an external plugin source into the normalized Plugin
// capability. Two unit kinds are accepted:
//
//   - Shared objects (.so, built with `go build -buildmode=plugin`).
//     An exported `Plugin` symbol implementing the Plugin interface is
//     the object shape; exported `RegisterRules` (and optionally
//     `CheckContent`) functions are the function-bundle shape.
//   - Declarative rule lists (.yaml, .yml, .json) holding one rule
//     declaration or a sequence of them. These carry no executable
//     code at all and are the recommended shape for untrusted sources.
//
// The loader only classifies and wraps; registration, initialization
// ordering and hot-swap policy belong to the Engine.
type Loader struct{}

// NewLoader returns a ready Loader.
func NewLoader() *Loader { return &Loader{} }

// Load resolves path into a Plugin. It returns a *PluginLoadError when
// the unit is unreadable or exposes no recognized plugin interface.
// Load never touches any registry: a loaded plugin is inert until the
// engine registers it.
func (l *Loader) Load(path string) (Plugin, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".so":
		return l.loadShared(path)
	case ".yaml", ".yml":
		return l.loadDeclarative(path, yaml.Unmarshal)
	case ".json":
		return l.loadDeclarative(path, json.Unmarshal)
	default:
		return nil, &PluginLoadError{Path: path, Reason: "unsupported plugin file type"}
	}
}

// loadShared opens a compiled plugin and detects which capability
// shape it exposes.
func (l *Loader) loadShared(path string) (Plugin, error) {
	unit, err := plugin.Open(path)
	if err != nil {
		return nil, &PluginLoadError{Path: path, Reason: "unable to open shared object", Err: err}
	}

	// Object shape: an exported Plugin value implementing the full
	// capability interface.
	if sym, err := unit.Lookup("Plugin"); err == nil {
		switch v := sym.(type) {
		case Plugin:
			return v, nil
		case *Plugin:
			if *v != nil {
				return *v, nil
			}
		}
		return nil, &PluginLoadError{Path: path, Reason: "Plugin symbol does not implement the plugin interface"}
	}

	// Function-bundle shape: a module-level RegisterRules function,
	// with CheckContent picked up automatically when present.
	sym, err := unit.Lookup("RegisterRules")
	if err != nil {
		return nil, &PluginLoadError{Path: path, Reason: "no recognized plugin interface"}
	}
	rulesFn, ok := sym.(func() []RuleSpec)
	if !ok {
		return nil, &PluginLoadError{Path: path, Reason: fmt.Sprintf("RegisterRules has unsupported signature %T", sym)}
	}

	fp := &FunctionPlugin{
		PluginName: pluginNameFromPath(path),
		Rules:      rulesFn,
	}
	if checkSym, err := unit.Lookup("CheckContent"); err == nil {
		checkFn, ok := checkSym.(func(string) ([]Finding, error))
		if !ok {
			return nil, &PluginLoadError{Path: path, Reason: fmt.Sprintf("CheckContent has unsupported signature %T", checkSym)}
		}
		fp.Check = checkFn
	}
	return fp, nil
}

// loadDeclarative parses a rule-list file into a rules-only plugin.
// Both a single declaration and a sequence are accepted, mirroring the
// custom rule files users keep in their rules directory.
func (l *Loader) loadDeclarative(path string, unmarshal func([]byte, any) error) (Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PluginLoadError{Path: path, Reason: "unable to read rule file", Err: err}
	}

	var specs []RuleSpec
	if err := unmarshal(data, &specs); err != nil {
		var single RuleSpec
		if errSingle := unmarshal(data, &single); errSingle != nil {
			return nil, &PluginLoadError{Path: path, Reason: "no recognized plugin interface", Err: err}
		}
		specs = []RuleSpec{single}
	}
	if len(specs) == 0 {
		return nil, &PluginLoadError{Path: path, Reason: "rule file declares no rules"}
	}

	// Fail fast on malformed patterns so a bad file never reaches the
	// registry at all.
	name := pluginNameFromPath(path)
	for _, spec := range specs {
		if _, err := NewRule(spec, PluginSource(name)); err != nil {
			return nil, &PluginLoadError{Path: path, Reason: "rule file contains an invalid rule", Err: err}
		}
	}

	return &FunctionPlugin{
		PluginName: name,
		Rules:      func() []RuleSpec { return specs },
	}, nil
}

// pluginNameFromPath derives the session plugin name from the source
// file name, without its extension.
func pluginNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
