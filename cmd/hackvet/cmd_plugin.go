// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/rule_engine"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	pluginCheckJSON   bool
	pluginTemplateDir string
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Inspect and scaffold rule plugins",
}

var pluginCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Load a plugin in isolation and report what it provides",
	Long: `Loads the plugin at the given path into a throwaway engine, without
touching the configured rules directory. Reports the plugin's name,
whether it provides a content check, and the rules it registers.`,
	Args: cobra.ExactArgs(1),
	Run:  runPluginCheck,
}

var pluginTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write starter plugin files into a directory",
	Run:   runPluginTemplate,
}

func init() {
	pluginCheckCmd.Flags().BoolVar(&pluginCheckJSON, "json", false, "output as JSON")
	pluginTemplateCmd.Flags().StringVarP(&pluginTemplateDir, "dir", "d", ".", "directory to write templates into")
}

// runPluginCheck is the CLI handler for "hackvet plugin check".
//
// # Exit Codes
//
//   - 0: Plugin loads and registers cleanly
//   - 2: Plugin failed to load or initialize
func runPluginCheck(cmd *cobra.Command, args []string) {
	engine := rule_engine.NewEngine(rule_engine.WithLogger(newLogger()))
	if err := engine.LoadPlugin(args[0]); err != nil {
		OutputError(pluginCheckJSON, "Plugin failed to load", err)
		os.Exit(CLIExitError)
	}

	plugins := engine.Plugins()
	rules := engine.Rules()

	if pluginCheckJSON {
		result := struct {
			Plugin rule_engine.PluginInfo `json:"plugin"`
			Rules  []rule_engine.RuleSpec `json:"rules"`
		}{Plugin: plugins[0]}
		for _, r := range rules {
			result.Rules = append(result.Rules, r.Spec())
		}
		if err := OutputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	info := plugins[0]
	ux.Success(fmt.Sprintf("plugin %q loaded (state %s)", info.Name, info.State))
	fmt.Printf("  content check: %v\n", info.HasContentCheck)
	fmt.Printf("  rules:         %d\n", len(rules))
	for _, r := range rules {
		fmt.Printf("    %-32s %-8s %s\n", r.Name(), r.Severity(), r.Pattern())
	}
}

// declarativeTemplate is a starter rule file for the declarative shape.
const declarativeTemplate = `# Declarative rule plugin. Drop this file into your rules directory
# (~/.hackvet/rules) or load it with "hackvet plugin check".
- name: example_rule
  pattern: 'EXAMPLE_MARKER_[0-9]+'
  description: Example rule matching a placeholder marker
  severity: low
`

// sharedTemplate is a starter source file for a compiled plugin.
const sharedTemplate = `// Starter hackvet plugin. Build with:
//
//	go build -buildmode=plugin -o example.so example_plugin.go
//
// and load the resulting .so with "hackvet plugin check example.so".
package main

import "github.com/hackvet/hackvet/services/rule_engine"

// RegisterRules declares the rules this plugin contributes.
func RegisterRules() []rule_engine.RuleSpec {
	return []rule_engine.RuleSpec{
		{
			Name:        "example_compiled_rule",
			Pattern:     "EXAMPLE_COMPILED_MARKER",
			Description: "Example rule from a compiled plugin",
			Severity:    rule_engine.SeverityLow,
		},
	}
}

// CheckContent is optional; remove it for a rules-only plugin.
func CheckContent(content string) ([]rule_engine.Finding, error) {
	return nil, nil
}
`

// runPluginTemplate writes the starter files.
func runPluginTemplate(cmd *cobra.Command, args []string) {
	templates := map[string]string{
		"example_rules.yaml": declarativeTemplate,
		"example_plugin.go":  sharedTemplate,
	}
	for name, content := range templates {
		path := filepath.Join(pluginTemplateDir, name)
		if _, err := os.Stat(path); err == nil {
			OutputError(false, "Refusing to overwrite", fmt.Errorf("%s already exists", path))
			os.Exit(CLIExitError)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			OutputError(false, "Failed to write template", err)
			os.Exit(CLIExitError)
		}
		ux.Success("wrote " + path)
	}
}
