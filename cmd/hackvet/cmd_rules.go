// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/rule_engine"
	"github.com/hackvet/hackvet/services/rule_engine/builtin"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	rulesListJSON       bool
	rulesVerifyJSON     bool
	rulesAddDescription string
	rulesAddSeverity    string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered rule (builtin, custom and plugin)",
	Run:   runRulesList,
}

var rulesAddCmd = &cobra.Command{
	Use:   "add [name] [pattern]",
	Short: "Add a custom detection rule",
	Long: `Adds a rule to the custom rule file in the rules directory. The
pattern is validated before anything is written; rules added here are
loaded on every run alongside the builtin set.`,
	Args: cobra.ExactArgs(2),
	Run:  runRulesAdd,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a custom detection rule",
	Args:  cobra.ExactArgs(1),
	Run:   runRulesRemove,
}

var rulesVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the checksum of the embedded builtin ruleset",
	Run:   runRulesVerify,
}

var rulesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the rules directory and hot-reload rule files",
	Long: `Watches the rules directory and reloads declarative rule files as
they are created, changed or removed. Intended for iterating on custom
rules; stop with Ctrl-C.`,
	Run: runRulesWatch,
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesListJSON, "json", false, "output as JSON")
	rulesVerifyCmd.Flags().BoolVar(&rulesVerifyJSON, "json", false, "output as JSON")
	rulesAddCmd.Flags().StringVarP(&rulesAddDescription, "description", "d", "", "what a match of this rule means")
	rulesAddCmd.Flags().StringVarP(&rulesAddSeverity, "severity", "s", "medium", "low, medium or high")
}

// runRulesList prints the effective rule registry.
func runRulesList(cmd *cobra.Command, args []string) {
	engine, err := buildEngine(newLogger())
	if err != nil {
		OutputError(rulesListJSON, "Failed to build rule engine", err)
		os.Exit(CLIExitError)
	}
	rules := engine.Rules()

	if rulesListJSON {
		type ruleView struct {
			rule_engine.RuleSpec
			Source rule_engine.RuleSource `json:"source"`
		}
		views := make([]ruleView, 0, len(rules))
		for _, r := range rules {
			views = append(views, ruleView{RuleSpec: r.Spec(), Source: r.Source()})
		}
		if err := OutputJSON(views); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	ux.Title(fmt.Sprintf("%d rules registered", len(rules)))
	for _, r := range rules {
		fmt.Printf("  %-32s %-8s %-16s %s\n", r.Name(), r.Severity(), r.Source(), r.Pattern())
	}
}

// loadCustomSpecs reads the custom rule file, tolerating its absence.
func loadCustomSpecs() ([]rule_engine.RuleSpec, error) {
	data, err := os.ReadFile(customRuleFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var specs []rule_engine.RuleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", customRuleFile(), err)
	}
	return specs, nil
}

func saveCustomSpecs(specs []rule_engine.RuleSpec) error {
	if err := os.MkdirAll(rulesDir(), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(specs)
	if err != nil {
		return err
	}
	return os.WriteFile(customRuleFile(), data, 0o644)
}

// runRulesAdd validates and persists one custom rule.
func runRulesAdd(cmd *cobra.Command, args []string) {
	spec := rule_engine.RuleSpec{
		Name:        args[0],
		Pattern:     args[1],
		Description: rulesAddDescription,
		Severity:    rule_engine.Severity(rulesAddSeverity),
	}
	if _, err := rule_engine.NewRule(spec, rule_engine.SourceCustom); err != nil {
		OutputError(false, "Invalid rule", err)
		os.Exit(CLIExitError)
	}

	specs, err := loadCustomSpecs()
	if err != nil {
		OutputError(false, "Failed to read custom rules", err)
		os.Exit(CLIExitError)
	}
	replaced := false
	for i := range specs {
		if specs[i].Name == spec.Name {
			specs[i] = spec
			replaced = true
			break
		}
	}
	if !replaced {
		specs = append(specs, spec)
	}
	if err := saveCustomSpecs(specs); err != nil {
		OutputError(false, "Failed to write custom rules", err)
		os.Exit(CLIExitError)
	}

	if replaced {
		ux.Success(fmt.Sprintf("replaced rule %q", spec.Name))
	} else {
		ux.Success(fmt.Sprintf("added rule %q", spec.Name))
	}
}

// runRulesRemove deletes one custom rule by name.
func runRulesRemove(cmd *cobra.Command, args []string) {
	specs, err := loadCustomSpecs()
	if err != nil {
		OutputError(false, "Failed to read custom rules", err)
		os.Exit(CLIExitError)
	}

	kept := specs[:0]
	for _, s := range specs {
		if s.Name != args[0] {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(specs) {
		OutputError(false, "Rule not found", fmt.Errorf("no custom rule named %q", args[0]))
		os.Exit(CLIExitError)
	}
	if err := saveCustomSpecs(kept); err != nil {
		OutputError(false, "Failed to write custom rules", err)
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("removed rule %q", args[0]))
}

// runRulesVerify prints the fingerprint of the embedded builtin
// ruleset so operators can confirm which rule version a binary ships.
//
// # Exit Codes
//
//   - 0: Ruleset verified
//   - 2: Embedded ruleset failed to parse (broken build)
func runRulesVerify(cmd *cobra.Command, args []string) {
	specs, err := builtin.Specs()
	if err != nil {
		OutputError(rulesVerifyJSON, "Embedded ruleset is invalid", err)
		os.Exit(CLIExitError)
	}

	if rulesVerifyJSON {
		result := struct {
			Valid    bool   `json:"valid"`
			Hash     string `json:"hash"`
			ByteSize int    `json:"byte_size"`
			Rules    int    `json:"rules"`
		}{
			Valid:    true,
			Hash:     builtin.Checksum(),
			ByteSize: len(builtin.Raw()),
			Rules:    len(specs),
		}
		if err := OutputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	fmt.Println("--- Embedded Ruleset Verification ---")
	fmt.Printf("Rules:       %d\n", len(specs))
	fmt.Printf("Byte size:   %d bytes\n", len(builtin.Raw()))
	fmt.Printf("Fingerprint: %s\n", builtin.Checksum())
	fmt.Println("-------------------------------------")
}

// runRulesWatch hot-reloads the rules directory until interrupted.
func runRulesWatch(cmd *cobra.Command, args []string) {
	log := newLogger()
	engine, err := buildEngine(log)
	if err != nil {
		OutputError(false, "Failed to build rule engine", err)
		os.Exit(CLIExitError)
	}

	if err := os.MkdirAll(rulesDir(), 0o755); err != nil {
		OutputError(false, "Failed to create rules directory", err)
		os.Exit(CLIExitError)
	}

	watcher, err := rule_engine.NewRuleWatcher(engine, rulesDir(), log)
	if err != nil {
		OutputError(false, "Failed to start watcher", err)
		os.Exit(CLIExitError)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ux.Info(fmt.Sprintf("watching %s (Ctrl-C to stop)", rulesDir()))
	watcher.Start(ctx)
}
