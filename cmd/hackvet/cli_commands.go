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
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hackvet/hackvet/pkg/logging"
	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/rule_engine"
	"github.com/hackvet/hackvet/services/rule_engine/builtin"
	"github.com/hackvet/hackvet/services/validator"
)

var (
	rootCmd = &cobra.Command{
		Use:   "hackvet",
		Short: "A CLI to validate hackathon submissions for provenance and AI-generated code",
		Long: `Hackvet validates hackathon submissions by checking repository
provenance against the contest window and scanning submitted code
with an extensible rule engine that flags AI-generated or otherwise
non-compliant content.`,
	}

	flagVerbose bool
	flagNoColor bool
)

// cliViper binds environment configuration for the CLI.
var cliViper = newCLIViper()

func newCLIViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("HACKVET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	v.SetDefault("home", defaultHomeDir())
	return v
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hackvet"
	}
	return filepath.Join(home, ".hackvet")
}

// hackvetHome returns the hackvet state directory (HACKVET_HOME
// overrides ~/.hackvet).
func hackvetHome() string {
	return cliViper.GetString("home")
}

// rulesDir is where custom declarative rule files and plugins live.
func rulesDir() string {
	return filepath.Join(hackvetHome(), "rules")
}

// customRuleFile is the declarative file "rules add" maintains.
func customRuleFile() string {
	return filepath.Join(rulesDir(), "custom.yaml")
}

// newLogger builds the CLI logger honoring --verbose.
func newLogger() *logging.Logger {
	level := logging.LevelWarn
	if flagVerbose {
		level = logging.LevelDebug
	}
	return logging.New(logging.Config{Level: level, Service: "hackvet"})
}

// resolveToken returns the GitHub token, in priority order: the
// --token flag, the HACKVET_GITHUB_TOKEN environment variable, then
// the OS keychain entry for --username.
func resolveToken(flagToken, username string) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if env := cliViper.GetString("github_token"); env != "" {
		return env, nil
	}
	if username != "" {
		store := validator.NewTokenStore()
		buf, err := store.Get(username)
		if err != nil {
			return "", fmt.Errorf("no token in keychain for %q: %w", username, err)
		}
		defer buf.Destroy()
		return buf.String(), nil
	}
	return "", nil
}

// buildEngine constructs a rule engine loaded with the builtin ruleset
// and every rule file and plugin found in the custom rules directory.
func buildEngine(log *logging.Logger) (*rule_engine.Engine, error) {
	engine := rule_engine.NewEngine(rule_engine.WithLogger(log))

	specs, err := builtin.Specs()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rules: %w", err)
	}
	if err := engine.RegisterFrom(rule_engine.SourceBuiltin, specs...); err != nil {
		return nil, fmt.Errorf("registering builtin rules: %w", err)
	}

	dir := rulesDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return engine, nil
		}
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json", ".so":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := engine.LoadPlugin(path); err != nil {
			// A broken user rule file should not make the whole CLI
			// unusable; it is reported and skipped.
			log.Warn("skipping rule source", "path", path, "error", err)
			ux.Warning(fmt.Sprintf("skipping %s: %v", path, err))
		}
	}
	return engine, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable styled output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if flagNoColor {
			ux.SetPlain(true)
		}
	}

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(batchCmd)

	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesVerifyCmd)
	rulesCmd.AddCommand(rulesWatchCmd)

	rootCmd.AddCommand(pluginCmd)
	pluginCmd.AddCommand(pluginCheckCmd)
	pluginCmd.AddCommand(pluginTemplateCmd)

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCreateCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd)

	rootCmd.AddCommand(versionCmd)
}
