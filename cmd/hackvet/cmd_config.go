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
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/validator"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	configCreateStart        string
	configCreateEnd          string
	configCreateMaxTeam      int
	configCreateAllowAI      bool
	configCreateAIThreshold  float64
	configCreateDisqualify   bool
	configCreateRequiredTech []string
	configCreateDisallowed   []string
	configShowJSON           bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hackathon configurations",
}

var configCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create and store a named hackathon configuration",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigCreate,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored hackathon configurations",
	Run:   runConfigList,
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one stored hackathon configuration",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigShow,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage GitHub tokens in the OS keychain",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [username]",
	Short: "Store a GitHub token for a username in the OS keychain",
	Long: `Prompts for the token on stdin (hidden) and stores it in the
operating system keychain under the given username. Use the same
username with --username on validate and batch.`,
	Args: cobra.ExactArgs(1),
	Run:  runTokenSet,
}

func init() {
	configCreateCmd.Flags().StringVar(&configCreateStart, "start", "", "hackathon start (RFC 3339 or YYYY-MM-DD, required)")
	configCreateCmd.Flags().StringVar(&configCreateEnd, "end", "", "hackathon end (RFC 3339 or YYYY-MM-DD, required)")
	configCreateCmd.Flags().IntVar(&configCreateMaxTeam, "max-team-size", 0, "maximum team size (0 = unlimited)")
	configCreateCmd.Flags().BoolVar(&configCreateAllowAI, "allow-ai-tools", false, "AI findings alone do not fail a submission")
	configCreateCmd.Flags().Float64Var(&configCreateAIThreshold, "ai-threshold", validator.DefaultThresholds().AIThreshold, "AI score failure threshold in [0,1]")
	configCreateCmd.Flags().BoolVar(&configCreateDisqualify, "disqualify-high-severity", false, "any high-severity finding fails the submission")
	configCreateCmd.Flags().StringSliceVar(&configCreateRequiredTech, "require-tech", nil, "technologies the submission must declare")
	configCreateCmd.Flags().StringSliceVar(&configCreateDisallowed, "disallow-tech", nil, "technologies the submission must not declare")
	configCreateCmd.MarkFlagRequired("start")
	configCreateCmd.MarkFlagRequired("end")

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output as JSON")
}

// parseDate accepts RFC 3339 or a bare date, interpreted as UTC.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", value)
	}
	return t.UTC(), nil
}

func openConfigStore() (*validator.ConfigStore, error) {
	return validator.NewConfigStore(filepath.Join(hackvetHome(), "configs"))
}

// runConfigCreate validates the flags into a HackathonConfig and
// stores it.
func runConfigCreate(cmd *cobra.Command, args []string) {
	start, err := parseDate(configCreateStart)
	if err != nil {
		OutputError(false, "Invalid start date", err)
		os.Exit(CLIExitError)
	}
	end, err := parseDate(configCreateEnd)
	if err != nil {
		OutputError(false, "Invalid end date", err)
		os.Exit(CLIExitError)
	}

	cfg := validator.HackathonConfig{
		Name:                   args[0],
		StartDate:              start,
		EndDate:                end,
		RequiredTechnologies:   configCreateRequiredTech,
		DisallowedTechnologies: configCreateDisallowed,
		MaxTeamSize:            configCreateMaxTeam,
		AllowAITools:           configCreateAllowAI,
		Thresholds: validator.Thresholds{
			AIThreshold:            configCreateAIThreshold,
			DisqualifyHighSeverity: configCreateDisqualify,
		},
	}

	store, err := openConfigStore()
	if err != nil {
		OutputError(false, "Failed to open config store", err)
		os.Exit(CLIExitError)
	}
	path, err := store.Save(cfg)
	if err != nil {
		OutputError(false, "Failed to save config", err)
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("saved config %q to %s", cfg.Name, path))
}

func runConfigList(cmd *cobra.Command, args []string) {
	store, err := openConfigStore()
	if err != nil {
		OutputError(false, "Failed to open config store", err)
		os.Exit(CLIExitError)
	}
	names, err := store.List()
	if err != nil {
		OutputError(false, "Failed to list configs", err)
		os.Exit(CLIExitError)
	}
	if len(names) == 0 {
		ux.Muted("no configs stored; create one with \"hackvet config create\"")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func runConfigShow(cmd *cobra.Command, args []string) {
	store, err := openConfigStore()
	if err != nil {
		OutputError(configShowJSON, "Failed to open config store", err)
		os.Exit(CLIExitError)
	}
	cfg, err := store.Load(args[0])
	if err != nil {
		OutputError(configShowJSON, "Failed to load config", err)
		os.Exit(CLIExitError)
	}

	if configShowJSON {
		if err := OutputJSON(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	ux.Title(cfg.Name)
	fmt.Printf("  window:        %s to %s\n",
		cfg.StartDate.UTC().Format(time.RFC3339), cfg.EndDate.UTC().Format(time.RFC3339))
	fmt.Printf("  allow AI:      %v\n", cfg.AllowAITools)
	fmt.Printf("  AI threshold:  %.2f\n", cfg.Thresholds.AIThreshold)
	fmt.Printf("  disqualify hi: %v\n", cfg.Thresholds.DisqualifyHighSeverity)
	if cfg.MaxTeamSize > 0 {
		fmt.Printf("  max team size: %d\n", cfg.MaxTeamSize)
	}
	if len(cfg.RequiredTechnologies) > 0 {
		fmt.Printf("  required tech: %s\n", strings.Join(cfg.RequiredTechnologies, ", "))
	}
	if len(cfg.DisallowedTechnologies) > 0 {
		fmt.Printf("  disallowed:    %s\n", strings.Join(cfg.DisallowedTechnologies, ", "))
	}
}

// runTokenSet reads the token without echo and stores it.
func runTokenSet(cmd *cobra.Command, args []string) {
	fmt.Fprint(os.Stderr, "GitHub token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		OutputError(false, "Failed to read token", err)
		os.Exit(CLIExitError)
	}

	store := validator.NewTokenStore()
	if err := store.Set(args[0], strings.TrimSpace(string(raw))); err != nil {
		OutputError(false, "Failed to store token", err)
		os.Exit(CLIExitError)
	}
	ux.Success(fmt.Sprintf("token stored for %q", args[0]))
}
