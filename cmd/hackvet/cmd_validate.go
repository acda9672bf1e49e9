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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hackvet/hackvet/services/devpost"
	"github.com/hackvet/hackvet/services/github"
	"github.com/hackvet/hackvet/services/validator"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	validateDevpostURL string
	validateConfigName string
	validateToken      string
	validateUsername   string
	validateJSON       bool
	validateOutput     string
)

var validateCmd = &cobra.Command{
	Use:   "validate [submission-url]",
	Short: "Validate one hackathon submission",
	Long: `Validates a submission given its GitHub repository URL or Devpost
page URL. Checks provenance against the hackathon window, scans the
repository contents with the rule engine, and prints a verdict report.`,
	Args: cobra.ExactArgs(1),
	Run:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateDevpostURL, "devpost", "", "Devpost submission URL to cross-check")
	validateCmd.Flags().StringVarP(&validateConfigName, "config", "c", "", "named hackathon config to use (required)")
	validateCmd.Flags().StringVar(&validateToken, "token", "", "GitHub token (overrides HACKVET_GITHUB_TOKEN and keychain)")
	validateCmd.Flags().StringVarP(&validateUsername, "username", "u", "", "keychain username to read the token from")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output the full result as JSON")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "", "write the full JSON result to a file")
	validateCmd.MarkFlagRequired("config")
}

// newSession assembles the validator session shared by the validate
// and batch commands.
func newSession(configName, token, username string) (*validator.Validator, error) {
	log := newLogger()

	store, err := validator.NewConfigStore(filepath.Join(hackvetHome(), "configs"))
	if err != nil {
		return nil, err
	}
	cfg, err := store.Load(configName)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveToken(token, username)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		log.Warn("no GitHub token configured, using anonymous rate limits")
	}

	engine, err := buildEngine(log)
	if err != nil {
		return nil, err
	}

	host := github.NewClient(resolved, github.WithLogger(log))
	analyzer := devpost.NewAnalyzer(devpost.WithLogger(log))

	return validator.NewValidator(cfg, host, engine,
		validator.WithDevpostAnalyzer(analyzer),
		validator.WithValidatorLogger(log),
	)
}

// runValidate is the CLI handler for "hackvet validate".
//
// # Exit Codes
//
//   - 0: Submission passed validation
//   - 1: Submission failed validation
//   - 2: Error
func runValidate(cmd *cobra.Command, args []string) {
	v, err := newSession(validateConfigName, validateToken, validateUsername)
	if err != nil {
		OutputError(validateJSON, "Failed to initialize validator", err)
		os.Exit(CLIExitError)
	}

	ctx := context.Background()
	githubURL, devpostURL := args[0], validateDevpostURL
	if devpostURL == "" {
		githubURL, devpostURL, err = v.ResolveSubmissionURL(ctx, args[0])
		if err != nil {
			OutputError(validateJSON, "Failed to resolve submission URL", err)
			os.Exit(CLIExitError)
		}
	}

	result, err := v.ValidateProject(ctx, githubURL, devpostURL)
	if err != nil {
		OutputError(validateJSON, "Validation failed", err)
		os.Exit(CLIExitError)
	}

	if validateOutput != "" {
		if err := result.SaveJSON(validateOutput); err != nil {
			OutputError(validateJSON, "Failed to write result file", err)
			os.Exit(CLIExitError)
		}
	}

	if validateJSON {
		if err := OutputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		fmt.Print(validator.RenderReport(result))
	}

	if result.Passed {
		os.Exit(CLIExitSuccess)
	}
	os.Exit(CLIExitFindings)
}
