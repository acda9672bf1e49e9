// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/validator"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	batchConfigName  string
	batchToken       string
	batchUsername    string
	batchConcurrency int
	batchJSON        bool
	batchOutput      string
)

var batchCmd = &cobra.Command{
	Use:   "batch [submissions-file]",
	Short: "Validate a batch of submissions from a CSV or JSON file",
	Long: `Validates every submission listed in the given file. CSV files need
a header row with a "url" column (and optionally "devpost_url"); JSON
files hold an array of {"url", "devpost_url"} objects or plain URL
strings. Submissions are validated concurrently and one failure never
stops the rest.`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchConfigName, "config", "c", "", "named hackathon config to use (required)")
	batchCmd.Flags().StringVar(&batchToken, "token", "", "GitHub token (overrides HACKVET_GITHUB_TOKEN and keychain)")
	batchCmd.Flags().StringVarP(&batchUsername, "username", "u", "", "keychain username to read the token from")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", validator.DefaultBatchConcurrency, "parallel validations")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output all results as JSON")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write all JSON results to a file")
	batchCmd.MarkFlagRequired("config")
}

// runBatch is the CLI handler for "hackvet batch".
//
// # Exit Codes
//
//   - 0: Every submission passed
//   - 1: At least one submission failed or errored
//   - 2: Error before validation started
func runBatch(cmd *cobra.Command, args []string) {
	subs, err := readSubmissions(args[0])
	if err != nil {
		OutputError(batchJSON, "Failed to read submissions file", err)
		os.Exit(CLIExitError)
	}
	if len(subs) == 0 {
		OutputError(batchJSON, "No submissions found", fmt.Errorf("file %s is empty", args[0]))
		os.Exit(CLIExitError)
	}

	v, err := newSession(batchConfigName, batchToken, batchUsername)
	if err != nil {
		OutputError(batchJSON, "Failed to initialize validator", err)
		os.Exit(CLIExitError)
	}

	results := v.ValidateBatch(context.Background(), subs, batchConcurrency)

	if batchOutput != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err == nil {
			err = os.WriteFile(batchOutput, data, 0o644)
		}
		if err != nil {
			OutputError(batchJSON, "Failed to write results file", err)
			os.Exit(CLIExitError)
		}
	}

	passed, failed, errored := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			errored++
		case r.Result.Passed:
			passed++
		default:
			failed++
		}
	}

	if batchJSON {
		if err := OutputJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Printf("%s %s  %s\n", ux.IconError.Render(), r.Submission.URL, r.Error)
			case r.Result.Passed:
				fmt.Printf("%s %s  score %.4f\n", ux.IconSuccess.Render(), r.Submission.URL, r.Result.AIScore)
			default:
				fmt.Printf("%s %s  score %.4f, %d reason(s)\n",
					ux.IconError.Render(), r.Submission.URL, r.Result.AIScore, len(r.Result.Reasons))
			}
		}
		fmt.Printf("\n%d passed, %d failed, %d errored of %d\n", passed, failed, errored, len(results))
	}

	if failed > 0 || errored > 0 {
		os.Exit(CLIExitFindings)
	}
	os.Exit(CLIExitSuccess)
}

// readSubmissions parses the batch input file by extension.
func readSubmissions(path string) ([]validator.Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".csv":
		return validator.ParseSubmissionsCSV(f)
	case ".json":
		return validator.ParseSubmissionsJSON(f)
	default:
		return nil, fmt.Errorf("unsupported submissions file type %q (want .csv or .json)", filepath.Ext(path))
	}
}
