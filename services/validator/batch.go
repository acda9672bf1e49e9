// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds parallel validations in a batch run.
// The GitHub client's own rate limiter is the real throttle; this just
// caps in-flight corpus downloads.
const DefaultBatchConcurrency = 4

// Submission is one batch entry: a repository URL plus an optional
// Devpost page to cross-check.
type Submission struct {
	URL        string `json:"url"`
	DevpostURL string `json:"devpost_url,omitempty"`
}

// BatchResult pairs a submission with its outcome. Exactly one of
// Result and Err is set.
type BatchResult struct {
	Submission Submission        `json:"submission"`
	Result     *ValidationResult `json:"result,omitempty"`
	Err        error             `json:"-"`
	Error      string            `json:"error,omitempty"`
}

// ParseSubmissionsCSV reads batch submissions from CSV. The header row
// must contain a "url" column; a "devpost_url" column is optional.
func ParseSubmissionsCSV(r io.Reader) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	urlCol, devpostCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "url", "github_url":
			urlCol = i
		case "devpost_url", "devpost":
			devpostCol = i
		}
	}
	if urlCol < 0 {
		return nil, fmt.Errorf("CSV header has no url column")
	}

	var subs []Submission
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		sub := Submission{URL: strings.TrimSpace(record[urlCol])}
		if devpostCol >= 0 && devpostCol < len(record) {
			sub.DevpostURL = strings.TrimSpace(record[devpostCol])
		}
		if sub.URL != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// ParseSubmissionsJSON reads batch submissions from JSON: either an
// array of objects with url/devpost_url fields or a plain array of URL
// strings.
func ParseSubmissionsJSON(r io.Reader) ([]Submission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON input: %w", err)
	}

	var objects []Submission
	if err := json.Unmarshal(data, &objects); err == nil {
		return objects, nil
	}

	// A failed object decode can leave partial entries behind, so the
	// string-array fallback builds its own slice.
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("JSON input is neither a submission array nor a URL array: %w", err)
	}
	var subs []Submission
	for _, u := range urls {
		if u != "" {
			subs = append(subs, Submission{URL: u})
		}
	}
	return subs, nil
}

// ValidateBatch validates every submission with bounded concurrency.
//
// Submissions are isolated from each other: one failing validation is
// recorded in its BatchResult and never stops the rest. Results come
// back in input order. Concurrency values below 1 use the default.
func (v *Validator) ValidateBatch(ctx context.Context, subs []Submission, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(subs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, sub := range subs {
		g.Go(func() error {
			githubURL, devpostURL := sub.URL, sub.DevpostURL
			var err error
			if devpostURL == "" {
				githubURL, devpostURL, err = v.ResolveSubmissionURL(ctx, sub.URL)
			}

			var result *ValidationResult
			if err == nil {
				result, err = v.ValidateProject(ctx, githubURL, devpostURL)
			}

			br := BatchResult{Submission: sub, Result: result}
			if err != nil {
				br.Err = err
				br.Error = err.Error()
				br.Result = nil
				v.log.Warn("batch entry failed", "url", sub.URL, "error", err)
			}
			results[i] = br
			return nil
		})
	}
	// Workers always return nil; a context cancellation surfaces as
	// per-entry errors on whatever was still running.
	_ = g.Wait()
	return results
}
