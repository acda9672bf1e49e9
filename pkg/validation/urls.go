// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for
// user-supplied identifiers and URLs.
//
// Submission URLs end up in API paths and report output, so they are
// validated before use rather than passed through verbatim.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// repoSlugPattern matches "owner/name" GitHub repository slugs.
// GitHub allows word characters, dots and hyphens in both segments.
var repoSlugPattern = regexp.MustCompile(`^[\w.\-]+/[\w.\-]+$`)

// IsGitHubURL reports whether raw is a GitHub repository URL with at
// least an owner and a repository segment.
func IsGitHubURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return false
	}
	return len(splitPath(parsed.Path)) >= 2
}

// IsDevpostURL reports whether raw points at a devpost.com page.
func IsDevpostURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Host == "devpost.com" || strings.HasSuffix(parsed.Host, ".devpost.com")
}

// RepoSlug extracts the "owner/name" slug from a GitHub repository
// URL.
//
// Returns an error when the URL is not a GitHub repository URL, so the
// slug can be used directly in API paths.
//
// Example:
//
//	slug, err := validation.RepoSlug(submissionURL)
//	if err != nil {
//	    return nil, fmt.Errorf("invalid submission: %w", err)
//	}
//	// Safe to interpolate into an API path
func RepoSlug(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("repository URL cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", raw, err)
	}
	if parsed.Host != "github.com" && parsed.Host != "www.github.com" {
		return "", fmt.Errorf("not a github.com URL: %q", raw)
	}
	parts := splitPath(parsed.Path)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid GitHub URL format: %q (expected github.com/owner/repo)", raw)
	}
	slug := parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
	if !repoSlugPattern.MatchString(slug) {
		return "", fmt.Errorf("invalid repository slug %q", slug)
	}
	return slug, nil
}

// splitPath returns the non-empty segments of a URL path.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
