// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validator orchestrates a full submission validation: it
// gathers provenance facts from the source host, runs the rule engine
// over the fetched corpus, scores the findings and folds everything
// into one terminal ValidationResult.
package validator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackvet/hackvet/pkg/logging"
	"github.com/hackvet/hackvet/pkg/validation"
	"github.com/hackvet/hackvet/services/devpost"
	"github.com/hackvet/hackvet/services/github"
	"github.com/hackvet/hackvet/services/rule_engine"
)

// HostClient is the source-host collaborator the validator reads
// provenance facts and file contents through. *github.Client satisfies
// it; tests supply stubs.
type HostClient interface {
	GetRepository(ctx context.Context, repoURL string) (*github.Repository, error)
	GetCommits(ctx context.Context, slug string) ([]github.Commit, error)
	FetchCorpus(ctx context.Context, slug, ref string) ([]github.File, error)
}

// SubmissionAnalyzer is the optional Devpost collaborator. When nil,
// Devpost cross-checks are skipped.
type SubmissionAnalyzer interface {
	AnalyzeSubmission(ctx context.Context, url string) (*devpost.Submission, error)
}

// ProvenanceUnavailable reports that the host collaborator could not
// establish a submission's authorship window. It surfaces as a tagged
// warning on the result, never as a hard failure and never as a silent
// pass.
type ProvenanceUnavailable struct {
	Reason string
	Err    error
}

func (e *ProvenanceUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provenance unavailable: %s: %v", e.Reason, e.Err)
	}
	return "provenance unavailable: " + e.Reason
}

func (e *ProvenanceUnavailable) Unwrap() error { return e.Err }

// Validator runs the validation pipeline for one hackathon config.
//
// # Thread Safety
//
// A Validator is immutable after construction; ValidateProject may be
// called concurrently (the batch runner does) as long as the injected
// collaborators are themselves concurrency-safe.
type Validator struct {
	config  HackathonConfig
	host    HostClient
	devpost SubmissionAnalyzer
	engine  *rule_engine.Engine
	scorer  *rule_engine.Scorer
	log     *logging.Logger
}

// ValidatorOption configures a Validator at construction.
type ValidatorOption func(*Validator)

// WithDevpostAnalyzer enables Devpost submission cross-checks.
func WithDevpostAnalyzer(a SubmissionAnalyzer) ValidatorOption {
	return func(v *Validator) { v.devpost = a }
}

// WithValidatorLogger attaches a structured logger.
func WithValidatorLogger(log *logging.Logger) ValidatorOption {
	return func(v *Validator) { v.log = log }
}

// NewValidator builds a validation session for config.
//
// Construction is the fatal checkpoint for malformed configuration: an
// AI threshold outside [0,1], an inverted date window or a broken
// severity-weight override all fail here, before any submission is
// touched.
func NewValidator(config HackathonConfig, host HostClient, engine *rule_engine.Engine, opts ...ValidatorOption) (*Validator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if host == nil {
		return nil, fmt.Errorf("host client must not be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("rule engine must not be nil")
	}
	scorer, err := rule_engine.NewScorer(config.WeightOverrides())
	if err != nil {
		return nil, fmt.Errorf("invalid severity weights: %w", err)
	}

	v := &Validator{
		config: config,
		host:   host,
		engine: engine,
		scorer: scorer,
		log:    logging.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Config returns the session's hackathon config.
func (v *Validator) Config() HackathonConfig { return v.config }

// Engine returns the underlying rule engine, for rule management
// commands that operate on a live session.
func (v *Validator) Engine() *rule_engine.Engine { return v.engine }

// ValidateProject validates the repository at githubURL, optionally
// cross-checked against the Devpost submission at devpostURL (pass ""
// to skip).
//
// The pipeline either completes and returns a full result or fails
// with an error; a partially populated result is never returned.
// Provenance trouble short of total repository inaccessibility is
// downgraded to a tagged warning per the ProvenanceUnavailable
// contract.
func (v *Validator) ValidateProject(ctx context.Context, githubURL, devpostURL string) (*ValidationResult, error) {
	repo, err := v.host.GetRepository(ctx, githubURL)
	if err != nil {
		return nil, fmt.Errorf("accessing repository %s: %w", githubURL, err)
	}
	slug := repo.FullName

	facts, provWarnings, provOK := v.gatherProvenance(ctx, repo, slug)

	files, err := v.host.FetchCorpus(ctx, slug, repo.DefaultBranch)
	if err != nil {
		return nil, fmt.Errorf("fetching file corpus for %s: %w", slug, err)
	}
	// Corpus order depends on the host's tree listing; sort so results
	// are reproducible run to run.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var findings []rule_engine.Finding
	for _, f := range files {
		fileFindings := v.engine.Evaluate(f.Content)
		for i := range fileFindings {
			fileFindings[i].File = f.Path
		}
		findings = append(findings, fileFindings...)
	}

	score := v.scorer.Score(findings)
	decision := v.scorer.Decide(score, findings, v.config.DecisionConfig())

	// Warning order: provenance first, then engine warnings in finding
	// order, then Devpost compliance, then the decision reasons.
	warnings := make([]string, 0, len(provWarnings))
	warnings = append(warnings, provWarnings...)
	warnings = append(warnings, engineWarnings(findings)...)

	var reasons []string
	if !provOK {
		reasons = append(reasons, "provenance checks failed for "+slug)
	}

	var submission *devpost.Submission
	if devpostURL != "" && v.devpost != nil {
		submission, err = v.devpost.AnalyzeSubmission(ctx, devpostURL)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("devpost: could not analyze submission: %v", err))
			submission = nil
		} else {
			complianceWarnings, complianceFailures := v.checkCompliance(submission)
			warnings = append(warnings, complianceWarnings...)
			reasons = append(reasons, complianceFailures...)
		}
	}

	warnings = append(warnings, decision.Reasons...)
	reasons = append(reasons, decision.Reasons...)

	result := &ValidationResult{
		RunID:        uuid.NewString(),
		RepoURL:      githubURL,
		DevpostURL:   devpostURL,
		Passed:       provOK && decision.Passed && len(reasons) == 0,
		AIScore:      score,
		ProvenanceOK: provOK,
		Warnings:     warnings,
		Reasons:      reasons,
		Findings:     findings,
		Provenance:   facts,
		Devpost:      submission,
		FilesScanned: len(files),
		ValidatedAt:  time.Now().UTC(),
	}

	v.log.Info("validation complete",
		"run_id", result.RunID,
		"repo", slug,
		"files", result.FilesScanned,
		"findings", len(findings),
		"score", fmt.Sprintf("%.4f", score),
		"passed", result.Passed,
	)
	return result, nil
}

// gatherProvenance builds the provenance facts for repo and returns
// them with their warnings and the derived provenance_ok flag.
//
// A commit-history failure yields Available == false and a
// ProvenanceUnavailable warning; provenance_ok stays true in that case
// because absent evidence is not negative evidence, and the warning
// keeps it from reading as a silent pass.
func (v *Validator) gatherProvenance(ctx context.Context, repo *github.Repository, slug string) (ProvenanceFacts, []string, bool) {
	start, end := v.config.Window()

	facts := ProvenanceFacts{
		RepoName:            slug,
		CreatedAt:           repo.CreatedAt.UTC(),
		PushedAt:            repo.PushedAt.UTC(),
		CreatedDuringWindow: !repo.CreatedAt.UTC().Before(start) && !repo.CreatedAt.UTC().After(end),
	}

	var warnings []string

	commits, err := v.host.GetCommits(ctx, slug)
	if err != nil {
		unavailable := &ProvenanceUnavailable{Reason: "could not analyze commit history for " + slug, Err: err}
		v.log.Warn("provenance degraded", "repo", slug, "error", err)
		warnings = append(warnings, "provenance: "+unavailable.Error())
		return facts, warnings, true
	}

	facts.Available = true
	facts.TotalCommits = len(commits)
	for _, c := range commits {
		if !c.Date.Before(start) && !c.Date.After(end) {
			facts.CommitsDuringWindow++
		}
	}

	if !facts.CreatedDuringWindow {
		warnings = append(warnings, "provenance: repository was created outside the hackathon period")
	}
	if facts.CommitsDuringWindow == 0 {
		warnings = append(warnings, "provenance: no commits were made during the hackathon period")
	}
	if repo.Fork {
		warnings = append(warnings, "provenance: repository is a fork")
	}

	ok := facts.CreatedDuringWindow && facts.CommitsDuringWindow > 0
	return facts, warnings, ok
}

// checkCompliance runs the Devpost cross-checks: team size, required
// and disallowed technologies, undisclosed or disallowed AI-tool
// mentions, duplicate submissions.
func (v *Validator) checkCompliance(sub *devpost.Submission) (warnings, failures []string) {
	if v.config.MaxTeamSize > 0 && len(sub.TeamMembers) > v.config.MaxTeamSize {
		failures = append(failures, fmt.Sprintf(
			"devpost: team size (%d) exceeds maximum allowed (%d)", len(sub.TeamMembers), v.config.MaxTeamSize))
	}

	used := make(map[string]bool, len(sub.Technologies))
	for _, t := range sub.Technologies {
		used[strings.ToLower(t)] = true
	}
	var missing, forbidden []string
	for _, t := range v.config.RequiredTechnologies {
		if !used[strings.ToLower(t)] {
			missing = append(missing, t)
		}
	}
	for _, t := range v.config.DisallowedTechnologies {
		if used[strings.ToLower(t)] {
			forbidden = append(forbidden, t)
		}
	}
	if len(missing) > 0 {
		failures = append(failures, "devpost: missing required technologies: "+strings.Join(missing, ", "))
	}
	if len(forbidden) > 0 {
		failures = append(failures, "devpost: using disallowed technologies: "+strings.Join(forbidden, ", "))
	}

	if sub.MentionsAITools && !v.config.AllowAITools {
		warnings = append(warnings, "devpost: submission description mentions AI tools")
	}
	if sub.Duplicate {
		failures = append(failures, "devpost: project appears to be submitted to multiple hackathons")
	}
	return warnings, failures
}

// engineWarnings converts recovered-error findings into tagged warning
// strings, in finding order. Ordinary findings stay findings; only the
// synthetic plugin-failure entries double as warnings.
func engineWarnings(findings []rule_engine.Finding) []string {
	var out []string
	for _, f := range findings {
		if f.Rule == "plugin_error" {
			out = append(out, fmt.Sprintf("%s: %s", f.Rule, f.Description))
		}
	}
	return out
}

// ResolveSubmissionURL turns a submission URL of either kind into the
// pair (githubURL, devpostURL). A Devpost URL needs the analyzer to
// discover the linked repository.
func (v *Validator) ResolveSubmissionURL(ctx context.Context, raw string) (githubURL, devpostURL string, err error) {
	switch {
	case validation.IsGitHubURL(raw):
		return raw, "", nil
	case validation.IsDevpostURL(raw):
		extractor, ok := v.devpost.(interface {
			ExtractGitHubURL(ctx context.Context, url string) (string, error)
		})
		if !ok || v.devpost == nil {
			return "", "", fmt.Errorf("devpost analyzer not configured, cannot resolve %s", raw)
		}
		githubURL, err = extractor.ExtractGitHubURL(ctx, raw)
		if err != nil {
			return "", "", fmt.Errorf("resolving repository for %s: %w", raw, err)
		}
		if githubURL == "" {
			return "", "", fmt.Errorf("submission %s links no GitHub repository", raw)
		}
		return githubURL, raw, nil
	default:
		return "", "", fmt.Errorf("unsupported submission URL: %s", raw)
	}
}
