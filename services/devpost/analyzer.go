// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package devpost scrapes Devpost submission pages for the fields the
// validator cross-checks against the linked repository: team roster,
// declared technologies, the GitHub link and AI-tool mentions.
package devpost

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hackvet/hackvet/pkg/logging"
)

// userAgent matches a current desktop browser. Devpost serves a
// challenge page to unknown agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// aiToolMentions are the phrases counted as an explicit AI-tools
// disclosure in a submission description.
var aiToolMentions = []string{
	"chatgpt", "gpt", "claude", "gemini", "bard", "copilot",
	"generative ai", "ai assisted", "ai-assisted",
}

// HTTPClient abstracts the transport for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Submission is the scraped view of one Devpost project page.
type Submission struct {
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	TeamMembers     []string `json:"team_members"`
	Technologies    []string `json:"technologies"`
	GitHubURL       string   `json:"github_url,omitempty"`
	Hackathon       string   `json:"hackathon,omitempty"`
	MentionsAITools bool     `json:"mentions_ai_tools"`
	HasVideoDemo    bool     `json:"has_video_demo"`
	Duplicate       bool     `json:"duplicate_submission"`
	SubmittedAt     string   `json:"submission_time,omitempty"`
}

// Analyzer fetches and parses Devpost pages.
type Analyzer struct {
	http HTTPClient
	log  *logging.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithHTTPClient replaces the transport.
func WithHTTPClient(h HTTPClient) AnalyzerOption {
	return func(a *Analyzer) { a.http = h }
}

// WithLogger attaches a structured logger.
func WithLogger(log *logging.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.log = log }
}

// NewAnalyzer builds an Analyzer with a 15 second request timeout.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  logging.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeSubmission fetches the page at url and extracts the
// submission fields. Missing page sections leave their fields zero;
// only transport and HTTP-level failures return an error.
func (a *Analyzer) AnalyzeSubmission(ctx context.Context, url string) (*Submission, error) {
	doc, err := a.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseSubmission(url, doc), nil
}

// ExtractGitHubURL returns the first github.com link on the page, or
// an empty string when the submission links no repository.
func (a *Analyzer) ExtractGitHubURL(ctx context.Context, url string) (string, error) {
	doc, err := a.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return githubLink(doc), nil
}

func (a *Analyzer) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching Devpost page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Devpost returned HTTP %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing Devpost page: %w", err)
	}
	return doc, nil
}

// parseSubmission pulls the submission fields out of a parsed page.
// The selectors track Devpost's current markup; team members live in
// li.software-team-member and technology tags in span.cp-tag.
func parseSubmission(url string, doc *goquery.Document) *Submission {
	sub := &Submission{URL: url}

	sub.Title = strings.TrimSpace(doc.Find("h1").First().Text())

	desc := doc.Find("div.app-details-inner").First()
	sub.Description = normalizeSpace(desc.Text())
	sub.MentionsAITools = mentionsAITools(sub.Description)

	doc.Find("li.software-team-member").Each(func(_ int, member *goquery.Selection) {
		name := strings.TrimSpace(member.Find("h4 a").First().Text())
		if name != "" {
			sub.TeamMembers = append(sub.TeamMembers, name)
		}
	})

	doc.Find("span.cp-tag").Each(func(_ int, tag *goquery.Selection) {
		text := strings.TrimSpace(tag.Text())
		if text != "" && text != "+" {
			sub.Technologies = append(sub.Technologies, text)
		}
	})

	sub.GitHubURL = githubLink(doc)
	sub.Hackathon = strings.TrimSpace(doc.Find("div.software-list-content h5 a").First().Text())

	video := doc.Find(`a[href*="youtube.com"], a[href*="youtu.be"], iframe[src*="youtube.com"], a[href*="vimeo.com"], iframe[src*="vimeo.com"]`)
	sub.HasVideoDemo = video.Length() > 0

	if dt, ok := doc.Find("time").First().Attr("datetime"); ok {
		sub.SubmittedAt = dt
	}

	// The same project appearing under more than one hackathon listing
	// is worth flagging for the judges.
	sub.Duplicate = doc.Find("div.software-list-content").Length() > 1

	return sub
}

func githubLink(doc *goquery.Document) string {
	href, ok := doc.Find(`a[href*="github.com"]`).First().Attr("href")
	if !ok {
		return ""
	}
	if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
		href = "https://" + href
	}
	return href
}

func mentionsAITools(description string) bool {
	lower := strings.ToLower(description)
	for _, tool := range aiToolMentions {
		if strings.Contains(lower, tool) {
			return true
		}
	}
	return false
}

var spaceRun = regexp.MustCompile(`\s+`)

// normalizeSpace collapses the whitespace goquery preserves from the
// HTML source into single spaces.
func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
