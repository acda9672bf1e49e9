// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package github is a minimal GitHub REST v3 client covering the
// surface hackvet needs: repository metadata, commit history, the file
// tree and blob contents, and token validation.
//
// The client is deliberately small. It does not wrap the whole API; it
// decodes exactly the fields the validator consumes.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/hackvet/hackvet/pkg/logging"
	"github.com/hackvet/hackvet/pkg/validation"
)

const (
	defaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"

	// commitsPerPage is the API maximum.
	commitsPerPage = 100

	// maxBlobSize caps individual file fetches. Files above it are
	// skipped; generated bundles and vendored archives dominate that
	// range and only dilute the scan.
	maxBlobSize = 1 << 20
)

// HTTPClient abstracts the transport so tests can inject a stub or a
// recorded round-tripper.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sentinel errors for the statuses callers branch on.
var (
	ErrNotFound     = errors.New("repository not found")
	ErrUnauthorized = errors.New("authentication failed, check your GitHub token")
	ErrForbidden    = errors.New("access forbidden")
)

// RateLimitError reports an exhausted API quota together with the
// reset time GitHub advertised.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded, resets at %s", e.Reset.UTC().Format("2006-01-02 15:04:05 UTC"))
}

// APIError carries any other non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error (HTTP %d): %s", e.Status, e.Message)
}

// Client talks to the GitHub REST API.
//
// # Thread Safety
//
// Client is immutable after construction and safe for concurrent use;
// the batch runner shares one instance across its workers. The rate
// limiter serializes request admission so a burst of validations stays
// inside the secondary rate limits.
type Client struct {
	http    HTTPClient
	baseURL string
	token   string
	limiter *rate.Limiter
	log     *logging.Logger
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport. Tests use this with
// httptest-backed clients.
func WithHTTPClient(h HTTPClient) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger attaches a structured logger.
func WithLogger(log *logging.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client authenticated with token. An empty token
// is allowed; unauthenticated requests just run into the much lower
// anonymous quota.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		token:   token,
		// Authenticated quota is 5000/hour; pacing at 5 req/s with a
		// small burst keeps batch runs well under it.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repository holds the metadata fields the validator reads.
type Repository struct {
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
	Fork          bool      `json:"fork"`
	ForksCount    int       `json:"forks_count"`
	Stars         int       `json:"stargazers_count"`
	DefaultBranch string    `json:"default_branch"`
	Size          int       `json:"size"`
}

// Commit is one entry of a repository's commit history.
type Commit struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Contributor is one repository contributor with a contribution count.
type Contributor struct {
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
}

// File is one fetched source file from a repository tree.
type File struct {
	Path    string
	Content string
}

// GetRepository fetches metadata for a repository given its URL.
func (c *Client) GetRepository(ctx context.Context, repoURL string) (*Repository, error) {
	slug, err := validation.RepoSlug(repoURL)
	if err != nil {
		return nil, err
	}
	var repo Repository
	if err := c.getJSON(ctx, "/repos/"+slug, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetLanguages returns the language byte breakdown of a repository.
func (c *Client) GetLanguages(ctx context.Context, slug string) (map[string]int64, error) {
	langs := make(map[string]int64)
	if err := c.getJSON(ctx, "/repos/"+slug+"/languages", &langs); err != nil {
		return nil, err
	}
	return langs, nil
}

// GetContributors lists a repository's contributors.
func (c *Client) GetContributors(ctx context.Context, slug string) ([]Contributor, error) {
	var out []Contributor
	if err := c.getJSON(ctx, "/repos/"+slug+"/contributors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCommits walks the full commit history of the default branch,
// oldest first. Pagination follows the per_page/page scheme rather
// than Link headers; an empty page terminates the walk.
func (c *Client) GetCommits(ctx context.Context, slug string) ([]Commit, error) {
	type apiCommit struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name string    `json:"name"`
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
	}

	var all []Commit
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/commits?per_page=%d&page=%d", slug, commitsPerPage, page)
		var batch []apiCommit
		if err := c.getJSON(ctx, path, &batch); err != nil {
			return nil, err
		}
		for _, ac := range batch {
			all = append(all, Commit{
				SHA:     ac.SHA,
				Author:  ac.Commit.Author.Name,
				Message: ac.Commit.Message,
				Date:    ac.Commit.Author.Date.UTC(),
			})
		}
		if len(batch) < commitsPerPage {
			break
		}
	}

	// API order is newest first; the timeline reads oldest first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// treeEntry is one node of a recursive git tree listing.
type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

// GetFileTree lists every blob path in the repository at ref.
func (c *Client) GetFileTree(ctx context.Context, slug, ref string) ([]string, error) {
	entries, err := c.getTree(ctx, slug, ref)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == "blob" {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

func (c *Client) getTree(ctx context.Context, slug, ref string) ([]treeEntry, error) {
	var tree struct {
		Entries   []treeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/git/trees/%s?recursive=1", slug, ref)
	if err := c.getJSON(ctx, path, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		c.log.Warn("git tree listing truncated by API", "repo", slug, "ref", ref)
	}
	return tree.Entries, nil
}

// GetFileContent fetches one blob via the contents API and decodes its
// base64 payload.
func (c *Client) GetFileContent(ctx context.Context, slug, path string) (string, error) {
	var blob struct {
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
		Size     int64  `json:"size"`
	}
	if err := c.getJSON(ctx, "/repos/"+slug+"/contents/"+path, &blob); err != nil {
		return "", err
	}
	if blob.Encoding != "base64" {
		return "", fmt.Errorf("unexpected encoding %q for %s", blob.Encoding, path)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return string(raw), nil
}

// FetchCorpus downloads every scannable text file in the repository at
// ref. Binary blobs, oversized files and vendored artifacts are
// skipped; a file that fails to download is skipped with a warning
// rather than aborting the whole corpus.
func (c *Client) FetchCorpus(ctx context.Context, slug, ref string) ([]File, error) {
	entries, err := c.getTree(ctx, slug, ref)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.Type != "blob" || !scannablePath(e.Path) || e.Size > maxBlobSize {
			continue
		}
		content, err := c.GetFileContent(ctx, slug, e.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("skipping unreadable file", "repo", slug, "path", e.Path, "error", err)
			continue
		}
		if !utf8.ValidString(content) {
			continue
		}
		files = append(files, File{Path: e.Path, Content: content})
	}
	return files, nil
}

// CheckToken verifies the configured token against /user and returns
// the authenticated login.
func (c *Client) CheckToken(ctx context.Context) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	if err := c.getJSON(ctx, "/user", &user); err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
			return "", fmt.Errorf("invalid or expired token: %w", err)
		}
		return "", err
	}
	return user.Login, nil
}

// getJSON performs one rate-limited GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GitHub request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding GitHub response for %s: %w", path, err)
	}
	return nil
}

// statusError maps a non-200 response to a typed error.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			reset := time.Now()
			if sec, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
				reset = time.Unix(sec, 0)
			}
			return &RateLimitError{Reset: reset}
		}
		if resp.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
	}

	msg := strings.TrimSpace(string(body))
	var decoded struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		msg = decoded.Message
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// scannablePath filters out paths that never carry hand-written code.
func scannablePath(path string) bool {
	lower := strings.ToLower(path)
	for _, dir := range []string{"node_modules/", "vendor/", ".git/", "dist/", "build/"} {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return false
		}
	}
	for _, ext := range binaryExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

var binaryExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg", ".webp",
	".pdf", ".zip", ".tar", ".gz", ".7z", ".jar",
	".exe", ".dll", ".so", ".dylib", ".bin", ".wasm",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp3", ".mp4", ".wav", ".mov", ".avi",
	".lock", ".min.js", ".min.css",
}
