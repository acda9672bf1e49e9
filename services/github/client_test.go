// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestGetRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/entry", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		fmt.Fprint(w, `{
			"full_name": "octocat/entry",
			"created_at": "2026-07-01T10:00:00Z",
			"pushed_at": "2026-07-02T22:00:00Z",
			"fork": false,
			"stargazers_count": 3,
			"default_branch": "main"
		}`)
	})

	c := newTestClient(t, mux)
	repo, err := c.GetRepository(context.Background(), "https://github.com/octocat/entry")
	require.NoError(t, err)
	assert.Equal(t, "octocat/entry", repo.FullName)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, 3, repo.Stars)
	assert.Equal(t, time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC), repo.CreatedAt)
}

func TestGetRepositoryRejectsBadURL(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	_, err := c.GetRepository(context.Background(), "https://example.com/not/github")
	assert.Error(t, err)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		check   func(t *testing.T, err error)
	}{
		{
			name:   "404 maps to ErrNotFound",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name:   "401 maps to ErrUnauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name:   "403 without quota headers maps to ErrForbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrForbidden)
			},
		},
		{
			name:   "403 with exhausted quota maps to RateLimitError",
			status: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     strconv.FormatInt(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Unix(), 10),
			},
			check: func(t *testing.T, err error) {
				var rle *RateLimitError
				require.ErrorAs(t, err, &rle)
				assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), rle.Reset.UTC())
			},
		},
		{
			name:   "500 maps to APIError with decoded message",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
				assert.Equal(t, "boom", apiErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message": "boom"}`)
			}))
			_, err := c.GetRepository(context.Background(), "https://github.com/octocat/entry")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetCommitsPaginatesAndReverses(t *testing.T) {
	type wireAuthor struct {
		Name string    `json:"name"`
		Date time.Time `json:"date"`
	}
	type wireCommit struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string     `json:"message"`
			Author  wireAuthor `json:"author"`
		} `json:"commit"`
	}

	// 102 commits, newest first across two pages.
	total := commitsPerPage + 2
	newestFirst := make([]wireCommit, total)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := range newestFirst {
		c := wireCommit{SHA: fmt.Sprintf("sha%03d", total-i)}
		c.Commit.Message = fmt.Sprintf("commit %d", total-i)
		c.Commit.Author = wireAuthor{Name: "octocat", Date: base.Add(time.Duration(total-i) * time.Minute)}
		newestFirst[i] = c
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/entry/commits", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		require.Equal(t, strconv.Itoa(commitsPerPage), r.URL.Query().Get("per_page"))
		start := (page - 1) * commitsPerPage
		end := min(start+commitsPerPage, total)
		if start >= total {
			fmt.Fprint(w, "[]")
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(newestFirst[start:end]))
	})

	c := newTestClient(t, mux)
	commits, err := c.GetCommits(context.Background(), "octocat/entry")
	require.NoError(t, err)
	require.Len(t, commits, total)
	assert.Equal(t, "sha001", commits[0].SHA)
	assert.Equal(t, fmt.Sprintf("sha%03d", total), commits[total-1].SHA)
	assert.True(t, commits[0].Date.Before(commits[total-1].Date))
	assert.Equal(t, "octocat", commits[0].Author)
}

func TestFetchCorpus(t *testing.T) {
	blobs := map[string]string{
		"main.go":   "package main\n",
		"README.md": "hello\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/entry/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"tree": [
			{"path": "main.go", "type": "blob", "size": 13},
			{"path": "README.md", "type": "blob", "size": 6},
			{"path": "logo.png", "type": "blob", "size": 10},
			{"path": "vendor/dep/dep.go", "type": "blob", "size": 8},
			{"path": "huge.txt", "type": "blob", "size": 2097152},
			{"path": "docs", "type": "tree", "size": 0}
		], "truncated": false}`)
	})
	mux.HandleFunc("/repos/octocat/entry/contents/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/repos/octocat/entry/contents/"):]
		content, ok := blobs[path]
		if !ok {
			t.Errorf("unexpected blob fetch for %q", path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"encoding": "base64", "content": %q, "size": %d}`,
			base64.StdEncoding.EncodeToString([]byte(content)), len(content))
	})

	c := newTestClient(t, mux)
	files, err := c.FetchCorpus(context.Background(), "octocat/entry", "main")
	require.NoError(t, err)
	require.Len(t, files, 2)

	got := make(map[string]string, len(files))
	for _, f := range files {
		got[f.Path] = f.Content
	}
	assert.Equal(t, blobs, got)
}

func TestGetFileContentRejectsUnknownEncoding(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"encoding": "utf-8", "content": "plain"}`)
	}))
	_, err := c.GetFileContent(context.Background(), "octocat/entry", "main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected encoding")
}

func TestCheckToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login": "octocat"}`)
	})

	c := newTestClient(t, mux)
	login, err := c.CheckToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octocat", login)
}

func TestCheckTokenInvalid(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := c.CheckToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid or expired token")
}

func TestScannablePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"src/app.py", true},
		{"node_modules/react/index.js", false},
		{"web/node_modules/x/y.js", false},
		{"vendor/golang.org/x/net/http2.go", false},
		{"assets/logo.PNG", false},
		{"bundle.min.js", false},
		{"go.sum", true},
		{"Cargo.lock", false},
	}
	for _, tt := range tests {
		if got := scannablePath(tt.path); got != tt.want {
			t.Errorf("scannablePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
