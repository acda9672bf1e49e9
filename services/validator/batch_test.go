// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmissionsCSV(t *testing.T) {
	input := `url,devpost_url
https://github.com/a/one,https://devpost.com/software/one
https://github.com/b/two,
,https://devpost.com/software/orphan
`
	subs, err := ParseSubmissionsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "https://github.com/a/one", subs[0].URL)
	assert.Equal(t, "https://devpost.com/software/one", subs[0].DevpostURL)
	assert.Equal(t, "https://github.com/b/two", subs[1].URL)
	assert.Empty(t, subs[1].DevpostURL)
}

func TestParseSubmissionsCSVAlternateHeader(t *testing.T) {
	input := "github_url,devpost\nhttps://github.com/a/one,https://devpost.com/software/one\n"
	subs, err := ParseSubmissionsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://devpost.com/software/one", subs[0].DevpostURL)
}

func TestParseSubmissionsCSVNoURLColumn(t *testing.T) {
	_, err := ParseSubmissionsCSV(strings.NewReader("name,team\nfoo,bar\n"))
	assert.Error(t, err)
}

func TestParseSubmissionsJSON(t *testing.T) {
	t.Run("object array", func(t *testing.T) {
		input := `[{"url": "https://github.com/a/one", "devpost_url": "https://devpost.com/software/one"}]`
		subs, err := ParseSubmissionsJSON(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "https://github.com/a/one", subs[0].URL)
		assert.Equal(t, "https://devpost.com/software/one", subs[0].DevpostURL)
	})

	t.Run("string array", func(t *testing.T) {
		input := `["https://github.com/a/one", "", "https://github.com/b/two"]`
		subs, err := ParseSubmissionsJSON(strings.NewReader(input))
		require.NoError(t, err)
		// No phantom zero-value entries from the failed object decode.
		require.Len(t, subs, 2)
		assert.Equal(t, "https://github.com/a/one", subs[0].URL)
		assert.Equal(t, "https://github.com/b/two", subs[1].URL)
	})

	t.Run("neither shape", func(t *testing.T) {
		_, err := ParseSubmissionsJSON(strings.NewReader(`{"url": "solo"}`))
		assert.Error(t, err)
	})
}

func TestValidateBatchIsolationAndOrder(t *testing.T) {
	// All entries share the stub host; the middle one resolves through
	// an unsupported URL and must fail without touching its neighbors.
	v := newTestValidator(t, validTestConfig(), healthyHost(), testEngine(t))

	subs := []Submission{
		{URL: "https://github.com/a/one"},
		{URL: "ftp://nowhere/bad"},
		{URL: "https://github.com/b/two"},
	}

	results := v.ValidateBatch(context.Background(), subs, 2)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, subs[i], r.Submission, "result %d out of order", i)
	}

	require.NotNil(t, results[0].Result)
	assert.True(t, results[0].Result.Passed)
	assert.Empty(t, results[0].Error)

	assert.Nil(t, results[1].Result)
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Error, "unsupported submission URL")

	require.NotNil(t, results[2].Result)
	assert.True(t, results[2].Result.Passed)
}

func TestValidateBatchDefaultConcurrency(t *testing.T) {
	v := newTestValidator(t, validTestConfig(), healthyHost(), testEngine(t))
	results := v.ValidateBatch(context.Background(), []Submission{{URL: "https://github.com/a/one"}}, 0)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Result)
}
