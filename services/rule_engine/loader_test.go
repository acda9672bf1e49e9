// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeclarativeYAMLSequence(t *testing.T) {
	path := writeRuleFile(t, "team_rules.yaml", `
- name: banned_phrase
  pattern: 'as an ai language model'
  description: Canned LLM disclaimer
  severity: high
- name: todo_marker
  pattern: 'TODO\(ai\)'
  severity: low
`)

	p, err := NewLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, "team_rules", p.Name())
	assert.False(t, hasContentCheck(p))

	specs := p.RegisterRules()
	require.Len(t, specs, 2)
	assert.Equal(t, "banned_phrase", specs[0].Name)
	assert.Equal(t, SeverityHigh, specs[0].Severity)
	assert.Equal(t, SeverityLow, specs[1].Severity)
}

func TestLoadDeclarativeSingleMapping(t *testing.T) {
	path := writeRuleFile(t, "solo.yml", `
name: solo_rule
pattern: 'generated by'
`)

	p, err := NewLoader().Load(path)
	require.NoError(t, err)
	specs := p.RegisterRules()
	require.Len(t, specs, 1)
	assert.Equal(t, "solo_rule", specs[0].Name)
}

func TestLoadDeclarativeJSON(t *testing.T) {
	path := writeRuleFile(t, "rules.json", `[
  {"name": "json_rule", "pattern": "chatgpt", "severity": "medium"}
]`)

	p, err := NewLoader().Load(path)
	require.NoError(t, err)
	specs := p.RegisterRules()
	require.Len(t, specs, 1)
	assert.Equal(t, "json_rule", specs[0].Name)
	assert.Equal(t, SeverityMedium, specs[0].Severity)
}

func TestLoadDeclarativeErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"not a rule document", "junk.yaml", "just: {a: map, of: things}\n"},
		{"empty sequence", "empty.yaml", "[]\n"},
		{"invalid pattern", "bad.yaml", "- name: broken\n  pattern: '(?P<unclosed'\n"},
		{"unknown severity", "sev.yaml", "- name: sev\n  pattern: ok\n  severity: apocalyptic\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRuleFile(t, tt.file, tt.content)
			_, err := NewLoader().Load(path)
			var loadErr *PluginLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, path, loadErr.Path)
		})
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeRuleFile(t, "rules.toml", "name = 'nope'\n")
	_, err := NewLoader().Load(path)
	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Reason, "unsupported")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.True(t, errors.Is(loadErr.Err, os.ErrNotExist))
}

func TestLoadSharedObjectGarbage(t *testing.T) {
	// A file with the .so extension that is not a valid shared object
	// must surface as a load error, not a panic.
	path := writeRuleFile(t, "fake.so", "not an ELF file")
	_, err := NewLoader().Load(path)
	var loadErr *PluginLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestPluginNameFromPath(t *testing.T) {
	assert.Equal(t, "team_rules", pluginNameFromPath("/tmp/rules/team_rules.yaml"))
	assert.Equal(t, "detector", pluginNameFromPath("detector.so"))
}
