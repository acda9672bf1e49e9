// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hackvet/hackvet/services/rule_engine"
)

// Thresholds are the decision knobs a hackathon config carries.
type Thresholds struct {
	// AIThreshold is the AI-likelihood score above which a submission
	// fails when AI tools are disallowed.
	AIThreshold float64 `yaml:"ai_threshold" validate:"gte=0,lte=1"`

	// DisqualifyHighSeverity fails a submission on any single
	// high-severity finding regardless of the aggregate score.
	DisqualifyHighSeverity bool `yaml:"disqualify_high_severity"`
}

// DefaultThresholds returns the standard decision thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{AIThreshold: 0.5}
}

// HackathonConfig describes one hackathon's validation policy. It is
// an immutable value object: construct it, validate it, hand it to a
// Validator. Changing policy means building a new config and a new
// Validator session.
type HackathonConfig struct {
	Name      string    `yaml:"name" validate:"required"`
	StartDate time.Time `yaml:"start_date" validate:"required"`
	EndDate   time.Time `yaml:"end_date" validate:"required,gtfield=StartDate"`

	RequiredTechnologies   []string `yaml:"required_technologies,omitempty"`
	DisallowedTechnologies []string `yaml:"disallowed_technologies,omitempty"`
	MaxTeamSize            int      `yaml:"max_team_size,omitempty" validate:"gte=0"`

	// AllowAITools disables the score-threshold failure. Findings are
	// still collected and reported.
	AllowAITools bool `yaml:"allow_ai_tools"`

	Thresholds Thresholds `yaml:"thresholds"`

	// SeverityWeights overrides the default per-severity score
	// contributions. Absent severities keep their defaults.
	SeverityWeights map[string]float64 `yaml:"severity_weights,omitempty"`
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateWeightKeys, HackathonConfig{})
	return v
}

// validateWeightKeys rejects weight overrides for severities the
// engine does not define. A typo here would otherwise silently leave
// the default weight in force.
func validateWeightKeys(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(HackathonConfig)
	for key, weight := range cfg.SeverityWeights {
		if !rule_engine.Severity(key).Valid() {
			sl.ReportError(cfg.SeverityWeights, "SeverityWeights", "severity_weights", "severityname", key)
		}
		if weight <= 0 {
			sl.ReportError(cfg.SeverityWeights, "SeverityWeights", "severity_weights", "severityweight", key)
		}
	}
}

// Validate checks the config against its declared constraints.
func (c HackathonConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid hackathon config %q: %w", c.Name, err)
	}
	return nil
}

// Window returns the hackathon's contest window in UTC.
func (c HackathonConfig) Window() (start, end time.Time) {
	return c.StartDate.UTC(), c.EndDate.UTC()
}

// DecisionConfig projects the config onto the engine's decision knobs.
func (c HackathonConfig) DecisionConfig() rule_engine.DecisionConfig {
	return rule_engine.DecisionConfig{
		AIThreshold:            c.Thresholds.AIThreshold,
		AllowAITools:           c.AllowAITools,
		DisqualifyHighSeverity: c.Thresholds.DisqualifyHighSeverity,
	}
}

// WeightOverrides converts the YAML-level weight map to the engine's
// typed form.
func (c HackathonConfig) WeightOverrides() rule_engine.SeverityWeights {
	if len(c.SeverityWeights) == 0 {
		return nil
	}
	weights := make(rule_engine.SeverityWeights, len(c.SeverityWeights))
	for key, w := range c.SeverityWeights {
		weights[rule_engine.Severity(key)] = w
	}
	return weights
}

// ConfigStore persists named hackathon configs as YAML files under the
// hackvet home directory.
type ConfigStore struct {
	dir string
}

// NewConfigStore opens (creating if needed) the config directory. An
// empty dir defaults to ~/.hackvet/configs.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".hackvet", "configs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return &ConfigStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *ConfigStore) Dir() string { return s.dir }

// Save validates and writes the config under its name.
func (s *ConfigStore) Save(cfg HackathonConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding config %q: %w", cfg.Name, err)
	}
	path := s.path(cfg.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing config %q: %w", cfg.Name, err)
	}
	return path, nil
}

// Load reads and validates a named config.
func (s *ConfigStore) Load(name string) (HackathonConfig, error) {
	var cfg HackathonConfig
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return cfg, fmt.Errorf("loading config %q: %w", name, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", name, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// List returns the names of every stored config.
func (s *ConfigStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing configs: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *ConfigStore) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}
