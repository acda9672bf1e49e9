// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rule_engine

import (
	"fmt"
	"math"
)

// SeverityWeights maps each severity to its score contribution.
type SeverityWeights map[Severity]float64

// DefaultWeights returns the standard severity weighting.
func DefaultWeights() SeverityWeights {
	return SeverityWeights{
		SeverityLow:    0.05,
		SeverityMedium: 0.15,
		SeverityHigh:   0.35,
	}
}

// Scorer aggregates findings into a bounded AI-likelihood score.
//
// The score is 1 - exp(-sum of weights), a saturating sum: it stays in
// [0, 1), every additional finding strictly increases it, and a pile
// of low-severity coincidences cannot trivially outrank one
// high-severity signature. A plain linear sum would let twenty
// accidental debug-statement hits outscore an explicit AI attribution
// comment, which is exactly the wrong ordering for review queues.
type Scorer struct {
	weights SeverityWeights
}

// NewScorer builds a Scorer with the given weights. Missing severities
// fall back to the defaults; a zero or negative weight is rejected
// because it would break the strict-monotonicity guarantee.
func NewScorer(weights SeverityWeights) (*Scorer, error) {
	merged := DefaultWeights()
	for severity, w := range weights {
		if !severity.Valid() {
			return nil, fmt.Errorf("unknown severity %q in weights", severity)
		}
		if w <= 0 {
			return nil, fmt.Errorf("weight for severity %q must be positive, got %v", severity, w)
		}
		merged[severity] = w
	}
	return &Scorer{weights: merged}, nil
}

// Score folds findings into a single value in [0, 1). An empty finding
// set scores exactly 0.
func (s *Scorer) Score(findings []Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var total float64
	for _, f := range findings {
		total += s.weights[f.Severity]
	}
	return 1 - math.Exp(-total)
}

// DecisionConfig carries the thresholds Decide applies. It is the
// engine-facing slice of the hackathon configuration.
type DecisionConfig struct {
	// AIThreshold is the score above which a submission fails when AI
	// tools are disallowed. Must be inside [0, 1].
	AIThreshold float64

	// AllowAITools disables the threshold failure entirely: findings
	// are still reported, but the score alone cannot fail a project.
	AllowAITools bool

	// DisqualifyHighSeverity makes any single high-severity finding an
	// automatic failure, independent of the aggregate score.
	DisqualifyHighSeverity bool
}

// Decision is the outcome of Decide. Each failure reason is surfaced
// separately so reports can show why a submission failed, not just
// that it did.
type Decision struct {
	Passed  bool
	Reasons []string
}

// Decide applies config to an already-computed score and its findings.
// The two failure conditions are independent and both are reported
// when both hold.
func (s *Scorer) Decide(score float64, findings []Finding, config DecisionConfig) Decision {
	var reasons []string

	if !config.AllowAITools && score > config.AIThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"ai likelihood score %.4f exceeds threshold %.2f", score, config.AIThreshold))
	}

	if config.DisqualifyHighSeverity {
		for _, f := range findings {
			if f.Severity == SeverityHigh {
				reasons = append(reasons, fmt.Sprintf(
					"high-severity finding from rule %q is automatically disqualifying", f.Rule))
				break
			}
		}
	}

	return Decision{Passed: len(reasons) == 0, Reasons: reasons}
}
