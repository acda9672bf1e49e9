// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"fmt"
	"strings"

	"github.com/hackvet/hackvet/pkg/ux"
	"github.com/hackvet/hackvet/services/rule_engine"
)

// reportFindingLimit caps how many findings the human report lists.
// The full set is always available through the JSON output.
const reportFindingLimit = 10

// RenderReport formats a result as a human verdict report. Styling
// follows pkg/ux, so piped output comes out plain.
func RenderReport(r *ValidationResult) string {
	var b strings.Builder

	verdict, style := "PASSED", ux.Styles.Success
	if !r.Passed {
		verdict, style = "FAILED", ux.Styles.Error
	}
	banner := fmt.Sprintf("%s  %s", verdict, r.RepoURL)
	if ux.Plain() {
		b.WriteString(banner + "\n")
	} else {
		b.WriteString(style.Bold(true).Render(banner) + "\n")
	}

	writeLine(&b, "run", r.RunID)
	writeLine(&b, "ai score", fmt.Sprintf("%.4f", r.AIScore))
	writeLine(&b, "files scanned", fmt.Sprintf("%d", r.FilesScanned))
	writeLine(&b, "findings", fmt.Sprintf("%d (%d high)", len(r.Findings), r.HighSeverityCount()))

	b.WriteString("\n")
	if r.Provenance.Available {
		writeLine(&b, "repo created", r.Provenance.CreatedAt.Format("2006-01-02 15:04 UTC"))
		writeLine(&b, "created in window", fmt.Sprintf("%v", r.Provenance.CreatedDuringWindow))
		writeLine(&b, "commits in window", fmt.Sprintf("%d of %d", r.Provenance.CommitsDuringWindow, r.Provenance.TotalCommits))
	} else {
		writeLine(&b, "provenance", "unavailable")
	}

	if len(r.Reasons) > 0 {
		b.WriteString("\n" + heading("Failure reasons") + "\n")
		for _, reason := range r.Reasons {
			b.WriteString("  " + ux.IconError.Render() + " " + reason + "\n")
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n" + heading("Warnings") + "\n")
		for _, w := range r.Warnings {
			b.WriteString("  " + ux.IconWarning.Render() + " " + w + "\n")
		}
	}

	if len(r.Findings) > 0 {
		b.WriteString("\n" + heading("Findings") + "\n")
		for i, f := range r.Findings {
			if i == reportFindingLimit {
				b.WriteString(mutedLine(fmt.Sprintf("  ... and %d more", len(r.Findings)-reportFindingLimit)))
				break
			}
			loc := f.File
			if f.Line > 0 {
				loc = fmt.Sprintf("%s:%d", f.File, f.Line)
			}
			b.WriteString(fmt.Sprintf("  %s [%s] %s  %s\n",
				severityIcon(f.Severity).Render(), f.Severity, f.Rule, mutedText(loc)))
			if f.Excerpt != "" {
				b.WriteString(mutedLine("      " + f.Excerpt))
			}
		}
	}

	if r.Devpost != nil {
		b.WriteString("\n" + heading("Devpost") + "\n")
		writeLine(&b, "title", r.Devpost.Title)
		writeLine(&b, "team", strings.Join(r.Devpost.TeamMembers, ", "))
		writeLine(&b, "technologies", strings.Join(r.Devpost.Technologies, ", "))
		writeLine(&b, "mentions ai tools", fmt.Sprintf("%v", r.Devpost.MentionsAITools))
	}

	return b.String()
}

func severityIcon(s rule_engine.Severity) ux.Icon {
	switch s {
	case rule_engine.SeverityHigh:
		return ux.IconError
	case rule_engine.SeverityMedium:
		return ux.IconWarning
	default:
		return ux.IconBullet
	}
}

func heading(text string) string {
	if ux.Plain() {
		return text + ":"
	}
	return ux.Styles.Subtitle.Render(text)
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	// Pad before styling so ANSI codes do not skew the column width.
	b.WriteString("  " + mutedText(fmt.Sprintf("%-18s", label)) + " " + value + "\n")
}

func mutedText(s string) string {
	if ux.Plain() || s == "" {
		return s
	}
	return ux.Styles.Muted.Render(s)
}

func mutedLine(s string) string {
	return mutedText(s) + "\n"
}
