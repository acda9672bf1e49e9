// Copyright (C) 2026 HackVet Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package builtin

import (
	"strings"
	"testing"

	"github.com/hackvet/hackvet/services/rule_engine"
)

func TestSpecsParseAndCompile(t *testing.T) {
	specs, err := Specs()
	if err != nil {
		t.Fatalf("Specs() failed: %v", err)
	}
	if len(specs) == 0 {
		t.Fatal("embedded rule set is empty")
	}

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			t.Errorf("duplicate rule name %q", spec.Name)
		}
		seen[spec.Name] = true
		if _, err := rule_engine.NewRule(spec, rule_engine.SourceBuiltin); err != nil {
			t.Errorf("rule %q does not compile: %v", spec.Name, err)
		}
	}
}

func TestChecksumStable(t *testing.T) {
	sum := Checksum()
	if !strings.HasPrefix(sum, "sha256:") {
		t.Errorf("checksum %q missing algorithm prefix", sum)
	}
	if len(sum) != len("sha256:")+64 {
		t.Errorf("checksum %q has unexpected length", sum)
	}
	if Checksum() != sum {
		t.Error("checksum not deterministic")
	}
}

func TestRawReturnsCopy(t *testing.T) {
	a := Raw()
	if len(a) == 0 {
		t.Fatal("Raw() returned no bytes")
	}
	a[0] ^= 0xff
	if b := Raw(); b[0] == a[0] {
		t.Error("Raw() exposes the embedded buffer to mutation")
	}
}
