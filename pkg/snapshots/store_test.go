/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package snapshots

import (
	"strings"
	"testing"

	"gotest.tools/assert"
)

func TestCanonicalizeNormalizesLineEndings(t *testing.T) {
	got := Canonicalize("hostname r1\r\ninterface Gi0/0\r\n ip address 10.0.0.1\r\n")
	assert.Equal(t, got, "hostname r1\ninterface Gi0/0\n ip address 10.0.0.1\n")
}

func TestCanonicalizeStripsTrailingWhitespace(t *testing.T) {
	got := Canonicalize("hostname r1   \ninterface Gi0/0\t\n")
	assert.Equal(t, got, "hostname r1\ninterface Gi0/0\n")
}

func TestCanonicalizePreservesComments(t *testing.T) {
	raw := strings.Join([]string{
		"Building configuration...",
		"Current configuration : 1024 bytes",
		"! Last configuration change at 10:32:11 UTC Mon Aug 24 2026",
		"hostname r1",
		"interface Gi0/0",
	}, "\n")
	// header and comment lines are content; they survive byte for byte
	assert.Equal(t, Canonicalize(raw), raw+"\n")

	assert.Equal(t, Canonicalize("! Last configuration change at 12:00\nhostname d1\n"),
		"! Last configuration change at 12:00\nhostname d1\n")
}

func TestCanonicalizePreservesBlankLines(t *testing.T) {
	// interior and leading blank lines stay; only the trailing run collapses
	// to the single final newline
	got := Canonicalize("\n\nhostname r1\n\ninterface Gi0/0\n\n\n")
	assert.Equal(t, got, "\n\nhostname r1\n\ninterface Gi0/0\n")
	assert.Equal(t, Canonicalize("\r\n\n"), "")
	assert.Equal(t, Canonicalize(""), "")
}

func TestContentHashStableUnderWhitespaceNoise(t *testing.T) {
	a := Canonicalize("hostname r1\ninterface Gi0/0\n")
	b := Canonicalize("hostname r1   \r\ninterface Gi0/0\t\r\n")
	assert.Equal(t, ContentHash(a), ContentHash(b))

	// differing content, comments included, hashes differently
	c := Canonicalize("! Time: 10:00\nhostname r1\ninterface Gi0/0\n")
	assert.Assert(t, ContentHash(a) != ContentHash(c))
}

func TestDiffContentsIdentical(t *testing.T) {
	diff, err := DiffContents("h1", "h1", "hostname r1\n", "hostname r1\n")
	assert.NilError(t, err)
	assert.Assert(t, diff.Identical())
	assert.Equal(t, diff.Added, 0)
	assert.Equal(t, diff.Removed, 0)
}

func TestDiffContentsCountsChanges(t *testing.T) {
	from := "hostname r1\ninterface Gi0/0\n ip address 10.0.0.1\n"
	to := "hostname r1\ninterface Gi0/0\n ip address 10.0.0.2\n description uplink\n"
	diff, err := DiffContents("h1", "h2", from, to)
	assert.NilError(t, err)
	assert.Assert(t, !diff.Identical())
	assert.Equal(t, diff.Added, 2)
	assert.Equal(t, diff.Removed, 1)
	assert.Assert(t, strings.Contains(diff.Unified, "+ ip address 10.0.0.2"))
	assert.Assert(t, strings.Contains(diff.Unified, "- ip address 10.0.0.1"))
}
