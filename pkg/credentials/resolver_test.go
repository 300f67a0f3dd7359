/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package credentials

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestSuccessRatio(t *testing.T) {
	assert.Equal(t, SuccessRatio(0, 0), 1.0)
	assert.Equal(t, SuccessRatio(3, 1), 0.75)
	assert.Equal(t, SuccessRatio(0, 5), 0.0)
}

func TestRankByEvidencePriorityTiersFirst(t *testing.T) {
	candidates := []*Candidate{
		{CredentialId: "flaky-but-preferred", EffectivePriority: 10, SuccessCount: 1, FailureCount: 9},
		{CredentialId: "reliable-but-low", EffectivePriority: 20, SuccessCount: 100, FailureCount: 0},
	}
	ranked := RankByEvidence(candidates)
	assert.Equal(t, ranked[0].CredentialId, "flaky-but-preferred")
}

func TestRankByEvidenceWithinTier(t *testing.T) {
	candidates := []*Candidate{
		{CredentialId: "cred-a", EffectivePriority: 10, SuccessCount: 1, FailureCount: 9},
		{CredentialId: "cred-b", EffectivePriority: 10, SuccessCount: 9, FailureCount: 1},
		{CredentialId: "cred-c", EffectivePriority: 10}, // never tried
	}
	ranked := RankByEvidence(candidates)
	assert.Equal(t, ranked[0].CredentialId, "cred-c")
	assert.Equal(t, ranked[1].CredentialId, "cred-b")
	assert.Equal(t, ranked[2].CredentialId, "cred-a")
}

func TestRankByEvidenceRecentSuccessBreaksRatioTie(t *testing.T) {
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	candidates := []*Candidate{
		{CredentialId: "cred-a", EffectivePriority: 10, SuccessCount: 5, FailureCount: 5, LastSuccess: older},
		{CredentialId: "cred-b", EffectivePriority: 10, SuccessCount: 5, FailureCount: 5, LastSuccess: newer},
	}
	ranked := RankByEvidence(candidates)
	assert.Equal(t, ranked[0].CredentialId, "cred-b")
	assert.Equal(t, ranked[1].CredentialId, "cred-a")
}

func TestRankByEvidenceStableTiebreak(t *testing.T) {
	candidates := []*Candidate{
		{CredentialId: "cred-b", EffectivePriority: 10, SuccessCount: 5, FailureCount: 5},
		{CredentialId: "cred-a", EffectivePriority: 10, SuccessCount: 5, FailureCount: 5},
	}
	ranked := RankByEvidence(candidates)
	assert.Equal(t, ranked[0].CredentialId, "cred-a")
	assert.Equal(t, ranked[1].CredentialId, "cred-b")
}

func TestRankByEvidenceDoesNotMutateInput(t *testing.T) {
	candidates := []*Candidate{
		{CredentialId: "cred-b", EffectivePriority: 20},
		{CredentialId: "cred-a", EffectivePriority: 10},
	}
	_ = RankByEvidence(candidates)
	assert.Equal(t, candidates[0].CredentialId, "cred-b")
}

func TestPasswordWithoutSeal(t *testing.T) {
	r := &Resolver{}
	_, err := r.Password(&Candidate{CredentialId: "cred-a"})
	assert.ErrorContains(t, err, "no sealed secret")
}
