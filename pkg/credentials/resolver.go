/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package credentials matches credentials to devices through shared tags and
// keeps the ranking honest with per-credential usage counters.
package credentials

import (
	"context"
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
	"github.com/ccieblogger/netraven-sub003/pkg/vault"
)

// Candidate is one credential the resolver offers for a device, best first.
// The password is opened from the vault only when the candidate is handed
// out, never kept around.
type Candidate struct {
	CredentialId      string
	Username          string
	EffectivePriority int
	SuccessCount      int64
	FailureCount      int64
	LastSuccess       time.Time

	sealed string
}

// Resolver ranks credentials for devices.
type Resolver struct {
	dbClient *client.Client
	vault    *vault.Vault
}

// NewResolver builds a Resolver on the shared catalog client and vault.
func NewResolver(dbClient *client.Client, v *vault.Vault) *Resolver {
	return &Resolver{dbClient: dbClient, vault: v}
}

// Resolve returns the credentials matching a device ordered best-first:
// lowest effective priority, then highest success count, then credential id
// for a stable tiebreak. No match is an empty slice, not an error; the
// caller decides whether that fails the device.
func (r *Resolver) Resolve(ctx context.Context, deviceId string) ([]*Candidate, error) {
	ranked, err := r.dbClient.SelectRankedCredentials(ctx, deviceId)
	if err != nil {
		return nil, err
	}
	candidates := make([]*Candidate, 0, len(ranked))
	for _, row := range ranked {
		candidates = append(candidates, &Candidate{
			CredentialId:      row.CredentialId,
			Username:          row.Username,
			EffectivePriority: row.EffectivePriority,
			SuccessCount:      row.SuccessCount,
			FailureCount:      row.FailureCount,
			LastSuccess:       dbutils.ParseNullTime(row.LastSuccess),
			sealed:            row.Secret,
		})
	}
	return candidates, nil
}

// Password opens the sealed secret of a candidate.
func (r *Resolver) Password(candidate *Candidate) (string, error) {
	if candidate == nil || candidate.sealed == "" {
		return "", commonerrors.NewVaultError("candidate carries no sealed secret")
	}
	return r.vault.Open(candidate.sealed)
}

// RecordSuccess bumps the success counter after a working authentication.
func (r *Resolver) RecordSuccess(ctx context.Context, credentialId string) {
	if err := r.dbClient.RecordCredentialUsage(ctx, credentialId, true); err != nil {
		klog.ErrorS(err, "failed to record credential success", "CredentialId", credentialId)
	}
}

// RecordFailure bumps the failure counter after a rejected authentication.
func (r *Resolver) RecordFailure(ctx context.Context, credentialId string) {
	if err := r.dbClient.RecordCredentialUsage(ctx, credentialId, false); err != nil {
		klog.ErrorS(err, "failed to record credential failure", "CredentialId", credentialId)
	}
}

// SuccessRatio returns the observed success rate of a credential, defaulting
// to 1.0 for a credential that was never tried so new credentials are not
// penalized.
func SuccessRatio(success, failure int64) float64 {
	total := success + failure
	if total == 0 {
		return 1.0
	}
	return float64(success) / float64(total)
}

// RankByEvidence reorders candidates that share an effective priority by
// their observed success ratio. Priority tiers are never crossed: an
// operator-assigned priority always beats the statistics.
func RankByEvidence(candidates []*Candidate) []*Candidate {
	ranked := make([]*Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EffectivePriority != ranked[j].EffectivePriority {
			return ranked[i].EffectivePriority < ranked[j].EffectivePriority
		}
		ri := SuccessRatio(ranked[i].SuccessCount, ranked[i].FailureCount)
		rj := SuccessRatio(ranked[j].SuccessCount, ranked[j].FailureCount)
		if ri != rj {
			return ri > rj
		}
		if !ranked[i].LastSuccess.Equal(ranked[j].LastSuccess) {
			return ranked[i].LastSuccess.After(ranked[j].LastSuccess)
		}
		return ranked[i].CredentialId < ranked[j].CredentialId
	})
	return ranked
}

// SmartSelect returns the best n credentials bound to a tag, ranked the same
// way device resolution ranks them: the effective priority is the lower of
// the binding priority and the credential's own. n <= 0 returns the full
// ranked list.
func (r *Resolver) SmartSelect(ctx context.Context, tagId string, n int) ([]*Candidate, error) {
	rows, err := r.dbClient.SelectTagRankedCredentials(ctx, tagId)
	if err != nil {
		return nil, err
	}
	candidates := make([]*Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, &Candidate{
			CredentialId:      row.CredentialId,
			Username:          row.Username,
			EffectivePriority: row.EffectivePriority,
			SuccessCount:      row.SuccessCount,
			FailureCount:      row.FailureCount,
			LastSuccess:       dbutils.ParseNullTime(row.LastSuccess),
			sealed:            row.Secret,
		})
	}
	ranked := RankByEvidence(candidates)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// OptimizePriorities compacts the base priorities of the credentials bound
// to a tag: they are renumbered 10, 20, 30... in their current ranked order,
// so resolution order does not change. The gaps leave room for manual
// inserts.
func (r *Resolver) OptimizePriorities(ctx context.Context, tagId string) error {
	ranked, err := r.SmartSelect(ctx, tagId, 0)
	if err != nil {
		return err
	}
	for i, candidate := range ranked {
		priority := (i + 1) * 10
		if err = r.dbClient.SetCredentialPriority(ctx, candidate.CredentialId, priority); err != nil {
			return err
		}
	}
	return nil
}
