/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package snapshots

import (
	"context"
	"fmt"
	"strings"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/pmezard/go-difflib/difflib"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

// Diff is a line-oriented comparison of two stored snapshots.
type Diff struct {
	FromHash string `json:"from_hash"`
	ToHash   string `json:"to_hash"`
	// Unified is a unified-format patch, empty when the bodies are equal.
	Unified string `json:"unified"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

// Identical reports whether the two bodies were equal.
func (d *Diff) Identical() bool {
	return d.Unified == ""
}

// Compare loads two snapshots captured from one device and diffs them. A
// hash with no reference row for the device is rejected, so snapshots of
// unrelated devices never diff against each other.
func (s *Store) Compare(ctx context.Context, deviceId, fromHash, toHash string) (*Diff, error) {
	for _, hash := range []string{fromHash, toHash} {
		if err := s.verifyRef(ctx, deviceId, hash); err != nil {
			return nil, err
		}
	}
	from, err := s.Get(ctx, fromHash)
	if err != nil {
		return nil, err
	}
	to, err := s.Get(ctx, toHash)
	if err != nil {
		return nil, err
	}
	return DiffContents(fromHash, toHash, from, to)
}

func (s *Store) verifyRef(ctx context.Context, deviceId, contentHash string) error {
	refs, err := s.dbClient.SelectSnapshotRefs(ctx,
		sqrl.And{sqrl.Eq{"device_id": deviceId}, sqrl.Eq{"content_hash": contentHash}}, nil, 1, 0)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return commonerrors.NewBadRequest(
			fmt.Sprintf("snapshot %s was not captured from device %s", contentHash, deviceId))
	}
	return nil
}

// DiffContents diffs two canonical bodies without touching storage.
func DiffContents(fromHash, toHash, from, to string) (*Diff, error) {
	diff := &Diff{FromHash: fromHash, ToHash: toHash}
	if from == to {
		return diff, nil
	}
	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: fromHash,
		ToFile:   toHash,
		Context:  3,
	})
	if err != nil {
		return nil, err
	}
	diff.Unified = unified
	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			diff.Added++
		case strings.HasPrefix(line, "-"):
			diff.Removed++
		}
	}
	return diff, nil
}
