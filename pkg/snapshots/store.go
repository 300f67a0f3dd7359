/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package snapshots stores device configuration captures deduplicated by
// content. Identical canonical content is stored once; every capture adds a
// cheap reference row pointing at it.
package snapshots

import (
	"context"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	"github.com/ccieblogger/netraven-sub003/pkg/database/client"
	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	"github.com/ccieblogger/netraven-sub003/pkg/utils/stringutil"
)

// Store persists canonicalized snapshots.
type Store struct {
	dbClient *client.Client
}

// NewStore builds a Store on the shared catalog client.
func NewStore(dbClient *client.Client) *Store {
	return &Store{dbClient: dbClient}
}

// Canonicalize normalizes line endings and trailing whitespace of a raw
// capture, and nothing else: CRLF to LF, trailing spaces and tabs stripped
// per line, exactly one trailing newline. Content is never rewritten;
// comment lines and interior blank lines survive byte for byte.
func Canonicalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	canonical := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if canonical == "" {
		return ""
	}
	return canonical + "\n"
}

// ContentHash returns the dedup key of a canonical body.
func ContentHash(canonical string) string {
	return stringutil.SHA256Hex([]byte(canonical))
}

// Save canonicalizes a capture, stores the body once per unique content, and
// records a reference for the run/device. Returns the content hash and
// whether the body was new to the store.
func (s *Store) Save(ctx context.Context, runId, deviceId, raw string) (string, bool, error) {
	canonical := Canonicalize(raw)
	hash := ContentHash(canonical)
	now := dbutils.NullTime(time.Now().UTC())

	created, err := s.dbClient.InsertSnapshot(ctx, &client.Snapshot{
		ContentHash: hash,
		Content:     []byte(canonical),
		FirstSeen:   now,
	})
	if err != nil {
		return "", false, err
	}
	err = s.dbClient.InsertSnapshotRef(ctx, &client.SnapshotRef{
		ContentHash: hash,
		RunId:       runId,
		DeviceId:    deviceId,
		CreateTime:  now,
	})
	if err != nil {
		return "", false, err
	}
	if created {
		klog.V(2).Infof("stored new snapshot %s for device %s", stringutil.Truncate(hash, 12), deviceId)
	}
	return hash, created, nil
}

// Get returns the canonical body stored under a content hash.
func (s *Store) Get(ctx context.Context, contentHash string) (string, error) {
	snapshot, err := s.dbClient.GetSnapshot(ctx, contentHash)
	if err != nil {
		return "", err
	}
	return string(snapshot.Content), nil
}

// Latest returns the most recent content hash captured for a device, or ""
// when the device has no snapshots yet.
func (s *Store) Latest(ctx context.Context, deviceId string) (string, error) {
	refs, err := s.dbClient.SelectSnapshotRefs(ctx,
		sqrl.Eq{"device_id": deviceId}, []string{"create_time DESC", "id DESC"}, 1, 0)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", nil
	}
	return refs[0].ContentHash, nil
}

// Prune drops snapshot bodies that no reference points at any more.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	return s.dbClient.PruneOrphanSnapshots(ctx)
}
