/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	getSnapshotCmd = fmt.Sprintf(`SELECT * FROM %s WHERE content_hash = $1 LIMIT 1`, TPSnapshots)

	// insertSnapshotCmd dedupes on content hash: identical canonical content
	// is stored once no matter how many runs produce it.
	insertSnapshotCmd = fmt.Sprintf(`INSERT INTO %s (content_hash, content, first_seen)
		VALUES (:content_hash, :content, :first_seen)
		ON CONFLICT (content_hash) DO NOTHING`, TPSnapshots)

	insertSnapshotRefFormat = `INSERT INTO ` + TPSnapshotRefs + ` (%s) VALUES (%s)`
)

// InsertSnapshot stores a canonicalized snapshot body, deduplicating by
// content hash. Returns true when a new row was created.
func (c *Client) InsertSnapshot(ctx context.Context, snapshot *Snapshot) (bool, error) {
	if snapshot == nil {
		return false, commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return false, err
	}
	res, err := db.NamedExecContext(ctx, insertSnapshotCmd, snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot to db: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetSnapshot retrieves a snapshot body by content hash.
func (c *Client) GetSnapshot(ctx context.Context, contentHash string) (*Snapshot, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var snapshots []*Snapshot
	if err = db.SelectContext(ctx, &snapshots, getSnapshotCmd, contentHash); err != nil {
		return nil, fmt.Errorf("failed to select snapshot from db: %v", err)
	}
	if len(snapshots) == 0 || snapshots[0] == nil {
		return nil, commonerrors.NewNotFound("snapshot", contentHash)
	}
	return snapshots[0], nil
}

// InsertSnapshotRef links a run/device capture to its deduplicated body.
func (c *Client) InsertSnapshotRef(ctx context.Context, ref *SnapshotRef) error {
	if ref == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*ref, insertSnapshotRefFormat, "id"), ref)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot_ref to db: %v", err)
	}
	return nil
}

// SelectSnapshotRefs retrieves refs based on query conditions, newest first
// unless the caller orders otherwise.
func (c *Client) SelectSnapshotRefs(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*SnapshotRef, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPSnapshotRefs)

	if query != nil {
		builder = builder.Where(query)
	}
	for _, order := range orderBy {
		builder = builder.OrderBy(order)
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select snapshot_refs query: %v", err)
	}

	var refs []*SnapshotRef
	err = db.SelectContext(ctx, &refs, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshot_refs from db: %v", err)
	}
	return refs, nil
}

// CountSnapshotRefs counts refs pointing at one content hash.
func (c *Client) CountSnapshotRefs(ctx context.Context, contentHash string) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	cmd := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE content_hash=$1`, TPSnapshotRefs)
	var count int
	err = db.GetContext(ctx, &count, cmd, contentHash)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshot_refs from db: %v", err)
	}
	return count, nil
}

// PruneOrphanSnapshots removes snapshot bodies no ref points at.
func (c *Client) PruneOrphanSnapshots(ctx context.Context) (int64, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s s WHERE NOT EXISTS
		(SELECT 1 FROM %s r WHERE r.content_hash = s.content_hash)`, TPSnapshots, TPSnapshotRefs)
	res, err := db.ExecContext(ctx, cmd)
	if err != nil {
		klog.ErrorS(err, "failed to prune orphan snapshots")
		return 0, err
	}
	return res.RowsAffected()
}
