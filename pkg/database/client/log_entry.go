/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	insertLogEntryFormat = `INSERT INTO ` + TPLogEntries + ` (%s) VALUES (%s)`
)

// InsertLogEntries writes a batch of log entries in one statement.
func (c *Client) InsertLogEntries(ctx context.Context, entries []*LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*entries[0], insertLogEntryFormat, "id"), entries)
	if err != nil {
		return fmt.Errorf("failed to insert log_entries to db: %v", err)
	}
	return nil
}

// SelectLogEntries retrieves log entries based on query conditions.
func (c *Client) SelectLogEntries(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*LogEntry, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPLogEntries)

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
		return nil, fmt.Errorf("failed to build select log_entries query: %v", err)
	}

	var entries []*LogEntry
	err = db.SelectContext(ctx, &entries, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select log_entries from db: %v", err)
	}
	return entries, nil
}

// CountLogEntries counts log entries based on query conditions.
func (c *Client) CountLogEntries(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("COUNT(*)").From(TPLogEntries)
	if query != nil {
		builder = builder.Where(query)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count log_entries query: %v", err)
	}
	var count int
	err = db.GetContext(ctx, &count, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count log_entries from db: %v", err)
	}
	return count, nil
}

// DeleteLogEntriesBefore removes entries of the given sources older than the
// cutoff. Used by the retention sweeper with separate cutoffs for session
// logs and everything else.
func (c *Client) DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time, sources []string) (int64, error) {
	if len(sources) == 0 {
		return 0, commonerrors.NewBadRequest("the sources are empty")
	}
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	sql, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Delete(TPLogEntries).
		Where(sqrl.Lt{"ts": dbutils.NullTime(cutoff.UTC())}).
		Where(sqrl.Eq{"source": sources}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete log_entries query: %v", err)
	}
	res, err := db.ExecContext(ctx, sql, args...)
	if err != nil {
		klog.ErrorS(err, "failed to delete expired log_entries")
		return 0, err
	}
	return res.RowsAffected()
}
