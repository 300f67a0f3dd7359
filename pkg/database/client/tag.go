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
	getTagCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE tag_id = $1 LIMIT 1`, TPTags)
	insertTagFormat = `INSERT INTO ` + TPTags + ` (%s) VALUES (%s)`
)

// InsertTag inserts a new tag.
func (c *Client) InsertTag(ctx context.Context, tag *Tag) error {
	if tag == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*tag, insertTagFormat, "id"), tag)
	if err != nil {
		return fmt.Errorf("failed to insert tag to db: %v", err)
	}
	return nil
}

// GetTag retrieves one tag by its id.
func (c *Client) GetTag(ctx context.Context, tagId string) (*Tag, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var tags []*Tag
	if err = db.SelectContext(ctx, &tags, getTagCmd, tagId); err != nil {
		return nil, fmt.Errorf("failed to select tag from db: %v", err)
	}
	if len(tags) == 0 || tags[0] == nil {
		return nil, commonerrors.NewNotFound("tag", tagId)
	}
	return tags[0], nil
}

// SelectTags retrieves tags based on query conditions.
func (c *Client) SelectTags(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Tag, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPTags)

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
		return nil, fmt.Errorf("failed to build select tags query: %v", err)
	}

	var tags []*Tag
	err = db.SelectContext(ctx, &tags, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags from db: %v", err)
	}
	return tags, nil
}

// DeleteTag removes a tag and every binding referring to it.
func (c *Client) DeleteTag(ctx context.Context, tagId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	for _, table := range []string{TPDeviceTags, TPCredentialTags} {
		cmd := fmt.Sprintf(`DELETE FROM %s WHERE tag_id=$1`, table)
		if _, err = db.ExecContext(ctx, cmd, tagId); err != nil {
			klog.ErrorS(err, "failed to delete tag bindings", "TagId", tagId, "table", table)
			return err
		}
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE tag_id=$1`, TPTags)
	if _, err = db.ExecContext(ctx, cmd, tagId); err != nil {
		klog.ErrorS(err, "failed to delete tag db", "TagId", tagId)
		return err
	}
	return nil
}

// BindDeviceTag binds a device to a tag. Re-binding is a no-op.
func (c *Client) BindDeviceTag(ctx context.Context, deviceId, tagId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`INSERT INTO %s (device_id, tag_id) VALUES ($1, $2)
		ON CONFLICT (device_id, tag_id) DO NOTHING`, TPDeviceTags)
	_, err = db.ExecContext(ctx, cmd, deviceId, tagId)
	if err != nil {
		klog.ErrorS(err, "failed to bind device tag", "DeviceId", deviceId, "TagId", tagId)
		return err
	}
	return nil
}

// UnbindDeviceTag removes a device-tag binding.
func (c *Client) UnbindDeviceTag(ctx context.Context, deviceId, tagId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE device_id=$1 AND tag_id=$2`, TPDeviceTags)
	_, err = db.ExecContext(ctx, cmd, deviceId, tagId)
	return err
}

// SelectDeviceTagIds returns the ids of all tags bound to a device.
func (c *Client) SelectDeviceTagIds(ctx context.Context, deviceId string) ([]string, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	cmd := fmt.Sprintf(`SELECT tag_id FROM %s WHERE device_id=$1`, TPDeviceTags)
	var tagIds []string
	err = db.SelectContext(ctx, &tagIds, cmd, deviceId)
	if err != nil {
		return nil, fmt.Errorf("failed to select device tags from db: %v", err)
	}
	return tagIds, nil
}
