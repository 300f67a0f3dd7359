/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	getEncryptionKeyCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE key_id = $1 LIMIT 1`, TPEncryptionKeys)
	getActiveKeyCmd           = fmt.Sprintf(`SELECT * FROM %s WHERE active = true LIMIT 1`, TPEncryptionKeys)
	insertEncryptionKeyFormat = `INSERT INTO ` + TPEncryptionKeys + ` (%s) VALUES (%s)`
)

// InsertEncryptionKey records key metadata. Only metadata lives in the db;
// key material is always re-derived from the master secret.
func (c *Client) InsertEncryptionKey(ctx context.Context, key *EncryptionKey) error {
	if key == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, generateCommand(*key, insertEncryptionKeyFormat, "id"), key)
	if err != nil {
		return fmt.Errorf("failed to insert encryption_key to db: %v", err)
	}
	return nil
}

// GetEncryptionKey retrieves key metadata by id.
func (c *Client) GetEncryptionKey(ctx context.Context, keyId string) (*EncryptionKey, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var keys []*EncryptionKey
	if err = db.SelectContext(ctx, &keys, getEncryptionKeyCmd, keyId); err != nil {
		return nil, fmt.Errorf("failed to select encryption_key from db: %v", err)
	}
	if len(keys) == 0 || keys[0] == nil {
		return nil, commonerrors.NewNotFound("encryption_key", keyId)
	}
	return keys[0], nil
}

// GetActiveEncryptionKey returns the key new seals must use.
func (c *Client) GetActiveEncryptionKey(ctx context.Context) (*EncryptionKey, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var keys []*EncryptionKey
	if err = db.SelectContext(ctx, &keys, getActiveKeyCmd); err != nil {
		return nil, fmt.Errorf("failed to select active encryption_key from db: %v", err)
	}
	if len(keys) == 0 || keys[0] == nil {
		return nil, commonerrors.NewNotFound("encryption_key", "active")
	}
	return keys[0], nil
}

