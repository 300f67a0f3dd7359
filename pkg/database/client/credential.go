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
	"github.com/jmoiron/sqlx"
	"k8s.io/klog/v2"

	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
	commonerrors "github.com/ccieblogger/netraven-sub003/pkg/errors"
)

var (
	getCredentialCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE credential_id = $1 LIMIT 1`, TPCredentials)
	insertCredentialFormat = `INSERT INTO ` + TPCredentials + ` (%s) VALUES (%s)`
	updateCredentialCmd    = fmt.Sprintf(`UPDATE %s
		SET username = :username,
		    secret = :secret,
		    key_id = :key_id,
		    priority = :priority,
		    description = :description,
		    update_time = :update_time
		WHERE credential_id = :credential_id`, TPCredentials)

	// rankedCredentialCmd joins credentials to one device through shared tags.
	// A credential matches when it is bound to at least one tag the device
	// carries; its effective priority is the lowest number across those
	// bindings and the credential's own priority. Lower is better.
	rankedCredentialCmd = fmt.Sprintf(`
		SELECT c.*, MIN(LEAST(ct.priority, c.priority)) AS effective_priority
		FROM %s c
		JOIN %s ct ON ct.credential_id = c.credential_id
		JOIN %s dt ON dt.tag_id = ct.tag_id
		WHERE dt.device_id = $1
		GROUP BY c.id
		ORDER BY effective_priority ASC, c.success_count DESC, c.credential_id ASC`,
		TPCredentials, TPCredentialTags, TPDeviceTags)

	// tagRankedCredentialCmd ranks the credentials bound to one tag the same
	// way device resolution does: the binding priority caps the credential's
	// own priority.
	tagRankedCredentialCmd = fmt.Sprintf(`
		SELECT c.*, LEAST(ct.priority, c.priority) AS effective_priority
		FROM %s c
		JOIN %s ct ON ct.credential_id = c.credential_id
		WHERE ct.tag_id = $1
		ORDER BY effective_priority ASC, c.success_count DESC, c.credential_id ASC`,
		TPCredentials, TPCredentialTags)
)

// UpsertCredential inserts a credential or updates an existing one.
// The secret arrives already sealed; this layer never sees plaintext.
func (c *Client) UpsertCredential(ctx context.Context, credential *Credential) error {
	if credential == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	var credentials []*Credential
	if err = db.SelectContext(ctx, &credentials, getCredentialCmd, credential.CredentialId); err != nil {
		klog.ErrorS(err, "failed to select credential", "id", credential.CredentialId)
		return err
	}
	if len(credentials) > 0 && credentials[0] != nil {
		_, err = db.NamedExecContext(ctx, updateCredentialCmd, credential)
		if err != nil {
			klog.ErrorS(err, "failed to upsert credential db", "id", credential.CredentialId)
		}
	} else {
		_, err = db.NamedExecContext(ctx, generateCommand(*credential, insertCredentialFormat, "id"), credential)
		if err != nil {
			klog.ErrorS(err, "failed to insert credential db", "id", credential.CredentialId)
		}
	}
	return err
}

// GetCredential retrieves one credential by its id.
func (c *Client) GetCredential(ctx context.Context, credentialId string) (*Credential, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var credentials []*Credential
	if err = db.SelectContext(ctx, &credentials, getCredentialCmd, credentialId); err != nil {
		return nil, fmt.Errorf("failed to select credential from db: %v", err)
	}
	if len(credentials) == 0 || credentials[0] == nil {
		return nil, commonerrors.NewNotFound("credential", credentialId)
	}
	return credentials[0], nil
}

// SelectCredentials retrieves credentials based on query conditions.
func (c *Client) SelectCredentials(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Credential, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPCredentials)

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
		return nil, fmt.Errorf("failed to build select credentials query: %v", err)
	}

	var credentials []*Credential
	err = db.SelectContext(ctx, &credentials, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select credentials from db: %v", err)
	}
	return credentials, nil
}

// DeleteCredential removes a credential and its tag bindings.
func (c *Client) DeleteCredential(ctx context.Context, credentialId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE credential_id=$1`, TPCredentialTags)
	if _, err = db.ExecContext(ctx, cmd, credentialId); err != nil {
		klog.ErrorS(err, "failed to delete credential tags", "CredentialId", credentialId)
		return err
	}
	cmd = fmt.Sprintf(`DELETE FROM %s WHERE credential_id=$1`, TPCredentials)
	if _, err = db.ExecContext(ctx, cmd, credentialId); err != nil {
		klog.ErrorS(err, "failed to delete credential db", "CredentialId", credentialId)
		return err
	}
	return nil
}

// BindCredentialTag binds a credential to a tag with a binding priority.
// Re-binding updates the priority.
func (c *Client) BindCredentialTag(ctx context.Context, credentialId, tagId string, priority int) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`INSERT INTO %s (credential_id, tag_id, priority) VALUES ($1, $2, $3)
		ON CONFLICT (credential_id, tag_id) DO UPDATE SET priority = EXCLUDED.priority`, TPCredentialTags)
	_, err = db.ExecContext(ctx, cmd, credentialId, tagId, priority)
	if err != nil {
		klog.ErrorS(err, "failed to bind credential tag", "CredentialId", credentialId, "TagId", tagId)
		return err
	}
	return nil
}

// UnbindCredentialTag removes a credential-tag binding.
func (c *Client) UnbindCredentialTag(ctx context.Context, credentialId, tagId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE credential_id=$1 AND tag_id=$2`, TPCredentialTags)
	_, err = db.ExecContext(ctx, cmd, credentialId, tagId)
	return err
}

// SelectRankedCredentials returns all credentials matching a device via
// shared tags, ordered best-first by effective priority.
func (c *Client) SelectRankedCredentials(ctx context.Context, deviceId string) ([]*RankedCredential, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var ranked []*RankedCredential
	err = db.SelectContext(ctx, &ranked, rankedCredentialCmd, deviceId)
	if err != nil {
		return nil, fmt.Errorf("failed to select ranked credentials from db: %v", err)
	}
	return ranked, nil
}

// SelectTagRankedCredentials returns the credentials bound to a tag, ordered
// best-first by effective priority.
func (c *Client) SelectTagRankedCredentials(ctx context.Context, tagId string) ([]*RankedCredential, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var ranked []*RankedCredential
	err = db.SelectContext(ctx, &ranked, tagRankedCredentialCmd, tagId)
	if err != nil {
		return nil, fmt.Errorf("failed to select tag ranked credentials from db: %v", err)
	}
	return ranked, nil
}

// RecordCredentialUsage bumps the success or failure counter and the
// last-used timestamps after an authentication attempt.
func (c *Client) RecordCredentialUsage(ctx context.Context, credentialId string, success bool) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	now := dbutils.NullTime(time.Now().UTC())
	var cmd string
	if success {
		cmd = fmt.Sprintf(`UPDATE %s SET success_count=success_count+1, last_used=$1, last_success=$1
			WHERE credential_id=$2`, TPCredentials)
	} else {
		cmd = fmt.Sprintf(`UPDATE %s SET failure_count=failure_count+1, last_used=$1
			WHERE credential_id=$2`, TPCredentials)
	}
	_, err = db.ExecContext(ctx, cmd, now, credentialId)
	if err != nil {
		klog.ErrorS(err, "failed to record credential usage", "CredentialId", credentialId)
		return err
	}
	return nil
}

// SetCredentialPriority updates the base priority of a credential.
func (c *Client) SetCredentialPriority(ctx context.Context, credentialId string, priority int) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET priority=$1, update_time=$2 WHERE credential_id=$3`, TPCredentials)
	_, err = db.ExecContext(ctx, cmd, priority, dbutils.NullTime(time.Now().UTC()), credentialId)
	return err
}

// RotateCredentials re-seals every credential under a new key and makes that
// key the active one, all inside one transaction. The reseal callback
// decrypts a sealed secret with the old key material and returns it sealed
// under newKeyId. Any failure rolls back the whole rotation, so the table
// never holds a mix of old and new seals and the active key never moves
// without the seals moving with it.
func (c *Client) RotateCredentials(ctx context.Context, newKeyId string, reseal func(sealed, keyId string) (string, error)) error {
	if reseal == nil {
		return commonerrors.NewBadRequest("the reseal callback is empty")
	}
	return c.Transact(ctx, func(tx *sqlx.Tx) error {
		var credentials []*Credential
		cmd := fmt.Sprintf(`SELECT * FROM %s FOR UPDATE`, TPCredentials)
		if err := tx.SelectContext(ctx, &credentials, cmd); err != nil {
			return fmt.Errorf("failed to select credentials for rotation: %v", err)
		}
		updateCmd := fmt.Sprintf(`UPDATE %s SET secret=$1, key_id=$2, update_time=$3 WHERE credential_id=$4`, TPCredentials)
		now := dbutils.NullTime(time.Now().UTC())
		for _, credential := range credentials {
			resealed, err := reseal(credential.Secret, credential.KeyId)
			if err != nil {
				return commonerrors.NewVaultError(
					fmt.Sprintf("failed to reseal credential %s: %v", credential.CredentialId, err))
			}
			if _, err = tx.ExecContext(ctx, updateCmd, resealed, newKeyId, now, credential.CredentialId); err != nil {
				return fmt.Errorf("failed to update credential %s: %v", credential.CredentialId, err)
			}
		}

		retireCmd := fmt.Sprintf(`UPDATE %s SET active=false, retired_time=$1
			WHERE active=true AND key_id<>$2`, TPEncryptionKeys)
		if _, err := tx.ExecContext(ctx, retireCmd, now, newKeyId); err != nil {
			return fmt.Errorf("failed to retire encryption keys: %v", err)
		}
		activateCmd := fmt.Sprintf(`UPDATE %s SET active=true, retired_time=NULL
			WHERE key_id=$1`, TPEncryptionKeys)
		res, err := tx.ExecContext(ctx, activateCmd, newKeyId)
		if err != nil {
			return fmt.Errorf("failed to activate encryption key %s: %v", newKeyId, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return commonerrors.NewNotFound("encryption_key", newKeyId)
		}
		klog.Infof("rotated %d credentials to key %s", len(credentials), newKeyId)
		return nil
	})
}
