/*
 * Copyright (C) 2025-2026, NetRaven Authors. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	dbutils "github.com/ccieblogger/netraven-sub003/pkg/database/utils"
)

var (
	// acquireLeaseCmd takes or renews a named lease in one statement. The
	// conditional update only fires when the row is expired or already held
	// by the same holder, so exactly one contender wins each TTL window.
	acquireLeaseCmd = fmt.Sprintf(`INSERT INTO %s (name, holder, expire_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET holder = EXCLUDED.holder, expire_time = EXCLUDED.expire_time
		WHERE %s.holder = EXCLUDED.holder OR %s.expire_time < $4`, TPLeases, TPLeases, TPLeases)

	releaseLeaseCmd = fmt.Sprintf(`UPDATE %s SET expire_time=$1 WHERE name=$2 AND holder=$3`, TPLeases)
)

// AcquireLease attempts to take or renew the named lease for holder, valid
// for ttl. Returns true when this holder owns the lease afterwards.
func (c *Client) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	db, err := c.getDB()
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, acquireLeaseCmd,
		name, holder, dbutils.NullTime(now.Add(ttl)), dbutils.NullTime(now))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %v", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseLease expires the named lease when held by holder, letting another
// contender take over without waiting out the TTL.
func (c *Client) ReleaseLease(ctx context.Context, name, holder string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, releaseLeaseCmd, dbutils.NullTime(time.Now().UTC()), name, holder)
	return err
}

// GetLease reads the current lease row.
func (c *Client) GetLease(ctx context.Context, name string) (*Lease, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE name=$1 LIMIT 1`, TPLeases)
	var leases []*Lease
	if err = db.SelectContext(ctx, &leases, cmd, name); err != nil {
		return nil, fmt.Errorf("failed to select lease from db: %v", err)
	}
	if len(leases) == 0 {
		return nil, nil
	}
	return leases[0], nil
}
