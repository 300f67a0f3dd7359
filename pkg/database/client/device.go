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
	getDeviceCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE device_id = $1 LIMIT 1`, TPDevices)
	insertDeviceFormat = `INSERT INTO ` + TPDevices + ` (%s) VALUES (%s)`
	updateDeviceCmd    = fmt.Sprintf(`UPDATE %s
		SET hostname = :hostname,
		    host = :host,
		    transport = :transport,
		    port = :port,
		    description = :description,
		    model = :model,
		    serial_number = :serial_number,
		    owner_id = :owner_id,
		    update_time = :update_time
		WHERE device_id = :device_id`, TPDevices)
)

// UpsertDevice inserts a device or updates the inventory fields of an
// existing one. Reachability fields are owned by SetDeviceReachability.
func (c *Client) UpsertDevice(ctx context.Context, device *Device) error {
	if device == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}

	var devices []*Device
	if err = db.SelectContext(ctx, &devices, getDeviceCmd, device.DeviceId); err != nil {
		klog.ErrorS(err, "failed to select device", "id", device.DeviceId)
		return err
	}
	if len(devices) > 0 && devices[0] != nil {
		_, err = db.NamedExecContext(ctx, updateDeviceCmd, device)
		if err != nil {
			klog.ErrorS(err, "failed to upsert device db", "id", device.DeviceId)
		}
	} else {
		_, err = db.NamedExecContext(ctx, generateCommand(*device, insertDeviceFormat, "id"), device)
		if err != nil {
			klog.ErrorS(err, "failed to insert device db", "id", device.DeviceId)
		}
	}
	return err
}

// GetDevice retrieves one device by its id.
func (c *Client) GetDevice(ctx context.Context, deviceId string) (*Device, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var devices []*Device
	if err = db.SelectContext(ctx, &devices, getDeviceCmd, deviceId); err != nil {
		return nil, fmt.Errorf("failed to select device from db: %v", err)
	}
	if len(devices) == 0 || devices[0] == nil {
		return nil, commonerrors.NewNotFound("Device", deviceId)
	}
	return devices[0], nil
}

// SelectDevices retrieves devices based on query conditions.
func (c *Client) SelectDevices(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*Device, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}

	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPDevices)

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
		return nil, fmt.Errorf("failed to build select devices query: %v", err)
	}

	var devices []*Device
	err = db.SelectContext(ctx, &devices, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select devices from db: %v", err)
	}
	return devices, nil
}

// CountDevices counts devices based on query conditions.
func (c *Client) CountDevices(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("COUNT(*)").From(TPDevices)
	if query != nil {
		builder = builder.Where(query)
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count devices query: %v", err)
	}
	var count int
	err = db.GetContext(ctx, &count, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices from db: %v", err)
	}
	return count, nil
}

// DeleteDevice removes a device and its tag bindings.
func (c *Client) DeleteDevice(ctx context.Context, deviceId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE device_id=$1`, TPDeviceTags)
	if _, err = db.ExecContext(ctx, cmd, deviceId); err != nil {
		klog.ErrorS(err, "failed to delete device tags", "DeviceId", deviceId)
		return err
	}
	cmd = fmt.Sprintf(`DELETE FROM %s WHERE device_id=$1`, TPDevices)
	if _, err = db.ExecContext(ctx, cmd, deviceId); err != nil {
		klog.ErrorS(err, "failed to delete device db", "DeviceId", deviceId)
		return err
	}
	return nil
}

// SetDeviceReachability records the outcome of the latest reachability probe.
func (c *Client) SetDeviceReachability(ctx context.Context, deviceId, status, message string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`UPDATE %s SET reach_status=$1, reach_message=$2, reach_time=$3 WHERE device_id=$4`, TPDevices)
	_, err = db.ExecContext(ctx, cmd, status, message, dbutils.NullTime(time.Now().UTC()), deviceId)
	if err != nil {
		klog.ErrorS(err, "failed to update device db", "DeviceId", deviceId)
		return err
	}
	return nil
}

// SelectDevicesByTags returns devices bound to any of the given tags.
func (c *Client) SelectDevicesByTags(ctx context.Context, tagIds []string) ([]*Device, error) {
	if len(tagIds) == 0 {
		return nil, nil
	}
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	sql, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("DISTINCT d.*").
		From(TPDevices + " d").
		Join(TPDeviceTags + " dt ON dt.device_id = d.device_id").
		Where(sqrl.Eq{"dt.tag_id": tagIds}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select devices by tags query: %v", err)
	}
	var devices []*Device
	err = db.SelectContext(ctx, &devices, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select devices by tags from db: %v", err)
	}
	return devices, nil
}
