package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"weather_station/internal/models"
)

// DeviceSQLite stores registered stations and their HMAC secrets.
type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite {
	return &DeviceSQLite{db: db}
}

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	insertDeviceSQL  = `INSERT INTO devices (id, name, secret, created_at) VALUES (?, ?, ?, ?)`
	selectDeviceSQL  = `SELECT id, name, secret, created_at, last_seen FROM devices WHERE id = ?`
	selectDevicesSQL = `SELECT id, name, secret, created_at, last_seen FROM devices ORDER BY created_at ASC`
	touchDeviceSQL   = `UPDATE devices SET last_seen = ? WHERE id = ?`
)

func (r *DeviceSQLite) Create(ctx context.Context, d models.Device) error {
	if _, err := r.db.ExecContext(ctx, insertDeviceSQL, d.ID, d.Name, d.Secret, d.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert device %s: %w", d.ID, err)
	}
	return nil
}

// Get returns (nil, nil) for an unknown device.
func (r *DeviceSQLite) Get(ctx context.Context, id string) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, selectDeviceSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select device %s: %w", id, err)
	}
	return d, nil
}

func (r *DeviceSQLite) List(ctx context.Context) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer rows.Close()

	var out []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Touch records the last time a device was heard from.
func (r *DeviceSQLite) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, touchDeviceSQL, at.UTC(), id); err != nil {
		return fmt.Errorf("touch device %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		d        models.Device
		lastSeen sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Secret, &d.CreatedAt, &lastSeen); err != nil {
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	if lastSeen.Valid {
		t := lastSeen.Time.UTC()
		d.LastSeen = &t
	}
	return &d, nil
}
