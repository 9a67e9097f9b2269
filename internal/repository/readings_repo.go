package repository

import (
	"context"
	"database/sql"
	"fmt"

	"weather_station/internal/models"
)

// ReadingSQLite persists the ingestion buffer.
type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	readingColumns = `device_id, temperature, humidity, air_quality, light_intensity, battery_voltage,
		battery_current, battery_power, latitude, longitude, recorded_at`

	insertReadingSQL = `INSERT INTO readings (` + readingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecentReadingsSQL = `SELECT ` + readingColumns + ` FROM readings ORDER BY id DESC LIMIT ?`

	selectRecentDeviceReadingsSQL = `SELECT ` + readingColumns + ` FROM readings WHERE device_id = ? ORDER BY id DESC LIMIT ?`

	countReadingsSQL = `SELECT COUNT(*) FROM readings`

	trimReadingsSQL = `DELETE FROM readings WHERE id NOT IN (SELECT id FROM readings ORDER BY id DESC LIMIT ?)`

	deleteReadingsSQL = `DELETE FROM readings`
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReading(ctx context.Context, ex execer, r models.SensorReading) error {
	_, err := ex.ExecContext(ctx, insertReadingSQL,
		r.DeviceID,
		r.Temperature,
		r.Humidity,
		r.AirQuality,
		r.LightIntensity,
		r.BatteryVoltage,
		r.BatteryCurrent,
		r.BatteryPower,
		r.Latitude,
		r.Longitude,
		r.Timestamp.UTC(),
	)
	return err
}

// Append stores one reading.
func (r *ReadingSQLite) Append(ctx context.Context, reading models.SensorReading) error {
	if err := insertReading(ctx, r.db, reading); err != nil {
		return fmt.Errorf("insert reading from %s: %w", reading.DeviceID, err)
	}
	return nil
}

// Recent returns up to limit newest readings, oldest first. An empty
// deviceID means every device.
func (r *ReadingSQLite) Recent(ctx context.Context, deviceID string, limit int) ([]models.SensorReading, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if deviceID == "" {
		rows, err = r.db.QueryContext(ctx, selectRecentReadingsSQL, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, selectRecentDeviceReadingsSQL, deviceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var out []models.SensorReading
	for rows.Next() {
		var (
			rd                       models.SensorReading
			current, power, lat, lon sql.NullFloat64
		)
		if err := rows.Scan(
			&rd.DeviceID,
			&rd.Temperature,
			&rd.Humidity,
			&rd.AirQuality,
			&rd.LightIntensity,
			&rd.BatteryVoltage,
			&current,
			&power,
			&lat,
			&lon,
			&rd.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rd.BatteryCurrent = nullFloat(current)
		rd.BatteryPower = nullFloat(power)
		rd.Latitude = nullFloat(lat)
		rd.Longitude = nullFloat(lon)
		rd.Timestamp = rd.Timestamp.UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *ReadingSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countReadingsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

// Trim keeps the newest keep readings and returns how many were removed.
func (r *ReadingSQLite) Trim(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, trimReadingsSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("trim readings: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceAll swaps the stored readings for the given ones in one transaction.
func (r *ReadingSQLite) ReplaceAll(ctx context.Context, readings []models.SensorReading) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace readings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteReadingsSQL); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	for i, rd := range readings {
		if err := insertReading(ctx, tx, rd); err != nil {
			return fmt.Errorf("restore reading %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace readings: %w", err)
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
