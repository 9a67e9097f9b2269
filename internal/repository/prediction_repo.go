package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"weather_station/internal/models"
)

// PredictionSQLite keeps the prediction history as JSON documents.
type PredictionSQLite struct {
	db *sql.DB
}

func NewPredictionSQLite(db *sql.DB) *PredictionSQLite {
	return &PredictionSQLite{db: db}
}

var _ PredictionRepo = (*PredictionSQLite)(nil)

const (
	insertPredictionSQL       = `INSERT INTO predictions (id, device_id, created_at, payload) VALUES (?, ?, ?, ?)`
	selectRecentPredictionSQL = `SELECT payload FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`
	trimPredictionsSQL        = `DELETE FROM predictions WHERE rowid NOT IN (SELECT rowid FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?)`
	deletePredictionsSQL      = `DELETE FROM predictions`
)

func insertPrediction(ctx context.Context, ex execer, p models.PredictionRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	_, err = ex.ExecContext(ctx, insertPredictionSQL, p.ID, p.DeviceID, p.CreatedAt.UTC(), string(payload))
	return err
}

func (r *PredictionSQLite) Append(ctx context.Context, p models.PredictionRecord) error {
	if err := insertPrediction(ctx, r.db, p); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// Recent returns up to limit newest records, oldest first.
func (r *PredictionSQLite) Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectRecentPredictionSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select predictions: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		var p models.PredictionRecord
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *PredictionSQLite) Trim(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, trimPredictionsSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("trim predictions: %w", err)
	}
	return res.RowsAffected()
}

func (r *PredictionSQLite) ReplaceAll(ctx context.Context, records []models.PredictionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace predictions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deletePredictionsSQL); err != nil {
		return fmt.Errorf("clear predictions: %w", err)
	}
	for i, p := range records {
		if err := insertPrediction(ctx, tx, p); err != nil {
			return fmt.Errorf("restore prediction %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace predictions: %w", err)
	}
	return nil
}
