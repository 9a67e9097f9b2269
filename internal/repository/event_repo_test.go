package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"weather_station/internal/models"
)

var eventColumns = []string{"id", "occurred_at", "type", "message", "meta"}

func TestEventSQLite_Append_FillsDefaults(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.EventTrainingDone, "model saved", `{"samples":60}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewEventSQLite(db).Append(context.Background(), models.Event{
		Type:        " training_done ",
		Description: "model saved",
		Metadata:    map[string]int{"samples": 60},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventSQLite_Append_KeepsGivenIDAndTime(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.FixedZone("UTC+2", 2*3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("ev-1", "2025-02-03 02:05:06", models.EventBackup, "backup written", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewEventSQLite(db).Append(context.Background(), models.Event{
		EventID:     "ev-1",
		OccurredAt:  at,
		Type:        models.EventBackup,
		Description: "backup written",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventSQLite_Append_DBError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).WillReturnError(errors.New("disk I/O error"))

	err := NewEventSQLite(db).Append(context.Background(), models.Event{Type: models.EventRestore})
	if err == nil || !strings.Contains(err.Error(), "disk I/O error") {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestEventSQLite_List_NoFilters(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	meta, _ := json.Marshal(map[string]any{"version": "abc"})
	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", at, models.EventTrainingStarted, "started", nil).
		AddRow("2", at.Add(time.Minute), models.EventTrainingDone, "done", string(meta)).
		AddRow("3", at.Add(2*time.Minute), models.EventBackup, "raw", "not-json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL + " ORDER BY occurred_at ASC")).WillReturnRows(rows)

	got, err := NewEventSQLite(db).List(context.Background(), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 events, got %d", len(got))
	}
	if got[0].Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", got[0].Metadata)
	}
	b, _ := json.Marshal(got[1].Metadata)
	if string(b) != string(meta) {
		t.Fatalf("metadata mismatch: %s vs %s", b, meta)
	}
	if got[2].Metadata != "not-json" {
		t.Fatalf("malformed metadata should be kept raw, got %#v", got[2].Metadata)
	}
}

func TestEventSQLite_List_WithFilters(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	q := selectEventSQL + " WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC"

	mock.ExpectQuery(regexp.QuoteMeta(q)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", models.EventTrainingFailed).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("9", from, models.EventTrainingFailed, "boom", nil))

	got, err := NewEventSQLite(db).List(context.Background(), from, to, " training_failed ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "9" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestEventSQLite_List_ScanError(t *testing.T) {
	t.Parallel()
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL)).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow("x", "yesterday", "BACKUP", "msg", nil))

	if _, err := NewEventSQLite(db).List(context.Background(), time.Time{}, time.Time{}, ""); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
}
