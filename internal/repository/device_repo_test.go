package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"weather_station/internal/models"
)

var deviceColumns = []string{"id", "name", "secret", "created_at", "last_seen"}

func TestDeviceSQLite_Create(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(insertDeviceSQL)).
		WithArgs("roof-1", "Roof", "s3cr3t", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := NewDeviceSQLite(db).Create(context.Background(), models.Device{ID: "roof-1", Name: "Roof", Secret: "s3cr3t", CreatedAt: at})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestDeviceSQLite_Get(t *testing.T) {
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
			WithArgs("roof-1").
			WillReturnRows(sqlmock.NewRows(deviceColumns).AddRow("roof-1", "Roof", "s3cr3t", at, at.Add(time.Hour)))

		d, err := NewDeviceSQLite(db).Get(context.Background(), "roof-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if d == nil || d.Secret != "s3cr3t" || d.LastSeen == nil || !d.LastSeen.Equal(at.Add(time.Hour)) {
			t.Fatalf("unexpected device: %+v", d)
		}
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectDeviceSQL)).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		d, err := NewDeviceSQLite(db).Get(context.Background(), "ghost")
		if err != nil || d != nil {
			t.Fatalf("expected (nil, nil), got (%+v, %v)", d, err)
		}
	})
}

func TestDeviceSQLite_List(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(selectDevicesSQL)).
		WillReturnRows(sqlmock.NewRows(deviceColumns).
			AddRow("a", "A", "x", at, nil).
			AddRow("b", "B", "y", at, at))

	got, err := NewDeviceSQLite(db).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].LastSeen != nil || got[1].LastSeen == nil {
		t.Fatalf("unexpected devices: %+v", got)
	}
}

func TestDeviceSQLite_Touch(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(touchDeviceSQL)).
		WithArgs(at, "roof-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewDeviceSQLite(db).Touch(context.Background(), "roof-1", at); err != nil {
		t.Fatalf("Touch: %v", err)
	}
}
