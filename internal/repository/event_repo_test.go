package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"envmon_dashboard/internal/models"
)

const selectEvents = `SELECT id, occurred_at, type, device_id, kind, message, meta FROM control_events`

var eventColumns = []string{"id", "occurred_at", "type", "device_id", "kind", "message", "meta"}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func newMockRepo(t *testing.T) (*EventSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewEventSQLite(db), mock
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO control_events (id, occurred_at, type, device_id, kind, message, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.EventModeChange, "D02", "MQ2", "switched to Eco",
			`{"mode":"eco"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.ControlEvent{
		Type:        " mode_change ",
		DeviceID:    "d02",
		Kind:        models.KindMQ2,
		Description: "switched to Eco",
		Metadata:    map[string]string{"mode": "eco"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_KeepsGivenIDAndTime(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("UTC+3", 3*3600))

	mock.ExpectExec("INSERT INTO control_events").
		WithArgs("fixed-id", "2025-03-04 02:06:07", models.EventSwitch, "", "", "x", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.ControlEvent{EventID: "fixed-id", OccurredAt: at, Type: models.EventSwitch, Description: "x"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO control_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.ControlEvent{Type: "switch", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"action": "on"})

	rows := sqlmock.NewRows(eventColumns).
		AddRow("1", now, "SWITCH", "D01", "RADIO", "sent on command via BLE", string(js)).
		AddRow("2", now.Add(time.Hour), "AUTH_DENIED", "D01", "MQ2", "denied", nil).
		AddRow("3", now.Add(2*time.Hour), "COMMAND_FAILED", "D01", "MQ2", "bad", "{not json")

	mock.ExpectQuery(regexp.QuoteMeta(selectEvents + ` ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	if got[0].Kind != models.KindRadio || got[0].DeviceID != "D01" {
		t.Fatalf("unexpected identity: %+v", got[0])
	}
	b1, _ := json.Marshal(got[0].Metadata)
	if string(b1) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", string(b1), string(js))
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "{not json" {
		t.Fatalf("malformed meta should be kept raw, got %#v", got[2].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_WithFilters_OrderAndArgs(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	query := selectEvents + ` WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? AND device_id = ? AND kind = ? ORDER BY occurred_at ASC`

	rows := sqlmock.NewRows(eventColumns).
		AddRow("2", from, "SWITCH", "D02", "MQ2", "b", nil).
		AddRow("3", to, "SWITCH", "D02", "MQ2", "c", nil)

	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "SWITCH", "D02", "MQ2").
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), EventFilter{From: from, To: to, Type: " switch ", DeviceID: "d02", Kind: models.KindMQ2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "2" || got[1].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_ScanError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(eventColumns).
		// occurred_at wrong type to force scan error
		AddRow("x", 123, "SWITCH", "D01", "MQ2", "msg", nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectEvents + ` ORDER BY occurred_at ASC`)).
		WillReturnRows(rows)

	if _, err := repo.List(ctx(t), EventFilter{}); err == nil {
		t.Fatalf("expected scan error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id").WillReturnError(sql.ErrConnDone)

	if _, err := repo.List(ctx(t), EventFilter{}); !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected wrapped ErrConnDone, got %v", err)
	}
}
