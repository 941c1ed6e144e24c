package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bctw/collector/models"
)

func TestIsDuplicateOpenAlert(t *testing.T) {
	db := &fakeDB{rowFn: func(sql string, args []any) pgx.Row {
		return fakeRow{values: []any{true}}
	}}
	dup, err := NewAlertStore(db).IsDuplicateOpenAlert(context.Background(), 42, models.VendorLotek, "Mortality")
	if err != nil {
		t.Fatalf("IsDuplicateOpenAlert() error = %v", err)
	}
	if !dup {
		t.Fatal("IsDuplicateOpenAlert() = false, want true")
	}

	got := db.calls[0]
	if !strings.Contains(got.sql, "valid_to IS NULL OR valid_to > now()") {
		t.Errorf("open predicate missing: %s", got.sql)
	}
	if got.args[0] != int64(42) || got.args[1] != "Lotek" || got.args[2] != "mortality" {
		t.Errorf("args = %v", got.args)
	}
}

func TestInsertAlertLowercasesType(t *testing.T) {
	db := &fakeDB{}
	lat := 50.1
	err := NewAlertStore(db).InsertAlert(context.Background(), models.AlertRecord{
		DeviceID:   42,
		DeviceMake: models.VendorLotek,
		AlertType:  "Malfunction",
		ValidFrom:  time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Latitude:   &lat,
	})
	if err != nil {
		t.Fatalf("InsertAlert() error = %v", err)
	}
	if db.calls[0].args[2] != "malfunction" {
		t.Errorf("alert_type arg = %v", db.calls[0].args[2])
	}
}

func TestLastKnownLocation(t *testing.T) {
	db := &fakeDB{rowFn: func(sql string, args []any) pgx.Row {
		return fakeRow{values: []any{50.5, -120.25}}
	}}
	at := time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)
	lat, lon, found, err := NewAlertStore(db).LastKnownLocation(context.Background(), 9, models.VendorLotek, at)
	if err != nil {
		t.Fatalf("LastKnownLocation() error = %v", err)
	}
	if !found || lat != 50.5 || lon != -120.25 {
		t.Fatalf("LastKnownLocation() = %v, %v, %v", lat, lon, found)
	}
	q := db.calls[0].sql
	if !strings.Contains(q, "acquisition_date <= $3") || !strings.Contains(q, "latitude <> 0") {
		t.Errorf("query does not restrict to earlier non-zero fixes: %s", q)
	}
}

func TestLastKnownLocationNone(t *testing.T) {
	db := &fakeDB{rowFn: func(sql string, args []any) pgx.Row {
		return fakeRow{err: pgx.ErrNoRows}
	}}
	_, _, found, err := NewAlertStore(db).LastKnownLocation(context.Background(), 9, models.VendorLotek, time.Now())
	if err != nil {
		t.Fatalf("LastKnownLocation() error = %v", err)
	}
	if found {
		t.Fatal("found = true, want false")
	}
}

func TestLastAlertTimestampEmpty(t *testing.T) {
	db := &fakeDB{rowFn: func(sql string, args []any) pgx.Row {
		return fakeRow{values: []any{nil}}
	}}
	last, err := NewAlertStore(db).LastAlertTimestamp(context.Background(), models.VendorLotek)
	if err != nil {
		t.Fatalf("LastAlertTimestamp() error = %v", err)
	}
	if last != nil {
		t.Fatalf("LastAlertTimestamp() = %v, want nil", last)
	}
}
