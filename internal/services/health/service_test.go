package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStatusWithoutDatabase(t *testing.T) {
	report := NewService(nil).Status(context.Background())
	if !report.OK || report.Storage != "memory" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStatusPingsDatabase(t *testing.T) {
	database, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer database.Close()

	svc := NewService(database)

	mock.ExpectPing()
	if report := svc.Status(context.Background()); !report.OK || report.Database != "ok" {
		t.Fatalf("expected healthy report, got %+v", report)
	}

	mock.ExpectPing().WillReturnError(errors.New("connection reset"))
	if report := svc.Status(context.Background()); report.OK || report.Database != "unreachable" {
		t.Fatalf("expected unhealthy report, got %+v", report)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
