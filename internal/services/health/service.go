package health

import (
	"context"
	"database/sql"
	"time"

	"compare-backend/internal/shared/storage/db"
	"compare-backend/internal/shared/telemetry"
)

const pingTimeout = 2 * time.Second

// Report is the health payload.
type Report struct {
	OK       bool   `json:"ok"`
	Storage  string `json:"storage"`
	Database string `json:"database"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. A nil database means the
// in-memory store is serving requests.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Status reports whether the backing store is reachable.
func (s *Service) Status(ctx context.Context) Report {
	if s == nil || s.DB == nil {
		return Report{OK: true, Storage: "memory", Database: "disabled"}
	}
	if err := db.Ping(ctx, s.DB, pingTimeout); err != nil {
		telemetry.Warn("health.db_ping_failed", map[string]any{"error": err})
		return Report{OK: false, Storage: "postgres", Database: "unreachable"}
	}
	return Report{OK: true, Storage: "postgres", Database: "ok"}
}
