package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ENV", "PORT", "OBJECT_STORE", "RUN_MIGRATIONS", "FIELD_TYPES", "RATE_LIMIT_WRITE_RPS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" || cfg.Port != "8080" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ObjectStoreType != "local" || !cfg.RunMigrations {
		t.Fatalf("unexpected store defaults %+v", cfg)
	}
	if len(cfg.FieldTypes) != 0 || cfg.WriteRateRPS != 5 || cfg.WriteRateBurst != 20 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENV", "prod")
	t.Setenv("OBJECT_STORE", "MinIO")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("FIELD_TYPES", "text, price ,")
	t.Setenv("RATE_LIMIT_WRITE_RPS", "2.5")
	t.Setenv("RATE_LIMIT_WRITE_BURST", "not-a-number")
	t.Setenv("RUN_MIGRATIONS", "")

	cfg := Load()
	if cfg.Env != "production" || cfg.RunMigrations {
		t.Fatalf("expected production without auto migrations, got %+v", cfg)
	}
	if cfg.ObjectStoreType != "minio" || !cfg.MinioUseSSL {
		t.Fatalf("unexpected store config %+v", cfg)
	}
	if len(cfg.FieldTypes) != 2 || cfg.FieldTypes[1] != "price" {
		t.Fatalf("unexpected field types %v", cfg.FieldTypes)
	}
	if cfg.WriteRateRPS != 2.5 || cfg.WriteRateBurst != 20 {
		t.Fatalf("unexpected rate limits %v %v", cfg.WriteRateRPS, cfg.WriteRateBurst)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("S3_BUCKET=from-dotenv\nPORT=9999\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("S3_BUCKET", "")
	t.Setenv("PORT", "7000")
	_ = os.Unsetenv("S3_BUCKET")

	cfg := Load()
	if cfg.S3Bucket != "from-dotenv" {
		t.Fatalf("expected bucket from .env, got %q", cfg.S3Bucket)
	}
	if cfg.Port != "7000" {
		t.Fatalf("expected real env to win over .env, got %q", cfg.Port)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
