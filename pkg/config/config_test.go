package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("Expected addr :5000, got %s", cfg.HTTP.Addr)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN != "instance/atme.db" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Expected ttl 24h, got %s", cfg.Session.TTL)
	}
	if cfg.Report.LinesPerPage != 38 {
		t.Errorf("Expected 38 lines per page, got %d", cfg.Report.LinesPerPage)
	}
	if got := cfg.InsecureDefaults(); len(got) != 2 {
		t.Errorf("Expected both default credentials flagged, got %v", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STAFFLOAN_HTTP_ADDR", ":8080")
	t.Setenv("STAFFLOAN_SESSION_TTL", "90m")
	t.Setenv("SECRET_KEY", "from-legacy-var")
	t.Setenv("STAFFLOAN_ADMIN_PASSWORD", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("Expected addr :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Session.TTL != 90*time.Minute {
		t.Errorf("Expected ttl 90m, got %s", cfg.Session.TTL)
	}
	if cfg.Session.Secret != "from-legacy-var" {
		t.Errorf("Expected SECRET_KEY to set the session secret, got %q", cfg.Session.Secret)
	}
	if got := cfg.InsecureDefaults(); len(got) != 0 {
		t.Errorf("Expected no insecure defaults, got %v", got)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "portal.toml")
	content := `
[database]
driver = "postgres"
dsn = "host=db user=portal dbname=portal sslmode=disable"

[report]
lines_per_page = 20
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Expected postgres driver, got %s", cfg.Database.Driver)
	}
	if cfg.Report.LinesPerPage != 20 {
		t.Errorf("Expected 20 lines per page, got %d", cfg.Report.LinesPerPage)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Errorf("defaults should survive a partial file, got addr %s", cfg.HTTP.Addr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STAFFLOAN_DATABASE_DRIVER", "mysql")
	t.Setenv("STAFFLOAN_REPORT_LINES_PER_PAGE", "0")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	for _, want := range []string{"database.driver", "report.lines_per_page"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got %q", want, err)
		}
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("Chdir back: %v", err)
		}
	})
}
