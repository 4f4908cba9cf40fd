package store

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
)

func TestGormStore(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage {
		dsn := filepath.Join(t.TempDir(), "gorm.db") + "?_foreign_keys=on"
		s, err := NewGormStore(sqlite.Open(dsn))
		if err != nil {
			t.Fatalf("NewGormStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
