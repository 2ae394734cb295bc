package postgres

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"

	"github.com/iho/bankledger/migrations"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(migrations.FS, down); err != nil {
			t.Fatalf("%s has no down migration", up)
		}
	}
}

func TestMigratorRejectsBadURL(t *testing.T) {
	m := NewMigrator(migrations.FS, zerolog.Nop())
	if err := m.Up("not-a-url"); err == nil {
		t.Fatalf("expected error for invalid database URL")
	}
}

func TestMigratorRejectsEmptySource(t *testing.T) {
	m := NewMigrator(fstest.MapFS{}, zerolog.Nop())
	if err := m.Up("postgres://localhost:1/db?sslmode=disable"); err == nil {
		t.Fatalf("expected error for source without migrations")
	}
}
