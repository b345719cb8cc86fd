package db

import (
	"errors"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// iofs.New rejects the embedded set outright when two files share a
// version, and RunMigrations dies before touching the database. This
// walks the source the way the migrator does and pins the sequence.
func TestMigrationSourceHasSingleVersionSequence(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New: %v", err)
	}
	defer src.Close()

	var versions []uint

	v, err := src.First()
	for err == nil {
		versions = append(versions, v)
		v, err = src.Next(v)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("walking versions: %v", err)
	}

	want := []uint{1, 2, 3}
	if len(versions) != len(want) {
		t.Fatalf("versions = %v, want %v", versions, want)
	}
	for i, v := range versions {
		if v != want[i] {
			t.Fatalf("versions = %v, want %v", versions, want)
		}
	}

	for _, v := range want {
		up, _, err := src.ReadUp(v)
		if err != nil {
			t.Errorf("version %d has no up migration: %v", v, err)
		} else {
			up.Close()
		}

		down, _, err := src.ReadDown(v)
		if err != nil {
			t.Errorf("version %d has no down migration: %v", v, err)
		} else {
			down.Close()
		}
	}
}
