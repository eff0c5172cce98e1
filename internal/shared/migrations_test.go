package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("parseMigrationName", func(t *testing.T) {
		tests := []struct {
			name      string
			version   int
			direction string
			ok        bool
		}{
			{"0001_create_ledger_up.sql", 1, "up", true},
			{"0002_create_link_states_down.sql", 2, "down", true},
			{"0003_notes.sql", 0, "", false},
			{"0000_zero_up.sql", 0, "", false},
			{"next_create_up.sql", 0, "", false},
			{"0004_create_up.txt", 0, "", false},
			{"README.md", 0, "", false},
		}
		for _, tt := range tests {
			version, direction, ok := parseMigrationName(tt.name)
			if version != tt.version || direction != tt.direction || ok != tt.ok {
				t.Errorf("parseMigrationName(%q) = %d, %q, %v; want %d, %q, %v",
					tt.name, version, direction, ok, tt.version, tt.direction, tt.ok)
			}
		}
	})

	t.Run("rollback past the first migration", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		for range migrations {
			if err := RollbackMigration(db); err != nil {
				t.Fatalf("failed to rollback: %v", err)
			}
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error with nothing applied")
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to reapply migrations: %v", err)
		}
		if versions, _ := AppliedVersions(db); len(versions) != len(migrations) {
			t.Errorf("expected %d versions after reapplying, got %v", len(migrations), versions)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"play_events", "search_cache", "link_states"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var newCount int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&newCount)
		if err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}

		if _, err := db.Exec("SELECT 1 FROM link_states LIMIT 1"); err == nil {
			t.Error("link_states should be dropped by rollback of the latest migration")
		}
		if _, err := db.Exec("SELECT 1 FROM play_events LIMIT 1"); err != nil {
			t.Errorf("play_events should survive rollback of the latest migration: %v", err)
		}
	})

	t.Run("AppliedVersions", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		versions, err := AppliedVersions(db)
		if err != nil {
			t.Fatalf("failed to list versions: %v", err)
		}
		if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
			t.Errorf("expected versions [1 2], got %v", versions)
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		if err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
