package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vendaslabs/orders-backend/pkg/migrate"
)

func TestValidateShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations failed validation: %v", err)
	}
}

func TestOutboxMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_outbox_entries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no outbox migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_entries",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (attempts >= 0)",
		"ON outbox_entries (status, next_attempt_at)",
		"DROP TABLE IF EXISTS outbox_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_lines",
		"CHECK (quantity > 0)",
		"CHECK (unit_price >= 0)",
		"DROP TABLE IF EXISTS order_lines",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Fulfillment Notes")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_fulfillment_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}

	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration failed validation: %v", err)
	}
}
