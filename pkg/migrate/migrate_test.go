package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir(DefaultDir))
}

func TestEmbeddedMigrationsCreateCoreTables(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(Embedded(), DefaultDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := fs.ReadFile(Embedded(), p)
		if err != nil {
			return err
		}
		all.Write(b)
		return nil
	})
	require.NoError(t, err)

	sql := all.String()
	for _, table := range []string{
		"users", "addresses", "cabinet_types", "door_styles", "colors", "finishes",
		"production_options", "rate_cards", "assembly_surcharge_zones", "postcode_zones",
		"document_sequences", "carts", "cart_items", "quotes", "quote_items", "quote_versions",
		"orders", "order_items", "payment_schedules", "invoices", "payments",
		"files", "file_attachments", "messages", "outbox_events", "outbox_dlq",
	} {
		require.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table+" (", "missing table %s", table)
	}

	require.Contains(t, sql, "ux_carts_active_customer ON carts (customer_id) WHERE status = 'active'")
	require.Contains(t, sql, "assembly_zone_source IN ('manual', 'radius')")
	require.Contains(t, sql, "CONSTRAINT ux_payment_schedules_milestone UNIQUE (order_id, milestone)")
	require.Contains(t, sql, "locked boolean NOT NULL DEFAULT true")
}

func TestValidateFSRejectsBadFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_bad.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	err := ValidateFS(fsys, "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid migration filename")
}

func TestValidateFSRejectsDuplicateVersion(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	fsys := fstest.MapFS{
		"m/20260101000000_a.sql": {Data: body},
		"m/20260101000000_b.sql": {Data: body},
	}
	err := ValidateFS(fsys, "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate migration version")
}

func TestValidateFSRejectsUnbalancedStatements(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
	}
	err := ValidateFS(fsys, "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "StatementBegin")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Quote Index!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_quote_index.sql"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "-- +goose Up")
	require.NoError(t, ValidateDir(filepath.Dir(path)))

	_, err = CreateSQLMigration(dir, "  !!  ")
	require.Error(t, err)
}
