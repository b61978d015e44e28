// Package testdb opens in-memory SQLite databases carrying the application
// schema for repository and service tests.
package testdb

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_users_email ON users (lower(email))`,
	`CREATE TABLE addresses (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		label TEXT NOT NULL,
		recipient TEXT NOT NULL,
		phone TEXT,
		line1 TEXT NOT NULL,
		line2 TEXT,
		suburb TEXT NOT NULL,
		state TEXT NOT NULL,
		postcode TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT 'AU',
		lat REAL,
		lng REAL,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_addresses_default ON addresses (user_id) WHERE is_default`,
	`CREATE TABLE cabinet_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL,
		description TEXT,
		base_price TEXT NOT NULL DEFAULT '0',
		material_rate TEXT NOT NULL DEFAULT '0',
		door_count INTEGER NOT NULL DEFAULT 0,
		default_width_mm INTEGER NOT NULL,
		min_width_mm INTEGER NOT NULL,
		max_width_mm INTEGER NOT NULL,
		default_height_mm INTEGER NOT NULL,
		min_height_mm INTEGER NOT NULL,
		max_height_mm INTEGER NOT NULL,
		default_depth_mm INTEGER NOT NULL,
		min_depth_mm INTEGER NOT NULL,
		max_depth_mm INTEGER NOT NULL,
		image_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE door_styles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		rate TEXT NOT NULL DEFAULT '0',
		image_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE colors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		hex_code TEXT,
		rate TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE finishes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		rate TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE production_options (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE rate_cards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		base_delivery_fee TEXT NOT NULL DEFAULT '0',
		per_item_fee TEXT NOT NULL DEFAULT '0',
		metro_multiplier TEXT NOT NULL DEFAULT '1',
		remote_multiplier TEXT NOT NULL DEFAULT '1',
		assembly_rate_percent TEXT NOT NULL DEFAULT '0',
		min_order_value TEXT NOT NULL DEFAULT '0',
		is_default INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE assembly_surcharge_zones (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		center_lat REAL NOT NULL,
		center_lng REAL NOT NULL,
		radius_km REAL NOT NULL,
		assembly_surcharge_percent TEXT NOT NULL DEFAULT '0',
		delivery_surcharge_percent TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_applied_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE postcode_zones (
		id TEXT PRIMARY KEY,
		postcode TEXT NOT NULL UNIQUE,
		suburb TEXT NOT NULL,
		state TEXT NOT NULL,
		lat REAL,
		lng REAL,
		is_metro INTEGER NOT NULL DEFAULT 0,
		is_remote INTEGER NOT NULL DEFAULT 0,
		delivery_available INTEGER NOT NULL DEFAULT 1,
		assembly_available INTEGER NOT NULL DEFAULT 0,
		lead_time_days INTEGER NOT NULL DEFAULT 28,
		rate_card_id TEXT,
		assembly_zone_id TEXT,
		assembly_zone_source TEXT,
		notes TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE document_sequences (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		postcode TEXT,
		notes TEXT,
		quote_id TEXT,
		order_id TEXT,
		last_activity_at DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_carts_active_customer ON carts (customer_id) WHERE status = 'active'`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		cabinet_type_id TEXT NOT NULL,
		door_style_id TEXT,
		color_id TEXT,
		finish_id TEXT,
		width_mm INTEGER NOT NULL,
		height_mm INTEGER NOT NULL,
		depth_mm INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		production_option_ids TEXT,
		configuration TEXT,
		price_breakdown TEXT,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE quotes (
		id TEXT PRIMARY KEY,
		quote_number TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		cart_id TEXT,
		order_id TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		version INTEGER NOT NULL DEFAULT 1,
		subtotal TEXT NOT NULL DEFAULT '0',
		assembly_surcharge TEXT NOT NULL DEFAULT '0',
		delivery_fee TEXT NOT NULL DEFAULT '0',
		discount TEXT NOT NULL DEFAULT '0',
		gst TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL DEFAULT '0',
		postcode TEXT,
		include_assembly INTEGER NOT NULL DEFAULT 0,
		valid_until DATETIME,
		sent_at DATETIME,
		viewed_at DATETIME,
		accepted_at DATETIME,
		rejected_at DATETIME,
		rejection_reason TEXT,
		expired_at DATETIME,
		notes TEXT,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE quote_items (
		id TEXT PRIMARY KEY,
		quote_id TEXT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
		cabinet_type_id TEXT NOT NULL,
		description TEXT NOT NULL,
		door_style_id TEXT,
		color_id TEXT,
		finish_id TEXT,
		width_mm INTEGER NOT NULL,
		height_mm INTEGER NOT NULL,
		depth_mm INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		production_option_ids TEXT,
		configuration TEXT,
		price_breakdown TEXT,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE quote_versions (
		id TEXT PRIMARY KEY,
		quote_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		status TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		created_by TEXT,
		created_at DATETIME,
		UNIQUE (quote_id, version)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		quote_id TEXT,
		cart_id TEXT,
		status TEXT NOT NULL DEFAULT 'awaiting_deposit',
		subtotal TEXT NOT NULL,
		assembly_surcharge TEXT NOT NULL DEFAULT '0',
		delivery_fee TEXT NOT NULL DEFAULT '0',
		discount TEXT NOT NULL DEFAULT '0',
		gst TEXT NOT NULL DEFAULT '0',
		total TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		balance_due TEXT NOT NULL DEFAULT '0',
		shipping_address TEXT,
		postcode TEXT,
		include_assembly INTEGER NOT NULL DEFAULT 0,
		lead_time_days INTEGER NOT NULL DEFAULT 0,
		estimated_delivery_date DATETIME,
		notes TEXT,
		deposit_paid_at DATETIME,
		production_started_at DATETIME,
		ready_at DATETIME,
		dispatched_at DATETIME,
		delivered_at DATETIME,
		completed_at DATETIME,
		cancelled_at DATETIME,
		cancellation_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_orders_quote ON orders (quote_id) WHERE quote_id IS NOT NULL`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		cabinet_type_id TEXT NOT NULL,
		description TEXT NOT NULL,
		door_style_id TEXT,
		color_id TEXT,
		finish_id TEXT,
		width_mm INTEGER NOT NULL,
		height_mm INTEGER NOT NULL,
		depth_mm INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		production_option_ids TEXT,
		configuration TEXT,
		unit_price TEXT NOT NULL,
		total_price TEXT NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_schedules (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		milestone TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		percentage TEXT NOT NULL,
		amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		locked INTEGER NOT NULL DEFAULT 1,
		unlocked_at DATETIME,
		due_date DATETIME,
		paid_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (order_id, milestone)
	)`,
	`CREATE TABLE invoices (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL UNIQUE,
		order_id TEXT NOT NULL,
		payment_schedule_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		gst TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'issued',
		issued_at DATETIME NOT NULL,
		due_date DATETIME,
		paid_at DATETIME,
		voided_at DATETIME,
		pdf_object TEXT,
		pdf_url TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		payment_schedule_id TEXT NOT NULL,
		invoice_id TEXT,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'AUD',
		method TEXT NOT NULL,
		provider TEXT NOT NULL,
		provider_payment_id TEXT,
		status TEXT NOT NULL,
		reference TEXT,
		recorded_by TEXT,
		paid_at DATETIME,
		failure_reason TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE files (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		object_key TEXT NOT NULL UNIQUE,
		public_url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE file_attachments (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		scope TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		attached_by TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (file_id, scope, scope_id)
	)`,
	`CREATE TABLE messages (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		scope_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		body TEXT NOT NULL,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		next_attempt_at DATETIME,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`,
}

// Open returns a private in-memory database with every application table.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v\n%s", err, stmt)
		}
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
