package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the FiatBridge store.
var Migrations = migrate.NewGroup("fiatbridge")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_fiatbridge_settings",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiatbridge_settings (
    id             INT PRIMARY KEY,
    owner          TEXT NOT NULL,
    paused         BOOLEAN NOT NULL DEFAULT FALSE,
    spread_fee_bps INT NOT NULL DEFAULT 100 CHECK (spread_fee_bps BETWEEN 0 AND 500),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fiatbridge_supported_tokens (
    token    TEXT PRIMARY KEY,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS fiatbridge_supported_tokens;
DROP TABLE IF EXISTS fiatbridge_settings;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fiatbridge_permissions",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiatbridge_permissions (
    user_addr   TEXT NOT NULL,
    token       TEXT NOT NULL,
    max_amount  NUMERIC(78, 0) NOT NULL,
    expiry_time TIMESTAMPTZ NOT NULL,
    is_active   BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_addr, token)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fiatbridge_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fiatbridge_transactions",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiatbridge_transactions (
    id           TEXT PRIMARY KEY,
    user_addr    TEXT NOT NULL,
    token        TEXT NOT NULL,
    amount       NUMERIC(78, 0) NOT NULL,
    fee_amount   NUMERIC(78, 0) NOT NULL,
    lock_expiry  TIMESTAMPTZ NOT NULL,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    is_refunded  BOOLEAN NOT NULL DEFAULT FALSE,
    amount_spent NUMERIC(78, 0) NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (NOT (is_completed AND is_refunded))
);

CREATE INDEX IF NOT EXISTS idx_fiatbridge_transactions_user ON fiatbridge_transactions (user_addr, created_at);
CREATE INDEX IF NOT EXISTS idx_fiatbridge_transactions_token ON fiatbridge_transactions (token, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fiatbridge_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fiatbridge_fees",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiatbridge_fees (
    token      TEXT PRIMARY KEY,
    collected  NUMERIC(78, 0) NOT NULL DEFAULT 0 CHECK (collected >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fiatbridge_fees`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_fiatbridge_events",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiatbridge_events (
    seq          BIGINT PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    type         TEXT NOT NULL,
    actor        TEXT NOT NULL,
    user_addr    TEXT NOT NULL DEFAULT '',
    token        TEXT NOT NULL DEFAULT '',
    tx_id        TEXT NOT NULL DEFAULT '',
    amount       NUMERIC(78, 0) NOT NULL DEFAULT 0,
    fee          NUMERIC(78, 0) NOT NULL DEFAULT 0,
    amount_spent NUMERIC(78, 0) NOT NULL DEFAULT 0,
    refund       NUMERIC(78, 0) NOT NULL DEFAULT 0,
    old_fee_bps  INT NOT NULL DEFAULT 0,
    new_fee_bps  INT NOT NULL DEFAULT 0,
    expires_at   TIMESTAMPTZ,
    occurred_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fiatbridge_events_type ON fiatbridge_events (type, seq);
CREATE INDEX IF NOT EXISTS idx_fiatbridge_events_tx ON fiatbridge_events (tx_id) WHERE tx_id != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fiatbridge_events`)
				return err
			},
		},
	)
}
