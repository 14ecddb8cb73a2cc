package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Migration is one forward-only schema step.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// All is the ordered schema history. Append only.
var All = []Migration{
	{
		Version: 1,
		Name:    "create inventory and ledger tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            batch_no TEXT,
            mfg_date TEXT,
            expiry_date TEXT,
            quantity INTEGER,
            price REAL
        );`,
			`CREATE TABLE IF NOT EXISTS sales (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            medicine_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            price REAL NOT NULL,
            subtotal REAL NOT NULL,
            date TEXT NOT NULL,
            invoice_id TEXT NOT NULL
        );`,
			`CREATE TABLE IF NOT EXISTS returns (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            medicine_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL,
            price REAL NOT NULL,
            refund_amount REAL NOT NULL,
            date TEXT NOT NULL,
            invoice_id TEXT NOT NULL
        );`,
		},
	},
	{
		Version: 2,
		Name:    "medicine demand column",
		Statements: []string{
			`ALTER TABLE medicines ADD COLUMN demand TEXT NOT NULL DEFAULT '';`,
		},
	},
	{
		Version: 3,
		Name:    "ledger lookup indexes",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (date);`,
			`CREATE INDEX IF NOT EXISTS idx_sales_pair ON sales (invoice_id, medicine_id);`,
			`CREATE INDEX IF NOT EXISTS idx_returns_pair ON returns (invoice_id, medicine_id);`,
		},
	},
}

// Run applies every pending migration in order, each in its own
// transaction, and returns the versions it applied.
func Run(ctx context.Context, db *sqlx.DB) ([]int, error) {
	return apply(ctx, db, All)
}

// Current returns the highest applied version, 0 for a fresh database.
func Current(ctx context.Context, db *sqlx.DB) (int, error) {
	if err := ensureTable(ctx, db); err != nil {
		return 0, err
	}
	var version int
	err := db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	return version, err
}

func apply(ctx context.Context, db *sqlx.DB, steps []Migration) ([]int, error) {
	current, err := Current(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}

	var applied []int
	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		if err := applyOne(ctx, db, m); err != nil {
			return applied, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

func applyOne(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            applied_at TEXT NOT NULL
        );`)
	return err
}
