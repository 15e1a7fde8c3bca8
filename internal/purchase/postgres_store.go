package purchase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresRecordStore journals observed purchase records in PostgreSQL.
type PostgresRecordStore struct {
	db        *sql.DB
	tableName string
	ownsDB    bool
}

// NewPostgresRecordStore opens a connection, verifies it, and ensures the
// journal table exists.
func NewPostgresRecordStore(connectionString, tableName string) (*PostgresRecordStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if tableName == "" {
		tableName = "purchase_records"
	}
	store := &PostgresRecordStore{db: db, tableName: tableName, ownsDB: true}
	if err := store.createTable(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresRecordStore) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ref          TEXT PRIMARY KEY,
			purchase_id  TEXT NOT NULL DEFAULT '',
			item_id      TEXT NOT NULL DEFAULT '',
			rail         TEXT NOT NULL,
			status       TEXT NOT NULL,
			amount       BIGINT NOT NULL DEFAULT 0,
			currency     TEXT NOT NULL DEFAULT '',
			payload      JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.tableName)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create %s table: %w", s.tableName, err)
	}
	return nil
}

// Upsert stores the record, preserving terminal statuses: the conditional
// update refuses to replace a terminal row with a non-terminal one.
func (s *PostgresRecordStore) Upsert(ctx context.Context, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (ref, purchase_id, item_id, rail, status, amount, currency, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (ref) DO UPDATE SET
			purchase_id = EXCLUDED.purchase_id,
			item_id     = EXCLUDED.item_id,
			status      = EXCLUDED.status,
			amount      = EXCLUDED.amount,
			currency    = EXCLUDED.currency,
			payload     = EXCLUDED.payload,
			updated_at  = now()
		WHERE %s.status NOT IN ('completed', 'failed', 'refunded', 'disputed')
		   OR EXCLUDED.status IN ('completed', 'failed', 'refunded', 'disputed')`,
		s.tableName, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.Ref(), record.PurchaseID, record.ItemID, string(record.Rail),
		string(record.Status), record.Amount, record.Currency, payload)
	if err != nil {
		return fmt.Errorf("upsert purchase record: %w", err)
	}
	return nil
}

// Get returns the journaled record for a reference.
func (s *PostgresRecordStore) Get(ctx context.Context, ref string) (Record, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE ref = $1`, s.tableName)

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, ref).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query purchase record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("unmarshal purchase record: %w", err)
	}
	return record, nil
}

// Close closes the connection when this store owns it.
func (s *PostgresRecordStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
