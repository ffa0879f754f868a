package service

import (
	"context"

	"trade_watch/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const (
	createRecordsSQL = `CREATE TABLE IF NOT EXISTS records (
	family     TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectRecordsSQL = `SELECT data FROM records WHERE family = $1`
	upsertRecordsSQL = `INSERT INTO records (family, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (family) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
)

// PostgresBackend - одна строка в таблице records на семейство.
type PostgresBackend struct {
	tx db.TxManager
}

func NewPostgresBackend(ctx context.Context, tx db.TxManager) (*PostgresBackend, error) {
	if _, err := tx.Conn().Exec(ctx, createRecordsSQL); err != nil {
		return nil, errors.Wrap(err, "create records table")
	}
	return &PostgresBackend{tx: tx}, nil
}

func (p *PostgresBackend) Load(ctx context.Context, family string) ([]byte, error) {
	var data []byte
	err := p.tx.Conn().QueryRow(ctx, selectRecordsSQL, family).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select records")
	}
	return data, nil
}

func (p *PostgresBackend) Save(ctx context.Context, family string, data []byte) error {
	return p.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, upsertRecordsSQL, family, string(data))
		return errors.Wrap(err, "upsert records")
	})
}

// Close - пулом владеет PgTxManager, он закрывается в модуле.
func (p *PostgresBackend) Close() error { return nil }
