package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/cogquery/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PostgresJournal persists committed atoms in Postgres. Truth values are kept
// in a pgvector column so they can be compared in SQL.
type PostgresJournal struct {
	db *pgxpool.Pool
}

func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS atoms (
			handle     BIGINT PRIMARY KEY,
			type       TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			outgoing   BIGINT[] NOT NULL DEFAULT '{}',
			tv         vector(2) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS atoms_type_idx ON atoms (type)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure journal schema: %w", err)
		}
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, e domain.JournalEntry) error {
	tv := pgvector.NewVector([]float32{float32(e.TruthValue.Strength), float32(e.TruthValue.Confidence)})
	outgoing := make([]int64, len(e.Outgoing))
	for i, h := range e.Outgoing {
		outgoing[i] = int64(h)
	}

	_, err := j.db.Exec(ctx,
		`INSERT INTO atoms (handle, type, name, outgoing, tv, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (handle) DO UPDATE SET tv = EXCLUDED.tv, updated_at = NOW()`,
		int64(e.Handle), e.Type, e.Name, outgoing, tv,
	)
	return err
}

func (j *PostgresJournal) Replay(ctx context.Context, fn func(domain.JournalEntry) error) error {
	rows, err := j.db.Query(ctx,
		`SELECT handle, type, name, outgoing, tv FROM atoms ORDER BY handle`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			handle   int64
			e        domain.JournalEntry
			outgoing []int64
			tv       pgvector.Vector
		)
		if err := rows.Scan(&handle, &e.Type, &e.Name, &outgoing, &tv); err != nil {
			return err
		}
		e.Handle = domain.Handle(handle)
		for _, h := range outgoing {
			e.Outgoing = append(e.Outgoing, domain.Handle(h))
		}
		if s := tv.Slice(); len(s) == 2 {
			e.TruthValue = domain.NewTruthValue(float64(s[0]), float64(s[1]))
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
