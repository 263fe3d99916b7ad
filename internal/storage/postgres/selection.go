package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
)

// SelectionRepository stores selection entries in the power_selections table.
type SelectionRepository struct {
	db *pgxpool.Pool
}

// NewSelectionRepository creates a SelectionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the schema migrated.
func NewSelectionRepository(db *pgxpool.Pool) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// LoadAll returns every stored entry ordered by actor id.
func (r *SelectionRepository) LoadAll(ctx context.Context) ([]selection.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT actor_id, power FROM power_selections ORDER BY actor_id`)
	if err != nil {
		return nil, fmt.Errorf("querying selections: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (selection.Entry, error) {
		var e selection.Entry
		err := row.Scan(&e.ActorID, &e.Power)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning selections: %w", err)
	}
	return entries, nil
}

// ReplaceAll swaps the table contents for entries in one transaction.
//
// Postcondition: On success the table holds exactly entries; on error it is unchanged.
func (r *SelectionRepository) ReplaceAll(ctx context.Context, entries []selection.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM power_selections`); err != nil {
		return fmt.Errorf("clearing selections: %w", err)
	}
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ActorID, e.Power})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"power_selections"},
		[]string{"actor_id", "power"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("writing selections: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing selections: %w", err)
	}
	return nil
}
