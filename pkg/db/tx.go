package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sqlx.Tx) error

// RunInTx runs every write in a single transaction, committing only if all of
// them succeed.
func RunInTx(ctx context.Context, conn *sqlx.DB, writes ...WriteFunc) error {
	if len(writes) == 0 {
		return nil
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range writes {
		if err := w(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx (%d writes): %w", len(writes), err)
	}
	return nil
}
