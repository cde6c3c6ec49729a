package split

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"splitchain/dispute"
)

// ErrNotFound signals the requested split does not exist.
var ErrNotFound = errors.New("split: not found")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (Summary, error) {
	const query = `
		SELECT id, title, total_amount, frozen, frozen_by_dispute_id::text, created_at, updated_at
		FROM splits
		WHERE id = $1
	`

	var s Summary
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.Title,
		&s.TotalAmount,
		&s.Frozen,
		&s.FrozenBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, fmt.Errorf("split: get: %w", err)
	}
	return s, nil
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM splits WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("split: check exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) IsParticipant(ctx context.Context, splitID, walletAddress string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM split_participants WHERE split_id = $1 AND wallet_address = $2)`,
		splitID, walletAddress,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("split: check participant: %w", err)
	}
	return exists, nil
}

func (r *Repository) Participants(ctx context.Context, splitID string) ([]Participant, error) {
	const query = `
		SELECT id, split_id, wallet_address, amount, created_at
		FROM split_participants
		WHERE split_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, splitID)
	if err != nil {
		return nil, fmt.Errorf("split: list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]Participant, 0, 8)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.SplitID, &p.WalletAddress, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("split: scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("split: iterate participants: %w", err)
	}
	return participants, nil
}

// SetFrozen locks the split's funds movement under the given dispute's
// authority. Re-freezing an already frozen split moves the lock to the new
// dispute.
func (r *Repository) SetFrozen(ctx context.Context, splitID, disputeID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE splits
		SET frozen = true, frozen_by_dispute_id = $2, updated_at = now()
		WHERE id = $1
	`, splitID, disputeID)
	if err != nil {
		return fmt.Errorf("split: freeze: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ClearFrozen(ctx context.Context, splitID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE splits
		SET frozen = false, frozen_by_dispute_id = NULL, updated_at = now()
		WHERE id = $1
	`, splitID)
	if err != nil {
		return fmt.Errorf("split: unfreeze: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateParticipantAmounts rewrites participant shares in one transaction.
// Adjustment rows are matched by wallet address.
func (r *Repository) UpdateParticipantAmounts(ctx context.Context, splitID string, adjustments []dispute.Adjustment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("split: begin adjustments tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, adj := range adjustments {
		tag, err := tx.Exec(ctx, `
			UPDATE split_participants
			SET amount = $3
			WHERE split_id = $1 AND wallet_address = $2
		`, splitID, adj.ParticipantID, adj.NewAmount)
		if err != nil {
			return fmt.Errorf("split: adjust participant %s: %w", adj.ParticipantID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("split: participant %s not found on split %s", adj.ParticipantID, splitID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("split: commit adjustments: %w", err)
	}
	return nil
}
