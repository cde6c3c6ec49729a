package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested payment does not exist.
	ErrNotFound = errors.New("payment: not found")
	// ErrDuplicateTxHash signals a payment with the same Stellar transaction
	// hash already exists.
	ErrDuplicateTxHash = errors.New("payment: transaction hash already recorded")
)

const txHashIndexName = "payments_stellar_tx_hash_key"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, split_id, participant_id, from_address, to_address,
        amount, asset, stellar_tx_hash, status, memo, created_at, confirmed_at`

func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	query := `
        INSERT INTO payments (id, split_id, participant_id, from_address, to_address,
            amount, asset, stellar_tx_hash, status, memo)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING ` + recordColumns

	row := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.SplitID,
		rec.ParticipantID,
		rec.FromAddress,
		rec.ToAddress,
		rec.Amount,
		rec.Asset,
		rec.StellarTxHash,
		rec.Status,
		rec.Memo,
	)

	saved, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == txHashIndexName {
			return Record{}, ErrDuplicateTxHash
		}
		return Record{}, fmt.Errorf("payment: insert: %w", err)
	}
	return saved, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payments WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("payment: get: %w", err)
	}
	return rec, nil
}

func (r *Repository) GetByTxHash(ctx context.Context, txHash string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payments WHERE stellar_tx_hash = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, txHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("payment: get by tx hash: %w", err)
	}
	return rec, nil
}

func (r *Repository) List(ctx context.Context, filters Filters) ([]Record, error) {
	where := []string{"1=1"}
	args := []any{}

	if filters.SplitID != "" {
		where = append(where, fmt.Sprintf("split_id=$%d", len(args)+1))
		args = append(args, filters.SplitID)
	}
	if filters.ParticipantID != "" {
		where = append(where, fmt.Sprintf("participant_id=$%d", len(args)+1))
		args = append(args, filters.ParticipantID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}
	if filters.Asset != "" {
		where = append(where, fmt.Sprintf("asset=$%d", len(args)+1))
		args = append(args, filters.Asset)
	}
	if filters.StellarTxHash != "" {
		where = append(where, fmt.Sprintf("stellar_tx_hash=$%d", len(args)+1))
		args = append(args, filters.StellarTxHash)
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE %s ORDER BY created_at DESC`,
		recordColumns, strings.Join(where, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payment: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("payment: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate: %w", err)
	}
	return records, nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status Status, confirmedAt *time.Time) (Record, error) {
	query := `
        UPDATE payments
        SET status = $2, confirmed_at = $3
        WHERE id = $1
        RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, status, confirmedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("payment: set status: %w", err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	return rec, row.Scan(
		&rec.ID,
		&rec.SplitID,
		&rec.ParticipantID,
		&rec.FromAddress,
		&rec.ToAddress,
		&rec.Amount,
		&rec.Asset,
		&rec.StellarTxHash,
		&rec.Status,
		&rec.Memo,
		&rec.CreatedAt,
		&rec.ConfirmedAt,
	)
}
