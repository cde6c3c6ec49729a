package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested dispute does not exist.
	ErrNotFound = errors.New("dispute: not found")
	// ErrOpenExists signals the split already has an open dispute. The
	// service-level lookup raises it as an early exit; the partial unique
	// index on (split_id) WHERE status='open' is the actual guarantee under
	// concurrency, and a unique violation there maps back to this error.
	ErrOpenExists = errors.New("dispute: an open dispute already exists for this split")
)

const openIndexName = "disputes_one_open_per_split"

// Repository defines the data access required by the dispute service.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, error)
	List(ctx context.Context, filters Filters) ([]Record, int, error)
	ListAll(ctx context.Context, splitID string) ([]Record, error)
	ListByStatus(ctx context.Context, status Status) ([]Record, error)
	HasOpen(ctx context.Context, splitID string) (bool, error)
	UpdateEvidence(ctx context.Context, id string, evidence Evidence) (Record, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Record, error)
	SetResolution(ctx context.Context, id string, status Status, res Resolution, resolvedBy string, resolvedAt time.Time) (Record, error)
	IncrementAppealCount(ctx context.Context, tx pgx.Tx, id string) (int, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const recordColumns = `id, split_id, raised_by, dispute_type, description, status,
        evidence, resolution, resolved_by, resolved_at,
        appealed_from_dispute_id::text, appeal_reason, appeal_count, created_at, updated_at`

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, rec Record) (Record, error) {
	query := `
        INSERT INTO disputes (id, split_id, raised_by, dispute_type, description, status,
            evidence, appealed_from_dispute_id, appeal_reason)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7::jsonb, $8::uuid, $9)
        RETURNING ` + recordColumns

	row := tx.QueryRow(ctx, query,
		rec.ID,
		rec.SplitID,
		rec.RaisedBy,
		rec.Type,
		rec.Description,
		rec.Status,
		jsonOrNil(rec.Evidence),
		rec.AppealedFrom,
		rec.AppealReason,
	)

	saved, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openIndexName {
			return Record{}, ErrOpenExists
		}
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}
	return saved, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM disputes WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`

	rec, err := scanRecord(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get for update: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Record, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}

	where := []string{"1=1"}
	args := []any{}

	if filters.SplitID != "" {
		where = append(where, fmt.Sprintf("split_id=$%d", len(args)+1))
		args = append(args, filters.SplitID)
	}
	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d", len(args)+1))
		args = append(args, filters.Status)
	}
	if filters.RaisedBy != "" {
		where = append(where, fmt.Sprintf("raised_by=$%d", len(args)+1))
		args = append(args, filters.RaisedBy)
	}
	if filters.Type != "" {
		where = append(where, fmt.Sprintf("dispute_type=$%d", len(args)+1))
		args = append(args, filters.Type)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	offset := (filters.Page - 1) * filters.Limit

	query := fmt.Sprintf(`SELECT %s FROM disputes%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		recordColumns, whereClause, filters.Limit, offset)

	records, err := r.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM disputes%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("dispute: count list: %w", err)
	}

	return records, total, nil
}

func (r *PGRepository) ListAll(ctx context.Context, splitID string) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM disputes`
	args := []any{}
	if splitID != "" {
		query += ` WHERE split_id = $1`
		args = append(args, splitID)
	}
	return r.queryRecords(ctx, query, args...)
}

func (r *PGRepository) ListByStatus(ctx context.Context, status Status) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM disputes WHERE status = $1 ORDER BY created_at ASC`
	return r.queryRecords(ctx, query, status)
}

func (r *PGRepository) HasOpen(ctx context.Context, splitID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM disputes WHERE split_id = $1 AND status = 'open')`,
		splitID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dispute: check open: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) UpdateEvidence(ctx context.Context, id string, evidence Evidence) (Record, error) {
	query := `
        UPDATE disputes
        SET evidence = $2::jsonb, updated_at = now()
        WHERE id = $1
        RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, mustJSON(evidence)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: update evidence: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status Status) (Record, error) {
	query := `
        UPDATE disputes
        SET status = $2, updated_at = now()
        WHERE id = $1
        RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: update status: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) SetResolution(ctx context.Context, id string, status Status, res Resolution, resolvedBy string, resolvedAt time.Time) (Record, error) {
	query := `
        UPDATE disputes
        SET status = $2,
            resolution = $3::jsonb,
            resolved_by = $4,
            resolved_at = $5,
            updated_at = now()
        WHERE id = $1
        RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, status, mustJSON(res), resolvedBy, resolvedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: set resolution: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) IncrementAppealCount(ctx context.Context, tx pgx.Tx, id string) (int, error) {
	const query = `
        UPDATE disputes
        SET appeal_count = appeal_count + 1, updated_at = now()
        WHERE id = $1
        RETURNING appeal_count
    `

	var count int
	if err := tx.QueryRow(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("dispute: increment appeal count: %w", err)
	}
	return count, nil
}

func (r *PGRepository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: query: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec        Record
		evidence   []byte
		resolution []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.SplitID,
		&rec.RaisedBy,
		&rec.Type,
		&rec.Description,
		&rec.Status,
		&evidence,
		&resolution,
		&rec.ResolvedBy,
		&rec.ResolvedAt,
		&rec.AppealedFrom,
		&rec.AppealReason,
		&rec.AppealCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	if len(evidence) > 0 {
		var ev Evidence
		if err := json.Unmarshal(evidence, &ev); err != nil {
			return Record{}, fmt.Errorf("decode evidence: %w", err)
		}
		rec.Evidence = &ev
	}
	if len(resolution) > 0 {
		var res Resolution
		if err := json.Unmarshal(resolution, &res); err != nil {
			return Record{}, fmt.Errorf("decode resolution: %w", err)
		}
		rec.Resolution = &res
	}
	return rec, nil
}

func jsonOrNil(ev *Evidence) any {
	if ev == nil {
		return nil
	}
	return mustJSON(*ev)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
