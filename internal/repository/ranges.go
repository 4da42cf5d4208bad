package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bnrm/libadmin/internal/model"
)

// RangeRepository handles persistence for identifier ranges.
type RangeRepository struct {
	db *pgxpool.Pool
}

// NewRangeRepository constructs a RangeRepository.
func NewRangeRepository(db *pgxpool.Pool) *RangeRepository {
	return &RangeRepository{db: db}
}

const rangeColumns = `id, kind, number_type, requester_name, requester_email, range_start, range_end,
	used_numbers_list, total_numbers, used_numbers, current_position, status, version, created_at, updated_at`

func scanRange(row pgx.Row) (*model.NumberRange, error) {
	var r model.NumberRange
	err := row.Scan(&r.ID, &r.Kind, &r.NumberType, &r.RequesterName, &r.RequesterEmail,
		&r.RangeStart, &r.RangeEnd, &r.UsedNumbersList, &r.TotalNumbers, &r.UsedNumbers,
		&r.CurrentPosition, &r.Status, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserts a new range with a generated UUID.
func (r *RangeRepository) Create(ctx context.Context, rng *model.NumberRange) (*model.NumberRange, error) {
	now := time.Now().UTC()
	rng.ID = uuid.New().String()
	rng.Status = model.RangeActive
	rng.Version = 1
	rng.CreatedAt, rng.UpdatedAt = now, now
	if rng.UsedNumbersList == nil {
		rng.UsedNumbersList = []string{}
	}
	rng.UsedNumbers = len(rng.UsedNumbersList)

	_, err := r.db.Exec(ctx,
		`INSERT INTO number_ranges (`+rangeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rng.ID, rng.Kind, rng.NumberType, rng.RequesterName, rng.RequesterEmail,
		rng.RangeStart, rng.RangeEnd, rng.UsedNumbersList, rng.TotalNumbers, rng.UsedNumbers,
		rng.CurrentPosition, rng.Status, rng.Version, rng.CreatedAt, rng.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert range: %w", err)
	}
	return rng, nil
}

// List returns the ranges matching f, newest first.
func (r *RangeRepository) List(ctx context.Context, f model.RangeFilter) ([]model.NumberRange, error) {
	var (
		where []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.Kind != "" {
		add("kind", f.Kind)
	}
	if f.NumberType != "" {
		add("number_type", f.NumberType)
	}
	if f.Status != "" {
		add("status", f.Status)
	}

	sql := `SELECT ` + rangeColumns + ` FROM number_ranges`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list ranges: %w", err)
	}
	defer rows.Close()

	var ranges []model.NumberRange
	for rows.Next() {
		rng, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		ranges = append(ranges, *rng)
	}
	return ranges, rows.Err()
}

// GetByID returns a single range or ErrNotFound.
func (r *RangeRepository) GetByID(ctx context.Context, id string) (*model.NumberRange, error) {
	rng, err := scanRange(r.db.QueryRow(ctx,
		`SELECT `+rangeColumns+` FROM number_ranges WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get range: %w", err)
	}
	return rng, nil
}

// ActiveShared returns the oldest shared range of t that still has
// identifiers left, or ErrNotFound.
func (r *RangeRepository) ActiveShared(ctx context.Context, t model.NumberType) (*model.NumberRange, error) {
	rng, err := scanRange(r.db.QueryRow(ctx,
		`SELECT `+rangeColumns+` FROM number_ranges
		 WHERE kind = 'shared' AND number_type = $1 AND status = 'active'
		 ORDER BY created_at ASC
		 LIMIT 1`, t))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get shared range: %w", err)
	}
	return rng, nil
}

// Allocate confirms value as issued from the range, provided the range is
// still at version.
//
// Computing the next identifier is a read-then-write: two administrators
// reading the same snapshot would compute the same value. Two guards close
// that race inside one transaction:
//
//   - the UPDATE only matches the row at the version the caller read
//     (compare-and-swap); a concurrent allocation bumps the version and
//     this one fails with ErrVersionConflict, so the caller re-reads and
//     retries;
//   - issued_numbers has a primary key on (number_type, value), so the same
//     identifier can never be issued twice even from two different ranges
//     (ErrNumberTaken).
//
// When advance is true the range's current position moves to value, which
// is how the shared pool issues sequentially.
func (r *RangeRepository) Allocate(ctx context.Context, id string, version int64, value, actor string, advance bool) (*model.NumberRange, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rng, err := scanRange(tx.QueryRow(ctx,
		`UPDATE number_ranges SET
		     used_numbers_list = array_append(used_numbers_list, $3),
		     used_numbers      = used_numbers + 1,
		     current_position  = CASE WHEN $4 THEN $3 ELSE current_position END,
		     status            = CASE WHEN used_numbers + 1 >= total_numbers THEN 'exhausted' ELSE status END,
		     version           = version + 1,
		     updated_at        = now()
		 WHERE id = $1 AND version = $2 AND used_numbers < total_numbers
		 RETURNING `+rangeColumns,
		id, version, value, advance,
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update range: %w", err)
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM number_ranges WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check range: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO issued_numbers (number_type, value, range_id, issued_by)
		 VALUES ($1, $2, $3, $4)`,
		rng.NumberType, value, rng.ID, actor,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNumberTaken
		}
		return nil, fmt.Errorf("record issued number: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return rng, nil
}
