package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/bnrm/libadmin/internal/model"
)

// kindTables maps each request kind to its table. Table names are never
// taken from user input.
var kindTables = map[model.RequestKind]string{
	model.KindProfessional: "professional_registrations",
	model.KindISSN:         "issn_requests",
	model.KindPartnership:  "partnerships",
	model.KindCultural:     "cultural_proposals",
	model.KindRestoration:  "restoration_requests",
	model.KindLegalDeposit: "legal_deposits",
}

// sortColumns whitelists the columns a list view may order by.
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"reference":      "reference",
	"applicant_name": "applicant_name",
	"status":         "status",
}

// RequestRepository handles persistence for reviewed submissions.
type RequestRepository struct {
	db *pgxpool.Pool
}

// NewRequestRepository constructs a RequestRepository.
func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, reference, applicant_name, applicant_email, title, details, status,
	reviewed_by, reviewed_at, rejection_reason, info_request, created_at, updated_at`

func tableFor(kind model.RequestKind) (string, error) {
	t, ok := kindTables[kind]
	if !ok {
		return "", fmt.Errorf("no table for request kind %q", kind)
	}
	return t, nil
}

func scanRequest(kind model.RequestKind, row pgx.Row) (*model.Request, error) {
	req := model.Request{Kind: kind}
	err := row.Scan(&req.ID, &req.Reference, &req.ApplicantName, &req.ApplicantEmail, &req.Title,
		&req.Details, &req.Status, &req.ReviewedBy, &req.ReviewedAt, &req.RejectionReason,
		&req.InfoRequest, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// orderClause renders a whitelisted ORDER BY; unknown columns fall back to
// newest first.
func orderClause(sortBy, order string) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", col, dir)
}

// List returns one page of requests of kind matching f, with the total
// match count. f must already be normalised (Page >= 1, PageSize >= 1).
func (r *RequestRepository) List(ctx context.Context, kind model.RequestKind, f model.ListFilter) (*model.Page[model.Request], error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := "$" + strconv.Itoa(len(args))
		where = append(where, "(reference ILIKE "+n+" OR applicant_name ILIKE "+n+
			" OR applicant_email ILIKE "+n+" OR title ILIKE "+n+")")
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	page := &model.Page[model.Request]{Page: f.Page, PageSize: f.PageSize, Items: []model.Request{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.db.QueryRow(gctx, `SELECT count(*) FROM `+table+filter, args...).Scan(&page.Total); err != nil {
			return fmt.Errorf("count requests: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		pageArgs := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
		sql := `SELECT ` + requestColumns + ` FROM ` + table + filter + orderClause(f.SortBy, f.SortOrder) +
			` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
		rows, err := r.db.Query(gctx, sql, pageArgs...)
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			req, err := scanRequest(kind, rows)
			if err != nil {
				return fmt.Errorf("scan request: %w", err)
			}
			page.Items = append(page.Items, *req)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// GetByID returns a single request or ErrNotFound.
func (r *RequestRepository) GetByID(ctx context.Context, kind model.RequestKind, id string) (*model.Request, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(kind, r.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM `+table+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// UpdateStatus writes a review decision. It is a plain last-write-wins
// update: re-applying a decision replaces the previous review metadata.
func (r *RequestRepository) UpdateStatus(ctx context.Context, kind model.RequestKind, id string, c model.StatusChange) (*model.Request, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(kind, r.db.QueryRow(ctx,
		`UPDATE `+table+` SET status = $2, reviewed_by = $3, reviewed_at = $4,
		     rejection_reason = $5, info_request = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+requestColumns,
		id, c.Status, c.ReviewedBy, c.ReviewedAt, c.RejectionReason, c.InfoRequest,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update request status: %w", err)
	}
	return req, nil
}

// Delete removes a request.
func (r *RequestRepository) Delete(ctx context.Context, kind model.RequestKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
