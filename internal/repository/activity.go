package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bnrm/libadmin/internal/model"
)

// ActivityRepository calls the backend procedures for audit logging and
// e-mail dispatch, and reads the audit trail back.
type ActivityRepository struct {
	db *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log appends an audit row through log_activity().
func (r *ActivityRepository) Log(ctx context.Context, a model.Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT log_activity($1, $2, $3, $4, $5)::text`,
		a.EntityType, a.EntityID, a.ActionType, a.PerformedBy, details,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// Notify hands an e-mail payload to queue_notification(); delivery is the
// backend's concern.
func (r *ActivityRepository) Notify(ctx context.Context, n model.Notification) error {
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	var id int64
	err := r.db.QueryRow(ctx,
		`SELECT queue_notification($1, $2, $3)`,
		n.Recipient, n.Template, payload,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

// ListForEntity returns the audit trail of one entity, oldest first.
func (r *ActivityRepository) ListForEntity(ctx context.Context, entityType, entityID string) ([]model.Activity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, entity_type, entity_id, action_type, performed_by, details, created_at
		 FROM activity_logs
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.ActionType, &a.PerformedBy, &a.Details, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
