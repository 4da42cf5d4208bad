// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
)

// ErrInvalid wraps every validation failure caught before touching the
// backend.
var ErrInvalid = errors.New("invalid input")

// ErrRangeExhausted is returned when a range has no identifier left.
var ErrRangeExhausted = errors.New("no numbers available")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// parseID checks that id is a UUID and returns its canonical form. Every
// primary key is a uuid column, so anything else is rejected before a
// query is built.
func parseID(what, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalidf("%s id is required", what)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", invalidf("%s id %q is not a valid UUID", what, id)
	}
	return u.String(), nil
}

// RangeStore persists identifier ranges.
type RangeStore interface {
	Create(ctx context.Context, rng *model.NumberRange) (*model.NumberRange, error)
	List(ctx context.Context, f model.RangeFilter) ([]model.NumberRange, error)
	GetByID(ctx context.Context, id string) (*model.NumberRange, error)
	ActiveShared(ctx context.Context, t model.NumberType) (*model.NumberRange, error)
	Allocate(ctx context.Context, id string, version int64, value, actor string, advance bool) (*model.NumberRange, error)
}

// SpaceStore reads rentable spaces.
type SpaceStore interface {
	List(ctx context.Context) ([]model.Space, error)
	GetByID(ctx context.Context, id string) (*model.Space, error)
}

// BookingStore persists space bookings.
type BookingStore interface {
	ListBySpace(ctx context.Context, spaceID, date string) ([]model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	CreateChecked(ctx context.Context, b *model.Booking) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id string, c model.StatusChange) (*model.Booking, error)
}

// RequestStore persists reviewed submissions.
type RequestStore interface {
	List(ctx context.Context, kind model.RequestKind, f model.ListFilter) (*model.Page[model.Request], error)
	GetByID(ctx context.Context, kind model.RequestKind, id string) (*model.Request, error)
	UpdateStatus(ctx context.Context, kind model.RequestKind, id string, c model.StatusChange) (*model.Request, error)
	Delete(ctx context.Context, kind model.RequestKind, id string) error
}

// ActivityStore reaches the backend's audit and notification procedures.
type ActivityStore interface {
	Log(ctx context.Context, a model.Activity) error
	Notify(ctx context.Context, n model.Notification) error
	ListForEntity(ctx context.Context, entityType, entityID string) ([]model.Activity, error)
}

// sideEffects records audit rows and queues e-mails after a primary write
// has succeeded. Failures are logged and reported, never rolled back.
type sideEffects struct {
	store  ActivityStore
	logger *zap.Logger
}

func (s sideEffects) audit(ctx context.Context, a model.Activity) bool {
	if err := s.store.Log(ctx, a); err != nil {
		s.logger.Warn("audit log write failed after primary write",
			zap.String("entity_type", a.EntityType),
			zap.String("entity_id", a.EntityID),
			zap.String("action_type", a.ActionType),
			zap.Error(err))
		return false
	}
	return true
}

func (s sideEffects) notify(ctx context.Context, n model.Notification) bool {
	if n.Recipient == "" {
		return false
	}
	if err := s.store.Notify(ctx, n); err != nil {
		s.logger.Warn("notification dispatch failed",
			zap.String("template", n.Template),
			zap.Error(err))
		return false
	}
	return true
}

// isValidEmail does a basic structural check (no external deps).
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

func normaliseEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// clock is swapped in tests.
type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
