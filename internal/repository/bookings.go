package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/slots"
)

// SpaceRepository handles persistence for rentable spaces.
type SpaceRepository struct {
	db *pgxpool.Pool
}

// NewSpaceRepository constructs a SpaceRepository.
func NewSpaceRepository(db *pgxpool.Pool) *SpaceRepository {
	return &SpaceRepository{db: db}
}

// List returns all spaces ordered by name.
func (r *SpaceRepository) List(ctx context.Context) ([]model.Space, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, capacity, hourly_rate, half_day_rate, full_day_rate
		 FROM spaces
		 ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var spaces []model.Space
	for rows.Next() {
		var s model.Space
		if err := rows.Scan(&s.ID, &s.Name, &s.Capacity, &s.HourlyRate, &s.HalfDayRate, &s.FullDayRate); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		spaces = append(spaces, s)
	}
	return spaces, rows.Err()
}

// GetByID returns a single space or ErrNotFound.
func (r *SpaceRepository) GetByID(ctx context.Context, id string) (*model.Space, error) {
	var s model.Space
	err := r.db.QueryRow(ctx,
		`SELECT id, name, capacity, hourly_rate, half_day_rate, full_day_rate
		 FROM spaces WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Capacity, &s.HourlyRate, &s.HalfDayRate, &s.FullDayRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get space: %w", err)
	}
	return &s, nil
}

// BookingRepository handles persistence for space bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, space_id, booking_date, start_time, end_time, organizer_name, organizer_email,
	event_title, hours, total_price, status, reviewed_by, reviewed_at, rejection_reason, info_request, created_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SpaceID, &b.Date, &b.StartTime, &b.EndTime, &b.OrganizerName,
		&b.OrganizerEmail, &b.EventTitle, &b.Hours, &b.TotalPrice, &b.Status, &b.ReviewedBy,
		&b.ReviewedAt, &b.RejectionReason, &b.InfoRequest, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ListBySpace returns the bookings of a space, restricted to date when it
// is not empty, in chronological order.
func (r *BookingRepository) ListBySpace(ctx context.Context, spaceID, date string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE space_id = $1 AND ($2 = '' OR booking_date = $2)
		 ORDER BY booking_date ASC, start_time ASC`,
		spaceID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return collectBookings(rows)
}

// GetByID returns a single booking or ErrNotFound.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CreateChecked inserts b unless it overlaps an occupying booking of the
// same space and day.
//
// The availability shown to an administrator is a snapshot taken when the
// dialog opened; another booking may have landed since. Locking the space
// row with SELECT … FOR UPDATE serialises concurrent creations for that
// space, and the overlap is re-checked under the lock before inserting.
func (r *BookingRepository) CreateChecked(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx,
		`SELECT id FROM spaces WHERE id = $1 FOR UPDATE`, b.SpaceID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock space row: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE space_id = $1 AND booking_date = $2`,
		b.SpaceID, b.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("load day bookings: %w", err)
	}
	day, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}
	if len(slots.Conflicts(day, b.Date, b.StartTime, b.EndTime)) > 0 {
		return nil, ErrSlotTaken
	}

	b.ID = uuid.New().String()
	b.CreatedAt = time.Now().UTC()
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (id, space_id, booking_date, start_time, end_time, organizer_name,
		                       organizer_email, event_title, hours, total_price, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.SpaceID, b.Date, b.StartTime, b.EndTime, b.OrganizerName,
		b.OrganizerEmail, b.EventTitle, b.Hours, b.TotalPrice, b.Status, b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return b, nil
}

// UpdateStatus writes a review decision on a booking, including the
// message sent with an information request.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, c model.StatusChange) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`UPDATE bookings
		 SET status = $2, reviewed_by = $3, reviewed_at = $4,
		     rejection_reason = $5, info_request = $6
		 WHERE id = $1
		 RETURNING `+bookingColumns,
		id, c.Status, c.ReviewedBy, c.ReviewedAt, c.RejectionReason, c.InfoRequest,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	return b, nil
}
