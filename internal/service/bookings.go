package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/config"
	"github.com/bnrm/libadmin/internal/letter"
	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/slots"
	"github.com/bnrm/libadmin/internal/workflow"
)

const entityBooking = "booking"

// BookingService orchestrates space rental operations.
type BookingService struct {
	spaces   SpaceStore
	bookings BookingStore
	effects  sideEffects
	grid     []string
	logger   *zap.Logger
	now      clock
}

// NewBookingService constructs a BookingService offering the grid
// described by cfg.
func NewBookingService(spaces SpaceStore, bookings BookingStore, activity ActivityStore, cfg config.BookingConfig, logger *zap.Logger) (*BookingService, error) {
	grid, err := slots.Grid(cfg.Open, cfg.Close, cfg.StepMinutes)
	if err != nil {
		return nil, fmt.Errorf("booking grid: %w", err)
	}
	return &BookingService{
		spaces:   spaces,
		bookings: bookings,
		effects:  sideEffects{store: activity, logger: logger},
		grid:     grid,
		logger:   logger,
		now:      utcNow,
	}, nil
}

// ListSpaces returns all rentable spaces.
func (s *BookingService) ListSpaces(ctx context.Context) ([]model.Space, error) {
	return s.spaces.List(ctx)
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func (s *BookingService) onGrid(label string) bool {
	for _, g := range s.grid {
		if g == label {
			return true
		}
	}
	return false
}

// Availability returns the free start times of a space on date and, when
// start is given, the end times admissible after it.
func (s *BookingService) Availability(ctx context.Context, spaceID, date, start string) (*model.Availability, error) {
	spaceID, err := parseID("space", spaceID)
	if err != nil {
		return nil, err
	}
	if !validDate(date) {
		return nil, invalidf("date must be YYYY-MM-DD")
	}
	if start != "" && !s.onGrid(start) {
		return nil, invalidf("start %q is not on the booking grid", start)
	}
	if _, err := s.spaces.GetByID(ctx, spaceID); err != nil {
		return nil, err
	}
	day, err := s.bookings.ListBySpace(ctx, spaceID, date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	a := &model.Availability{
		Date:   date,
		Starts: slots.AvailableStarts(s.grid, day, date),
	}
	if start != "" {
		a.Start = start
		a.Ends = slots.AvailableEnds(s.grid, day, date, start)
	}
	return a, nil
}

// Quote prices a slot of a space.
func (s *BookingService) Quote(ctx context.Context, spaceID string, req model.QuoteRequest) (*model.Quote, error) {
	spaceID, err := parseID("space", spaceID)
	if err != nil {
		return nil, err
	}
	space, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	hours, err := slots.Duration(req.StartTime, req.EndTime)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	q := slots.Quote(slots.RatesOf(*space), hours)
	return &q, nil
}

// ListBookings returns the bookings of a space, optionally for one day.
func (s *BookingService) ListBookings(ctx context.Context, spaceID, date string) ([]model.Booking, error) {
	spaceID, err := parseID("space", spaceID)
	if err != nil {
		return nil, err
	}
	if date != "" && !validDate(date) {
		return nil, invalidf("date must be YYYY-MM-DD")
	}
	if _, err := s.spaces.GetByID(ctx, spaceID); err != nil {
		return nil, err
	}
	return s.bookings.ListBySpace(ctx, spaceID, date)
}

// CreateBooking validates and prices the request, then books the slot.
// Overlap is re-checked by the store under a lock on the space.
func (s *BookingService) CreateBooking(ctx context.Context, spaceID string, req model.CreateBookingRequest, actor string) (*model.Booking, error) {
	spaceID, err := parseID("space", spaceID)
	if err != nil {
		return nil, err
	}
	req.OrganizerName = strings.TrimSpace(req.OrganizerName)
	req.OrganizerEmail = normaliseEmail(req.OrganizerEmail)
	req.EventTitle = strings.TrimSpace(req.EventTitle)

	if req.OrganizerName == "" {
		return nil, invalidf("organizer_name is required")
	}
	if !isValidEmail(req.OrganizerEmail) {
		return nil, invalidf("organizer_email is not a valid email address")
	}
	if !validDate(req.Date) {
		return nil, invalidf("date must be YYYY-MM-DD")
	}
	if !s.onGrid(req.StartTime) || !s.onGrid(req.EndTime) {
		return nil, invalidf("start_time and end_time must be on the booking grid")
	}
	if req.EndTime <= req.StartTime {
		return nil, invalidf("end_time must be after start_time")
	}

	quote, err := s.Quote(ctx, spaceID, model.QuoteRequest{StartTime: req.StartTime, EndTime: req.EndTime})
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.CreateChecked(ctx, &model.Booking{
		SpaceID:        spaceID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		OrganizerName:  req.OrganizerName,
		OrganizerEmail: req.OrganizerEmail,
		EventTitle:     req.EventTitle,
		Hours:          quote.Hours,
		TotalPrice:     quote.Total,
		Status:         model.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("space_id", spaceID),
		zap.String("date", b.Date),
		zap.String("start", b.StartTime),
		zap.String("end", b.EndTime))
	s.effects.audit(ctx, model.Activity{
		EntityType:  entityBooking,
		EntityID:    b.ID,
		ActionType:  "booking_created",
		PerformedBy: actor,
		Details:     map[string]any{"space_id": spaceID, "date": b.Date, "tier": quote.Tier},
	})
	s.effects.notify(ctx, model.Notification{
		Recipient: b.OrganizerEmail,
		Template:  "booking_received",
		Payload: map[string]any{
			"organizer_name": b.OrganizerName,
			"date":           b.Date,
			"start_time":     b.StartTime,
			"end_time":       b.EndTime,
			"total_price":    b.TotalPrice,
		},
	})
	return b, nil
}

// TransitionBooking applies a review action to a booking.
func (s *BookingService) TransitionBooking(ctx context.Context, id string, action workflow.Action, note, actor string) (*model.TransitionResult[model.Booking], error) {
	id, err := parseID("booking", id)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	current, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := workflow.Apply(current.Status, action, note)
	if err != nil {
		return nil, err
	}

	b, err := s.bookings.UpdateStatus(ctx, id, workflow.Change(target, action, note, actor, s.now()))
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	s.logger.Info("booking status changed",
		zap.String("booking_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)))
	res := &model.TransitionResult[model.Booking]{Entity: b}
	res.AuditLogged = s.effects.audit(ctx, model.Activity{
		EntityType:  entityBooking,
		EntityID:    id,
		ActionType:  "booking_" + string(action),
		PerformedBy: actor,
		Details:     map[string]any{"from": string(current.Status), "to": string(target), "note": note},
	})
	res.Notified = s.effects.notify(ctx, model.Notification{
		Recipient: b.OrganizerEmail,
		Template:  "booking_" + string(target),
		Payload: map[string]any{
			"organizer_name": b.OrganizerName,
			"date":           b.Date,
			"note":           note,
		},
	})
	return res, nil
}

// Receipt renders the PDF receipt of a booking.
func (s *BookingService) Receipt(ctx context.Context, id string) ([]byte, error) {
	id, err := parseID("booking", id)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	space, err := s.spaces.GetByID(ctx, b.SpaceID)
	if err != nil {
		return nil, err
	}
	return letter.Render(letter.FromBooking(*b, *space, s.now()))
}
