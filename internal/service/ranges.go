package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/config"
	"github.com/bnrm/libadmin/internal/letter"
	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/numbering"
	"github.com/bnrm/libadmin/internal/repository"
)

const entityRange = "number_range"

// RangeService orchestrates identifier range operations.
type RangeService struct {
	ranges  RangeStore
	effects sideEffects
	cfg     config.NumberingConfig
	logger  *zap.Logger
	now     clock
}

// NewRangeService constructs a RangeService with its dependencies.
func NewRangeService(ranges RangeStore, activity ActivityStore, cfg config.NumberingConfig, logger *zap.Logger) *RangeService {
	return &RangeService{
		ranges:  ranges,
		effects: sideEffects{store: activity, logger: logger},
		cfg:     cfg,
		logger:  logger,
		now:     utcNow,
	}
}

// CreateRange validates the bounds and reserves the range.
func (s *RangeService) CreateRange(ctx context.Context, req model.CreateRangeRequest, actor string) (*model.NumberRange, error) {
	if req.Kind == "" {
		req.Kind = model.RangeReserved
	}
	if req.Kind != model.RangeReserved && req.Kind != model.RangeShared {
		return nil, invalidf("kind must be reserved or shared")
	}
	if _, err := model.ParseNumberType(string(req.NumberType)); err != nil {
		return nil, invalidf("%v", err)
	}

	req.RequesterName = strings.TrimSpace(req.RequesterName)
	req.RequesterEmail = normaliseEmail(req.RequesterEmail)
	if req.Kind == model.RangeReserved {
		if req.RequesterName == "" {
			return nil, invalidf("requester_name is required for a reserved range")
		}
		if !isValidEmail(req.RequesterEmail) {
			return nil, invalidf("requester_email is not a valid email address")
		}
	}

	req.RangeStart = strings.TrimSpace(req.RangeStart)
	req.RangeEnd = strings.TrimSpace(req.RangeEnd)
	bounds, err := numbering.ParseBounds(req.NumberType, req.RangeStart, req.RangeEnd)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	rng, err := s.ranges.Create(ctx, &model.NumberRange{
		Kind:           req.Kind,
		NumberType:     req.NumberType,
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		RangeStart:     req.RangeStart,
		RangeEnd:       req.RangeEnd,
		TotalNumbers:   bounds.Total(),
	})
	if err != nil {
		return nil, fmt.Errorf("create range: %w", err)
	}

	s.logger.Info("range created",
		zap.String("range_id", rng.ID),
		zap.String("number_type", string(rng.NumberType)),
		zap.Int("total", rng.TotalNumbers))
	s.effects.audit(ctx, model.Activity{
		EntityType:  entityRange,
		EntityID:    rng.ID,
		ActionType:  "range_created",
		PerformedBy: actor,
		Details: map[string]any{
			"range_start": rng.RangeStart,
			"range_end":   rng.RangeEnd,
			"kind":        string(rng.Kind),
		},
	})
	return rng, nil
}

// ListRanges returns ranges matching f.
func (s *RangeService) ListRanges(ctx context.Context, f model.RangeFilter) ([]model.NumberRange, error) {
	return s.ranges.List(ctx, f)
}

// GetRange returns a single range by ID.
func (s *RangeService) GetRange(ctx context.Context, id string) (*model.NumberRange, error) {
	id, err := parseID("range", id)
	if err != nil {
		return nil, err
	}
	return s.ranges.GetByID(ctx, id)
}

// Candidates lists the next free identifiers of a range. An exhausted
// range yields an empty list, not an error.
func (s *RangeService) Candidates(ctx context.Context, id string) ([]string, error) {
	rng, err := s.GetRange(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := numbering.Candidates(rng, s.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("compute candidates: %w", err)
	}
	return c, nil
}

// Allocate confirms an identifier from range id: custom when given,
// otherwise the next free one (sequential for the shared pool). A
// concurrent allocation on the same range makes the attempt re-read the
// range and recompute, up to the configured number of attempts.
func (s *RangeService) Allocate(ctx context.Context, id, custom, actor string) (*model.Allocation, error) {
	id, err := parseID("range", id)
	if err != nil {
		return nil, err
	}
	// ISSN check characters are stored upper-case.
	custom = strings.ToUpper(strings.TrimSpace(custom))

	var (
		rng   *model.NumberRange
		value string
	)
	for attempt := 1; attempt <= s.cfg.AllocateAttempts; attempt++ {
		var current *model.NumberRange
		current, err = s.GetRange(ctx, id)
		if err != nil {
			return nil, err
		}

		value, err = s.pick(current, custom)
		if err != nil {
			return nil, err
		}

		advance := current.Kind == model.RangeShared && custom == ""
		rng, err = s.ranges.Allocate(ctx, id, current.Version, value, actor, advance)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
		s.logger.Info("range moved during allocation, retrying",
			zap.String("range_id", id),
			zap.Int("attempt", attempt),
			zap.Int64("version", current.Version))
	}
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", value, err)
	}

	s.logger.Info("number allocated",
		zap.String("range_id", rng.ID),
		zap.String("value", value),
		zap.Bool("custom", custom != ""))
	s.effects.audit(ctx, model.Activity{
		EntityType:  entityRange,
		EntityID:    rng.ID,
		ActionType:  "number_allocated",
		PerformedBy: actor,
		Details:     map[string]any{"value": value, "custom": custom != ""},
	})
	s.effects.notify(ctx, model.Notification{
		Recipient: rng.RequesterEmail,
		Template:  "number_attributed",
		Payload: map[string]any{
			"requester_name": rng.RequesterName,
			"number_type":    string(rng.NumberType),
			"value":          value,
			"remaining":      rng.Remaining(),
		},
	})
	return &model.Allocation{Value: value, Range: rng}, nil
}

// pick chooses the identifier to confirm from a snapshot of the range.
func (s *RangeService) pick(rng *model.NumberRange, custom string) (string, error) {
	if rng.IsExhausted() {
		return "", ErrRangeExhausted
	}

	if custom != "" {
		if err := numbering.ValidateCustom(rng.NumberType, custom); err != nil {
			return "", invalidf("%v", err)
		}
		in, err := numbering.InRange(rng, custom)
		if err != nil {
			return "", fmt.Errorf("check bounds: %w", err)
		}
		if !in {
			return "", invalidf("%s lies outside %s - %s", custom, rng.RangeStart, rng.RangeEnd)
		}
		if rng.IsUsed(custom) {
			return "", repository.ErrNumberTaken
		}
		return custom, nil
	}

	next := numbering.Next
	if rng.Kind == model.RangeShared {
		next = numbering.NextSequential
	}
	value, ok, err := next(rng)
	if err != nil {
		return "", fmt.Errorf("compute next number: %w", err)
	}
	if !ok {
		return "", ErrRangeExhausted
	}
	return value, nil
}

// AllocateFromPool issues the next identifier of type t from the oldest
// active shared range.
func (s *RangeService) AllocateFromPool(ctx context.Context, t model.NumberType, actor string) (*model.Allocation, error) {
	rng, err := s.ranges.ActiveShared(ctx, t)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRangeExhausted
		}
		return nil, fmt.Errorf("find shared range: %w", err)
	}
	return s.Allocate(ctx, rng.ID, "", actor)
}

// AttributionLetter renders the PDF listing the identifiers issued from a
// range.
func (s *RangeService) AttributionLetter(ctx context.Context, id string) ([]byte, error) {
	rng, err := s.GetRange(ctx, id)
	if err != nil {
		return nil, err
	}
	return letter.Render(letter.FromAllocation(*rng, s.now()))
}
