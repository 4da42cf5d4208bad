package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bnrm/libadmin/internal/letter"
	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/workflow"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ReviewService orchestrates the administrative review of submissions.
type ReviewService struct {
	requests RequestStore
	activity ActivityStore
	effects  sideEffects
	logger   *zap.Logger
	now      clock
}

// NewReviewService constructs a ReviewService with its dependencies.
func NewReviewService(requests RequestStore, activity ActivityStore, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		requests: requests,
		activity: activity,
		effects:  sideEffects{store: activity, logger: logger},
		logger:   logger,
		now:      utcNow,
	}
}

// normaliseFilter clamps pagination to sane bounds.
func normaliseFilter(f model.ListFilter) model.ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	f.Query = strings.TrimSpace(f.Query)
	return f
}

// List returns one page of requests of kind.
func (s *ReviewService) List(ctx context.Context, kind model.RequestKind, f model.ListFilter) (*model.Page[model.Request], error) {
	return s.requests.List(ctx, kind, normaliseFilter(f))
}

// Detail loads a request and its audit trail concurrently.
func (s *ReviewService) Detail(ctx context.Context, kind model.RequestKind, id string) (*model.RequestDetail, error) {
	id, err := parseID("request", id)
	if err != nil {
		return nil, err
	}
	var d model.RequestDetail

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req, err := s.requests.GetByID(gctx, kind, id)
		if err != nil {
			return err
		}
		d.Request = req
		return nil
	})
	g.Go(func() error {
		trail, err := s.activity.ListForEntity(gctx, string(kind), id)
		if err != nil {
			return fmt.Errorf("load activity: %w", err)
		}
		d.Activity = trail
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if d.Activity == nil {
		d.Activity = []model.Activity{}
	}
	return &d, nil
}

// Transition applies a review action: one status write, then an audit row
// and an e-mail to the applicant. Re-applying an action overwrites the
// previous review metadata (last write wins).
func (s *ReviewService) Transition(ctx context.Context, kind model.RequestKind, id string, action workflow.Action, note, actor string) (*model.TransitionResult[model.Request], error) {
	id, err := parseID("request", id)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	current, err := s.requests.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	target, err := workflow.Apply(current.Status, action, note)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.UpdateStatus(ctx, kind, id, workflow.Change(target, action, note, actor, s.now()))
	if err != nil {
		return nil, fmt.Errorf("update request status: %w", err)
	}

	s.logger.Info("request status changed",
		zap.String("kind", string(kind)),
		zap.String("request_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("actor", actor))

	res := &model.TransitionResult[model.Request]{Entity: req}
	res.AuditLogged = s.effects.audit(ctx, model.Activity{
		EntityType:  string(kind),
		EntityID:    id,
		ActionType:  string(action),
		PerformedBy: actor,
		Details:     map[string]any{"from": string(current.Status), "to": string(target), "note": note},
	})
	res.Notified = s.effects.notify(ctx, model.Notification{
		Recipient: req.ApplicantEmail,
		Template:  string(kind) + "_" + string(target),
		Payload: map[string]any{
			"applicant_name": req.ApplicantName,
			"reference":      req.Reference,
			"title":          req.Title,
			"note":           note,
		},
	})
	return res, nil
}

// Delete removes a request on explicit administrator action.
func (s *ReviewService) Delete(ctx context.Context, kind model.RequestKind, id, actor string) error {
	id, err := parseID("request", id)
	if err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Info("request deleted", zap.String("kind", string(kind)), zap.String("request_id", id))
	s.effects.audit(ctx, model.Activity{
		EntityType:  string(kind),
		EntityID:    id,
		ActionType:  "deleted",
		PerformedBy: actor,
	})
	return nil
}

// Letter renders the decision letter matching the request's status.
func (s *ReviewService) Letter(ctx context.Context, kind model.RequestKind, id string) ([]byte, error) {
	id, err := parseID("request", id)
	if err != nil {
		return nil, err
	}
	req, err := s.requests.GetByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	l, err := letter.FromRequest(*req, s.now())
	if err != nil {
		return nil, invalidf("%v", err)
	}
	return letter.Render(l)
}
