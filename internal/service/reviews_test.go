package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/repository"
	"github.com/bnrm/libadmin/internal/workflow"
)

func pendingISSN(id string) model.Request {
	return model.Request{
		ID:             id,
		Kind:           model.KindISSN,
		Reference:      "ISSN-2025-" + id[:4],
		ApplicantName:  "Revue Hespéris",
		ApplicantEmail: "contact@hesperis.ma",
		Title:          "Hespéris-Tamuda",
		Status:         model.StatusPending,
		CreatedAt:      fixedNow,
	}
}

func newReviewService(t *testing.T, reqs ...model.Request) (*ReviewService, *memRequests, *memActivity) {
	t.Helper()
	requests := newMemRequests(reqs...)
	activity := &memActivity{}
	svc := NewReviewService(requests, activity, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, requests, activity
}

func TestTransition_Validate(t *testing.T) {
	svc, _, activity := newReviewService(t, pendingISSN(requestOne))

	res, err := svc.Transition(context.Background(), model.KindISSN, requestOne, workflow.ActionValidate, "", "amina")
	require.NoError(t, err)

	assert.Equal(t, model.StatusValidated, res.Entity.Status)
	assert.Equal(t, "amina", res.Entity.ReviewedBy)
	require.NotNil(t, res.Entity.ReviewedAt)
	assert.True(t, res.Entity.ReviewedAt.Equal(fixedNow))
	assert.True(t, res.AuditLogged)
	assert.True(t, res.Notified)
	assert.Equal(t, []string{"validate"}, activity.actions())
	require.Len(t, activity.notifications, 1)
	assert.Equal(t, "issn-requests_validated", activity.notifications[0].Template)
}

func TestTransition_RejectTwiceKeepsLatestReason(t *testing.T) {
	svc, requests, _ := newReviewService(t, pendingISSN(requestOne))
	ctx := context.Background()

	_, err := svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionReject, "Dossier incomplet", "amina")
	require.NoError(t, err)
	res, err := svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionReject, "Titre déjà enregistré", "youssef")
	require.NoError(t, err)

	assert.Equal(t, "Titre déjà enregistré", res.Entity.RejectionReason)
	assert.Equal(t, "youssef", res.Entity.ReviewedBy)

	stored, err := requests.GetByID(ctx, model.KindISSN, requestOne)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Equal(t, "Titre déjà enregistré", stored.RejectionReason)
}

func TestTransition_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("note required", func(t *testing.T) {
		svc, _, _ := newReviewService(t, pendingISSN(requestOne))
		_, err := svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionRequestInfo, "   ", "amina")
		assert.ErrorIs(t, err, workflow.ErrNoteRequired)
	})

	t.Run("terminal status", func(t *testing.T) {
		r := pendingISSN(requestOne)
		r.Status = model.StatusArchived
		svc, _, _ := newReviewService(t, r)
		_, err := svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionValidate, "", "amina")
		assert.ErrorIs(t, err, workflow.ErrTransition)
	})

	t.Run("info request round trip", func(t *testing.T) {
		svc, _, _ := newReviewService(t, pendingISSN(requestOne))
		res, err := svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionRequestInfo, "Joindre le sommaire", "amina")
		require.NoError(t, err)
		assert.Equal(t, "Joindre le sommaire", res.Entity.InfoRequest)

		res, err = svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionResubmit, "", "amina")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, res.Entity.Status)
		assert.Empty(t, res.Entity.InfoRequest)
	})

	t.Run("unknown request", func(t *testing.T) {
		svc, _, _ := newReviewService(t)
		_, err := svc.Transition(ctx, model.KindISSN, unknownID, workflow.ActionValidate, "", "amina")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestTransition_SideEffectFailuresKeepStatus(t *testing.T) {
	svc, requests, activity := newReviewService(t, pendingISSN(requestOne))
	activity.failLog = true
	activity.failNotify = true

	res, err := svc.Transition(context.Background(), model.KindISSN, requestOne, workflow.ActionValidate, "", "amina")
	require.NoError(t, err)
	assert.False(t, res.AuditLogged)
	assert.False(t, res.Notified)

	stored, _ := requests.GetByID(context.Background(), model.KindISSN, requestOne)
	assert.Equal(t, model.StatusValidated, stored.Status)
}

func TestList_NormalisesPagination(t *testing.T) {
	svc, requests, _ := newReviewService(t, pendingISSN(requestOne), pendingISSN(requestTwo))

	page, err := svc.List(context.Background(), model.KindISSN, model.ListFilter{Page: -3, PageSize: 5000, Query: "  hespéris "})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, model.ListFilter{Page: 1, PageSize: maxPageSize, Query: "hespéris"}, requests.lastFilter)

	_, err = svc.List(context.Background(), model.KindISSN, model.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, requests.lastFilter.PageSize)
}

func TestDetail(t *testing.T) {
	svc, _, _ := newReviewService(t, pendingISSN(requestOne))
	ctx := context.Background()

	d, err := svc.Detail(ctx, model.KindISSN, requestOne)
	require.NoError(t, err)
	assert.Equal(t, requestOne, d.Request.ID)
	assert.NotNil(t, d.Activity)
	assert.Empty(t, d.Activity)

	_, err = svc.Transition(ctx, model.KindISSN, requestOne, workflow.ActionArchive, "", "amina")
	require.NoError(t, err)
	d, err = svc.Detail(ctx, model.KindISSN, requestOne)
	require.NoError(t, err)
	require.Len(t, d.Activity, 1)
	assert.Equal(t, "archive", d.Activity[0].ActionType)

	_, err = svc.Detail(ctx, model.KindISSN, unknownID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, _, activity := newReviewService(t, pendingISSN(requestOne))

	require.NoError(t, svc.Delete(context.Background(), model.KindISSN, requestOne, "amina"))
	assert.Equal(t, []string{"deleted"}, activity.actions())
	assert.ErrorIs(t, svc.Delete(context.Background(), model.KindISSN, requestOne, "amina"), repository.ErrNotFound)
}

func TestLetter(t *testing.T) {
	validated := pendingISSN(requestOne)
	validated.Status = model.StatusValidated
	archived := pendingISSN(requestTwo)
	archived.Status = model.StatusArchived
	svc, _, _ := newReviewService(t, validated, archived)

	pdf, err := svc.Letter(context.Background(), model.KindISSN, requestOne)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = svc.Letter(context.Background(), model.KindISSN, requestTwo)
	assert.ErrorIs(t, err, ErrInvalid)
}
