package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/config"
	"github.com/bnrm/libadmin/internal/model"
	"github.com/bnrm/libadmin/internal/repository"
)

func newRangeService(t *testing.T) (*RangeService, *memRanges, *memActivity) {
	t.Helper()
	ranges := newMemRanges()
	activity := &memActivity{}
	svc := NewRangeService(ranges, activity, config.DefaultConfig().Numbering, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, ranges, activity
}

func seedISSN(t *testing.T, ranges *memRanges, used ...string) *model.NumberRange {
	t.Helper()
	r, err := ranges.Create(context.Background(), &model.NumberRange{
		Kind:            model.RangeReserved,
		NumberType:      model.NumberISSN,
		RequesterName:   "Revue Hespéris",
		RequesterEmail:  "contact@hesperis.ma",
		RangeStart:      "2000-000",
		RangeEnd:        "2000-020",
		UsedNumbersList: used,
		TotalNumbers:    20,
	})
	require.NoError(t, err)
	return r
}

func TestCreateRange(t *testing.T) {
	svc, _, activity := newRangeService(t)

	rng, err := svc.CreateRange(context.Background(), model.CreateRangeRequest{
		NumberType:     model.NumberISBN,
		RequesterName:  " Éditions Atlas ",
		RequesterEmail: "Contact@Atlas.MA",
		RangeStart:     "978-9954-123-00",
		RangeEnd:       "978-9954-123-99",
	}, "amina")
	require.NoError(t, err)

	assert.Equal(t, model.RangeReserved, rng.Kind)
	assert.Equal(t, 99, rng.TotalNumbers)
	assert.Equal(t, "Éditions Atlas", rng.RequesterName)
	assert.Equal(t, "contact@atlas.ma", rng.RequesterEmail)
	assert.Equal(t, []string{"range_created"}, activity.actions())
}

func TestCreateRange_Validation(t *testing.T) {
	svc, _, _ := newRangeService(t)
	ok := model.CreateRangeRequest{
		NumberType:     model.NumberISSN,
		RequesterName:  "Revue",
		RequesterEmail: "revue@example.ma",
		RangeStart:     "2000-000",
		RangeEnd:       "2000-020",
	}

	tests := []struct {
		name   string
		mutate func(*model.CreateRangeRequest)
	}{
		{"unknown kind", func(r *model.CreateRangeRequest) { r.Kind = "private" }},
		{"unknown type", func(r *model.CreateRangeRequest) { r.NumberType = "doi" }},
		{"missing requester", func(r *model.CreateRangeRequest) { r.RequesterName = "" }},
		{"bad email", func(r *model.CreateRangeRequest) { r.RequesterEmail = "revue" }},
		{"inverted bounds", func(r *model.CreateRangeRequest) { r.RangeStart, r.RangeEnd = r.RangeEnd, r.RangeStart }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ok
			tt.mutate(&req)
			_, err := svc.CreateRange(context.Background(), req, "amina")
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	shared := ok
	shared.Kind = model.RangeShared
	shared.RequesterName, shared.RequesterEmail = "", ""
	_, err := svc.CreateRange(context.Background(), shared, "amina")
	assert.NoError(t, err, "shared pools have no requester")
}

func TestAllocate_FirstUnusedAscending(t *testing.T) {
	svc, ranges, activity := newRangeService(t)
	rng := seedISSN(t, ranges, "2000-005")

	got, err := svc.Allocate(context.Background(), rng.ID, "", "amina")
	require.NoError(t, err)

	assert.Equal(t, "2000-001", got.Value)
	assert.Equal(t, []string{"2000-005", "2000-001"}, got.Range.UsedNumbersList)
	assert.Equal(t, 2, got.Range.UsedNumbers)
	assert.Equal(t, []string{"number_allocated"}, activity.actions())
	require.Len(t, activity.notifications, 1)
	assert.Equal(t, "contact@hesperis.ma", activity.notifications[0].Recipient)
}

func TestAllocate_Exhausted(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng, err := ranges.Create(context.Background(), &model.NumberRange{
		Kind:            model.RangeReserved,
		NumberType:      model.NumberISSN,
		RangeStart:      "2000-000",
		RangeEnd:        "2000-002",
		UsedNumbersList: []string{"2000-001", "2000-002"},
		TotalNumbers:    2,
	})
	require.NoError(t, err)

	c, err := svc.Candidates(context.Background(), rng.ID)
	require.NoError(t, err)
	assert.Empty(t, c)

	_, err = svc.Allocate(context.Background(), rng.ID, "", "amina")
	assert.ErrorIs(t, err, ErrRangeExhausted)
}

func TestAllocate_Custom(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng, err := ranges.Create(context.Background(), &model.NumberRange{
		Kind:            model.RangeReserved,
		NumberType:      model.NumberISSN,
		RangeStart:      "1234-5600",
		RangeEnd:        "1234-5699",
		UsedNumbersList: []string{"1234-5601"},
		TotalNumbers:    99,
	})
	require.NoError(t, err)

	got, err := svc.Allocate(context.Background(), rng.ID, "1234-567X", "amina")
	require.NoError(t, err)
	assert.Equal(t, "1234-567X", got.Value)

	_, err = svc.Allocate(context.Background(), rng.ID, "12345678", "amina")
	assert.ErrorIs(t, err, ErrInvalid, "format check")

	_, err = svc.Allocate(context.Background(), rng.ID, "1234-5709", "amina")
	assert.ErrorIs(t, err, ErrInvalid, "outside the range")

	_, err = svc.Allocate(context.Background(), rng.ID, "1234-5601", "amina")
	assert.ErrorIs(t, err, repository.ErrNumberTaken)
}

func TestAllocate_CustomISSNCheckCharacterCase(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng, err := ranges.Create(context.Background(), &model.NumberRange{
		Kind:         model.RangeReserved,
		NumberType:   model.NumberISSN,
		RangeStart:   "1234-5600",
		RangeEnd:     "1234-5699",
		TotalNumbers: 99,
	})
	require.NoError(t, err)

	got, err := svc.Allocate(context.Background(), rng.ID, "1234-560X", "amina")
	require.NoError(t, err)
	assert.Equal(t, "1234-560X", got.Value)

	_, err = svc.Allocate(context.Background(), rng.ID, "1234-560x", "amina")
	assert.ErrorIs(t, err, repository.ErrNumberTaken)

	got, err = svc.Allocate(context.Background(), rng.ID, " 1234-561x ", "amina")
	require.NoError(t, err)
	assert.Equal(t, "1234-561X", got.Value)

	stored, err := ranges.GetByID(context.Background(), rng.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1234-560X", "1234-561X"}, stored.UsedNumbersList)
}

func TestAllocate_RetriesAfterConcurrentWrite(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng := seedISSN(t, ranges)

	interfered := false
	ranges.interfere = func(r *model.NumberRange) {
		if interfered {
			return
		}
		interfered = true
		// Another administrator confirms 2000-001 between our read and write.
		r.UsedNumbersList = append(r.UsedNumbersList, "2000-001")
		r.UsedNumbers++
		r.Version++
		ranges.issued["issn/2000-001"] = true
	}

	got, err := svc.Allocate(context.Background(), rng.ID, "", "amina")
	require.NoError(t, err)
	assert.Equal(t, "2000-002", got.Value)
}

func TestAllocate_GivesUpAfterAttempts(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng := seedISSN(t, ranges)
	ranges.interfere = func(r *model.NumberRange) { r.Version++ }

	_, err := svc.Allocate(context.Background(), rng.ID, "", "amina")
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestAllocate_ConcurrentAdministratorsGetDistinctNumbers(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	svc.cfg.AllocateAttempts = 10
	rng := seedISSN(t, ranges)

	const admins = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values = map[string]int{}
		errs   []error
	)
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Allocate(context.Background(), rng.ID, "", "admin")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			values[got.Value]++
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Len(t, values, admins)
	for v, n := range values {
		assert.Equal(t, 1, n, "%s issued twice", v)
	}

	final, err := ranges.GetByID(context.Background(), rng.ID)
	require.NoError(t, err)
	assert.Equal(t, admins, final.UsedNumbers)
	assert.Len(t, final.UsedNumbersList, admins)
}

func TestAllocateFromPool_Sequential(t *testing.T) {
	svc, ranges, activity := newRangeService(t)
	_, err := ranges.Create(context.Background(), &model.NumberRange{
		Kind:            model.RangeShared,
		NumberType:      model.NumberISSN,
		RangeStart:      "2000-000",
		RangeEnd:        "2000-020",
		UsedNumbersList: []string{"2000-002"},
		CurrentPosition: "2000-001",
		TotalNumbers:    20,
	})
	require.NoError(t, err)

	got, err := svc.AllocateFromPool(context.Background(), model.NumberISSN, "amina")
	require.NoError(t, err)
	assert.Equal(t, "2000-003", got.Value)
	assert.Equal(t, "2000-003", got.Range.CurrentPosition)

	got, err = svc.AllocateFromPool(context.Background(), model.NumberISSN, "amina")
	require.NoError(t, err)
	assert.Equal(t, "2000-004", got.Value)

	assert.Empty(t, activity.notifications, "the shared pool has no requester to notify")

	_, err = svc.AllocateFromPool(context.Background(), model.NumberISBN, "amina")
	assert.ErrorIs(t, err, ErrRangeExhausted)
}

func TestAllocate_AuditFailureDoesNotUndoAllocation(t *testing.T) {
	svc, ranges, activity := newRangeService(t)
	activity.failLog = true
	rng := seedISSN(t, ranges)

	got, err := svc.Allocate(context.Background(), rng.ID, "", "amina")
	require.NoError(t, err)
	assert.Equal(t, "2000-001", got.Value)

	stored, _ := ranges.GetByID(context.Background(), rng.ID)
	assert.Equal(t, 1, stored.UsedNumbers)
}

func TestAttributionLetter(t *testing.T) {
	svc, ranges, _ := newRangeService(t)
	rng := seedISSN(t, ranges, "2000-001")

	pdf, err := svc.AttributionLetter(context.Background(), rng.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = svc.AttributionLetter(context.Background(), unknownID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
