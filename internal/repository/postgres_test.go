package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bnrm/libadmin/internal/database"
	"github.com/bnrm/libadmin/internal/model"
)

// testDSNEnv names a disposable PostgreSQL database. The tests below migrate
// it and truncate every table they touch.
const testDSNEnv = "LIBADMIN_TEST_DSN"

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `TRUNCATE issued_numbers, number_ranges, bookings, spaces CASCADE`)
	require.NoError(t, err)
	return pool
}

func createISSNRange(t *testing.T, repo *RangeRepository, start, end string, total int) *model.NumberRange {
	t.Helper()
	rng, err := repo.Create(context.Background(), &model.NumberRange{
		Kind:           model.RangeReserved,
		NumberType:     model.NumberISSN,
		RequesterName:  "Revue Hespéris",
		RequesterEmail: "contact@hesperis.ma",
		RangeStart:     start,
		RangeEnd:       end,
		TotalNumbers:   total,
	})
	require.NoError(t, err)
	return rng
}

func TestRangeRepository_AllocateStaleVersion(t *testing.T) {
	repo := NewRangeRepository(testPool(t))
	ctx := context.Background()
	rng := createISSNRange(t, repo, "2000-000", "2000-020", 20)

	got, err := repo.Allocate(ctx, rng.ID, rng.Version, "2000-001", "amina", false)
	require.NoError(t, err)
	assert.Equal(t, rng.Version+1, got.Version)
	assert.Equal(t, 1, got.UsedNumbers)
	assert.Equal(t, []string{"2000-001"}, got.UsedNumbersList)

	_, err = repo.Allocate(ctx, rng.ID, rng.Version, "2000-002", "youssef", false)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = repo.Allocate(ctx, uuid.NewString(), 1, "2000-002", "youssef", false)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := repo.GetByID(ctx, rng.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2000-001"}, stored.UsedNumbersList)
}

func TestRangeRepository_AllocateDuplicateValue(t *testing.T) {
	repo := NewRangeRepository(testPool(t))
	ctx := context.Background()
	first := createISSNRange(t, repo, "2000-000", "2000-020", 20)
	second := createISSNRange(t, repo, "2000-000", "2000-010", 10)

	_, err := repo.Allocate(ctx, first.ID, first.Version, "2000-003", "amina", false)
	require.NoError(t, err)

	_, err = repo.Allocate(ctx, second.ID, second.Version, "2000-003", "youssef", false)
	assert.ErrorIs(t, err, ErrNumberTaken)

	untouched, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Version, untouched.Version, "the range update is rolled back")
	assert.Equal(t, 0, untouched.UsedNumbers)
	assert.Empty(t, untouched.UsedNumbersList)
}

func TestRangeRepository_AllocateUntilExhausted(t *testing.T) {
	repo := NewRangeRepository(testPool(t))
	ctx := context.Background()
	rng := createISSNRange(t, repo, "2000-000", "2000-002", 2)

	got, err := repo.Allocate(ctx, rng.ID, rng.Version, "2000-001", "amina", true)
	require.NoError(t, err)
	assert.Equal(t, model.RangeActive, got.Status)
	assert.Equal(t, "2000-001", got.CurrentPosition)

	got, err = repo.Allocate(ctx, rng.ID, got.Version, "2000-002", "amina", true)
	require.NoError(t, err)
	assert.Equal(t, model.RangeExhausted, got.Status)
	assert.Equal(t, 2, got.UsedNumbers)

	_, err = repo.Allocate(ctx, rng.ID, got.Version, "2000-003", "amina", true)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.GetByID(ctx, rng.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RangeExhausted, stored.Status)
	assert.Equal(t, 2, stored.UsedNumbers)
}

func TestRangeRepository_ConcurrentAllocateOneWinner(t *testing.T) {
	repo := NewRangeRepository(testPool(t))
	ctx := context.Background()
	rng := createISSNRange(t, repo, "2000-000", "2000-020", 20)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Allocate(ctx, rng.ID, rng.Version, "2000-001", "amina", false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrNumberTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func seedSpace(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO spaces (id, name, capacity, hourly_rate, half_day_rate, full_day_rate)
		 VALUES ($1, $2, 300, 1500, 5000, 9000)`,
		id, "Auditorium "+id[:8],
	)
	require.NoError(t, err)
	return id
}

func newBooking(spaceID, start, end string) *model.Booking {
	return &model.Booking{
		SpaceID:        spaceID,
		Date:           "2025-03-10",
		StartTime:      start,
		EndTime:        end,
		OrganizerName:  "Association Lire",
		OrganizerEmail: "lire@example.ma",
		Hours:          2,
		TotalPrice:     5000,
		Status:         model.StatusPending,
	}
}

func TestBookingRepository_CreateCheckedOverlap(t *testing.T) {
	pool := testPool(t)
	repo := NewBookingRepository(pool)
	ctx := context.Background()
	space := seedSpace(t, pool)

	first, err := repo.CreateChecked(ctx, newBooking(space, "10:00", "12:00"))
	require.NoError(t, err)

	_, err = repo.CreateChecked(ctx, newBooking(space, "11:00", "13:00"))
	assert.ErrorIs(t, err, ErrSlotTaken)

	_, err = repo.CreateChecked(ctx, newBooking(space, "12:00", "14:00"))
	assert.NoError(t, err, "touching intervals do not overlap")

	_, err = repo.CreateChecked(ctx, newBooking(uuid.NewString(), "10:00", "12:00"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.UpdateStatus(ctx, first.ID, model.StatusChange{
		Status: model.StatusRejected, ReviewedBy: "amina", RejectionReason: "Salle en travaux",
	})
	require.NoError(t, err)
	_, err = repo.CreateChecked(ctx, newBooking(space, "10:00", "11:30"))
	assert.NoError(t, err, "a rejected booking frees its slot")
}

func TestBookingRepository_ConcurrentCreateOneWinner(t *testing.T) {
	pool := testPool(t)
	repo := NewBookingRepository(pool)
	ctx := context.Background()
	space := seedSpace(t, pool)

	const writers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		taken int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateChecked(ctx, newBooking(space, "10:00", "12:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, taken)

	day, err := repo.ListBySpace(ctx, space, "2025-03-10")
	require.NoError(t, err)
	assert.Len(t, day, 1)
}

func TestBookingRepository_UpdateStatusKeepsInfoRequest(t *testing.T) {
	pool := testPool(t)
	repo := NewBookingRepository(pool)
	ctx := context.Background()
	b, err := repo.CreateChecked(ctx, newBooking(seedSpace(t, pool), "10:00", "12:00"))
	require.NoError(t, err)

	got, err := repo.UpdateStatus(ctx, b.ID, model.StatusChange{
		Status: model.StatusInfoRequested, ReviewedBy: "amina", InfoRequest: "Préciser le nombre d'invités",
	})
	require.NoError(t, err)
	assert.Equal(t, "Préciser le nombre d'invités", got.InfoRequest)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInfoRequested, stored.Status)
	assert.Equal(t, "Préciser le nombre d'invités", stored.InfoRequest)

	_, err = repo.UpdateStatus(ctx, b.ID, model.StatusChange{Status: "cancelled"})
	assert.Error(t, err, "the status check constraint rejects unknown states")

	_, err = repo.UpdateStatus(ctx, uuid.NewString(), model.StatusChange{Status: model.StatusArchived})
	assert.ErrorIs(t, err, ErrNotFound)
}
