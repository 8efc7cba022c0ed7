package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holdStore interface {
	ListHolds(ctx context.Context, tripID uuid.UUID) ([]models.SelectionHold, error)
	PutHold(ctx context.Context, hold models.SelectionHold) (bool, error)
	ReleaseHolds(ctx context.Context, tripID, userID uuid.UUID, seatNumbers []int) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

func setupRedisStore(t *testing.T) (*RedisSelectionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSelectionStore(client), mr
}

func runHoldStoreContract(t *testing.T, store holdStore) {
	ctx := context.Background()
	tripID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	hold := func(user uuid.UUID, seat int, g models.Gender) models.SelectionHold {
		return models.SelectionHold{
			TripID: tripID, SeatNumber: seat, Gender: g, UserID: user,
			ExpiresAt: time.Now().Add(time.Minute),
		}
	}

	t.Run("Claim and list", func(t *testing.T) {
		ok, err := store.PutHold(ctx, hold(alice, 1, models.GenderMale))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.PutHold(ctx, hold(alice, 4, models.GenderMale))
		require.NoError(t, err)
		assert.True(t, ok)

		holds, err := store.ListHolds(ctx, tripID)
		require.NoError(t, err)
		assert.Len(t, holds, 2)
	})

	t.Run("Other user cannot take a held seat", func(t *testing.T) {
		ok, err := store.PutHold(ctx, hold(bob, 1, models.GenderFemale))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Owner refreshes own hold", func(t *testing.T) {
		ok, err := store.PutHold(ctx, hold(alice, 1, models.GenderMale))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Release only own holds", func(t *testing.T) {
		ok, err := store.PutHold(ctx, hold(bob, 7, models.GenderFemale))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.ReleaseHolds(ctx, tripID, bob, []int{1}))
		require.NoError(t, store.ReleaseHolds(ctx, tripID, alice, []int{1}))

		holds, err := store.ListHolds(ctx, tripID)
		require.NoError(t, err)
		seats := map[int]uuid.UUID{}
		for _, h := range holds {
			seats[h.SeatNumber] = h.UserID
		}
		assert.Equal(t, map[int]uuid.UUID{4: alice, 7: bob}, seats)
	})

	t.Run("Release all", func(t *testing.T) {
		require.NoError(t, store.ReleaseHolds(ctx, tripID, alice, nil))

		holds, err := store.ListHolds(ctx, tripID)
		require.NoError(t, err)
		require.Len(t, holds, 1)
		assert.Equal(t, bob, holds[0].UserID)
	})
}

func TestMemorySelectionStore(t *testing.T) {
	runHoldStoreContract(t, NewMemorySelectionStore())
}

func TestRedisSelectionStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	runHoldStoreContract(t, store)
}

func TestMemorySelectionStore_Expiry(t *testing.T) {
	store := NewMemorySelectionStore()
	ctx := context.Background()
	tripID := uuid.New()

	ok, err := store.PutHold(ctx, models.SelectionHold{
		TripID: tripID, SeatNumber: 3, Gender: models.GenderMale, UserID: uuid.New(),
		ExpiresAt: time.Now().Add(time.Second),
	})
	require.NoError(t, err)
	require.True(t, ok)

	store.now = func() time.Time { return time.Now().Add(time.Hour) }

	holds, err := store.ListHolds(ctx, tripID)
	require.NoError(t, err)
	assert.Empty(t, holds)

	ok, err = store.PutHold(ctx, models.SelectionHold{
		TripID: tripID, SeatNumber: 3, Gender: models.GenderFemale, UserID: uuid.New(),
		ExpiresAt: time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	purged, err := store.PurgeExpired(ctx, time.Now().Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestRedisSelectionStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	tripID := uuid.New()

	ok, err := store.PutHold(ctx, models.SelectionHold{
		TripID: tripID, SeatNumber: 3, Gender: models.GenderMale, UserID: uuid.New(),
		ExpiresAt: time.Now().Add(30 * time.Second),
	})
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	purged, err := store.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	holds, err := store.ListHolds(ctx, tripID)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestRedisSelectionStore_IndexCleanup(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	tripID := uuid.New()

	t.Run("Stale entries are pruned on list", func(t *testing.T) {
		ok, err := store.PutHold(ctx, models.SelectionHold{
			TripID: tripID, SeatNumber: 2, Gender: models.GenderFemale, UserID: uuid.New(),
			ExpiresAt: time.Now().Add(time.Minute),
		})
		require.NoError(t, err)
		require.True(t, ok)
		_, err = mr.SAdd(indexKey(tripID), "7")
		require.NoError(t, err)

		holds, err := store.ListHolds(ctx, tripID)
		require.NoError(t, err)
		require.Len(t, holds, 1)

		members, err := mr.Members(indexKey(tripID))
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, members)
	})

	t.Run("Unindex failure is returned", func(t *testing.T) {
		broken := uuid.New()
		require.NoError(t, mr.Set(indexKey(broken), "not-a-set"))

		err := store.ReleaseHolds(ctx, broken, uuid.New(), []int{3})
		assert.Error(t, err)
	})
}
