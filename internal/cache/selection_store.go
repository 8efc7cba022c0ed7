package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/smarttransit/seat-reservation-backend/internal/models"
)

// Each hold is its own key with a TTL so Redis expires it; a per-trip set
// indexes the seat numbers that may still carry a hold.
//
//	selection:{tripID}:seat:{n}  -> JSON hold, PX ttl
//	selection:{tripID}:seats     -> SET of n
const selectionPrefix = "selection:"

// deleteIfEquals removes a key only while it still holds the expected value
var deleteIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSelectionStore shares seat holds between server instances
type RedisSelectionStore struct {
	client *redis.Client
}

// NewRedisSelectionStore wraps a connected client
func NewRedisSelectionStore(client *redis.Client) *RedisSelectionStore {
	return &RedisSelectionStore{client: client}
}

func seatKey(tripID uuid.UUID, seat int) string {
	return fmt.Sprintf("%s%s:seat:%d", selectionPrefix, tripID, seat)
}

func indexKey(tripID uuid.UUID) string {
	return fmt.Sprintf("%s%s:seats", selectionPrefix, tripID)
}

// ListHolds returns the live holds on a trip
func (s *RedisSelectionStore) ListHolds(ctx context.Context, tripID uuid.UUID) ([]models.SelectionHold, error) {
	members, err := s.client.SMembers(ctx, indexKey(tripID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list held seats: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("invalid seat number %q in hold index: %w", m, err)
		}
		keys[i] = seatKey(tripID, n)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read holds: %w", err)
	}

	now := time.Now()
	var holds []models.SelectionHold
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var hold models.SelectionHold
		if err := json.Unmarshal([]byte(raw), &hold); err != nil {
			return nil, fmt.Errorf("failed to decode hold: %w", err)
		}
		if hold.Expired(now) {
			continue
		}
		holds = append(holds, hold)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey(tripID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune hold index: %w", err)
		}
	}
	return holds, nil
}

// PutHold claims a seat for hold.UserID until hold.ExpiresAt. It returns
// false when another user holds the seat. A user's own hold is refreshed.
func (s *RedisSelectionStore) PutHold(ctx context.Context, hold models.SelectionHold) (bool, error) {
	ttl := time.Until(hold.ExpiresAt)
	if ttl <= 0 {
		return false, fmt.Errorf("hold for seat %d already expired", hold.SeatNumber)
	}

	payload, err := json.Marshal(hold)
	if err != nil {
		return false, fmt.Errorf("failed to encode hold: %w", err)
	}

	key := seatKey(hold.TripID, hold.SeatNumber)
	claimed, err := s.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim seat: %w", err)
	}

	if !claimed {
		current, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return s.PutHold(ctx, hold)
		}
		if err != nil {
			return false, fmt.Errorf("failed to read hold: %w", err)
		}
		var existing models.SelectionHold
		if err := json.Unmarshal([]byte(current), &existing); err != nil {
			return false, fmt.Errorf("failed to decode hold: %w", err)
		}
		if existing.UserID != hold.UserID {
			return false, nil
		}
		if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
			return false, fmt.Errorf("failed to refresh hold: %w", err)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, indexKey(hold.TripID), hold.SeatNumber)
	pipe.Expire(ctx, indexKey(hold.TripID), ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to index hold: %w", err)
	}
	return true, nil
}

// ReleaseHolds drops the user's holds on the given seats, or on every seat
// when seatNumbers is empty. Holds of other users are left alone.
func (s *RedisSelectionStore) ReleaseHolds(ctx context.Context, tripID, userID uuid.UUID, seatNumbers []int) error {
	if len(seatNumbers) == 0 {
		members, err := s.client.SMembers(ctx, indexKey(tripID)).Result()
		if err != nil {
			return fmt.Errorf("failed to list held seats: %w", err)
		}
		for _, m := range members {
			if n, err := strconv.Atoi(m); err == nil {
				seatNumbers = append(seatNumbers, n)
			}
		}
	}

	for _, n := range seatNumbers {
		key := seatKey(tripID, n)
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			if err := s.unindex(ctx, tripID, n); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read hold: %w", err)
		}

		var hold models.SelectionHold
		if err := json.Unmarshal([]byte(raw), &hold); err != nil {
			return fmt.Errorf("failed to decode hold: %w", err)
		}
		if hold.UserID != userID {
			continue
		}

		if err := deleteIfEquals.Run(ctx, s.client, []string{key}, raw).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release seat %d: %w", n, err)
		}
		if err := s.unindex(ctx, tripID, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisSelectionStore) unindex(ctx context.Context, tripID uuid.UUID, seat int) error {
	if err := s.client.SRem(ctx, indexKey(tripID), seat).Err(); err != nil {
		return fmt.Errorf("failed to unindex seat %d: %w", seat, err)
	}
	return nil
}

// PurgeExpired prunes hold indexes whose entries Redis already expired
func (s *RedisSelectionStore) PurgeExpired(ctx context.Context, _ time.Time) (int, error) {
	purged := 0
	iter := s.client.Scan(ctx, 0, selectionPrefix+"*:seats", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		idPart := strings.TrimSuffix(strings.TrimPrefix(key, selectionPrefix), ":seats")
		tripID, err := uuid.Parse(idPart)
		if err != nil {
			continue
		}
		before, err := s.client.SCard(ctx, key).Result()
		if err != nil {
			return purged, fmt.Errorf("failed to count holds: %w", err)
		}
		holds, err := s.ListHolds(ctx, tripID)
		if err != nil {
			return purged, err
		}
		purged += int(before) - len(holds)
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("failed to scan holds: %w", err)
	}
	return purged, nil
}
