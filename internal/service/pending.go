package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mealmetrics/backend/internal/types"
)

// ErrPendingNotFound is returned when a pending meal has been confirmed,
// cancelled or expired already.
var ErrPendingNotFound = errors.New("pending meal not found")

// pendingTTL bounds how long an unconfirmed analysis is held. Expiry is a
// silent discard with no side effects.
const pendingTTL = time.Hour

// PendingMeal is an analysis shown to the user but not yet confirmed into
// the durable ledger.
type PendingMeal struct {
	ID        string             `json:"id"`
	UserID    int64              `json:"user_id"`
	Analysis  types.MealAnalysis `json:"analysis"`
	PhotoKey  string             `json:"photo_key,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// PendingMealStore holds pending analyses in Redis keyed by user and id.
type PendingMealStore struct {
	redis *redis.Client
}

// NewPendingMealStore creates a PendingMealStore on the shared Redis client.
func NewPendingMealStore(redisClient *redis.Client) *PendingMealStore {
	return &PendingMealStore{redis: redisClient}
}

func pendingKey(userID int64, id string) string {
	return fmt.Sprintf("meal:pending:%d:%s", userID, id)
}

// Save stores a pending meal and assigns its id.
func (s *PendingMealStore) Save(ctx context.Context, pending *PendingMeal) error {
	pending.ID = uuid.New().String()
	pending.CreatedAt = time.Now()

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending meal: %w", err)
	}

	key := pendingKey(pending.UserID, pending.ID)
	if err := s.redis.Set(ctx, key, data, pendingTTL).Err(); err != nil {
		return fmt.Errorf("failed to save pending meal to Redis: %w", err)
	}
	return nil
}

// Get retrieves a pending meal for the given user.
func (s *PendingMealStore) Get(ctx context.Context, userID int64, id string) (*PendingMeal, error) {
	data, err := s.redis.Get(ctx, pendingKey(userID, id)).Bytes()
	if err == redis.Nil {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending meal from Redis: %w", err)
	}

	var pending PendingMeal
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending meal: %w", err)
	}
	return &pending, nil
}

// Delete discards a pending meal. Deleting an already-expired entry is not
// an error.
func (s *PendingMealStore) Delete(ctx context.Context, userID int64, id string) error {
	if err := s.redis.Del(ctx, pendingKey(userID, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending meal from Redis: %w", err)
	}
	return nil
}
