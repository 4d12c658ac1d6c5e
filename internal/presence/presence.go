package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// TTL is how long an online mark survives without a heartbeat refresh.
const TTL = 90 * time.Second

// Tracker records which users currently hold a live connection. Presence is
// advisory: every failure degrades to "offline" and is only logged.
type Tracker struct {
	rdb *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

func key(userID uint) string {
	return fmt.Sprintf("presence:%d", userID)
}

func (t *Tracker) MarkOnline(ctx context.Context, userID uint) {
	if err := t.rdb.Set(ctx, key(userID), 1, TTL).Err(); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("presence mark online")
	}
}

func (t *Tracker) MarkOffline(ctx context.Context, userID uint) {
	if err := t.rdb.Del(ctx, key(userID)).Err(); err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("presence mark offline")
	}
}

func (t *Tracker) IsOnline(ctx context.Context, userID uint) bool {
	n, err := t.rdb.Exists(ctx, key(userID)).Result()
	if err != nil {
		log.Warn().Err(err).Uint("user_id", userID).Msg("presence lookup")
		return false
	}
	return n > 0
}
