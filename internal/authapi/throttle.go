package authapi

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts failed login attempts per username in redis and blocks
// further attempts once the limit is hit within the window. A nil client
// disables throttling entirely (local bring-up without redis).
type Throttle struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewThrottle(rdb *redis.Client, limit int, window time.Duration) *Throttle {
	return &Throttle{rdb: rdb, limit: limit, window: window}
}

func (t *Throttle) key(username string) string {
	return fmt.Sprintf("login_fail:%s", username)
}

// TooMany reports whether the username is currently locked out. Redis errors
// fail open: a broken throttle must not take down login.
func (t *Throttle) TooMany(ctx context.Context, username string) bool {
	if t == nil || t.rdb == nil {
		return false
	}
	n, err := t.rdb.Get(ctx, t.key(username)).Int()
	if err != nil {
		return false
	}
	return n >= t.limit
}

// Fail records one failed attempt and refreshes the window.
func (t *Throttle) Fail(ctx context.Context, username string) {
	if t == nil || t.rdb == nil {
		return
	}
	pipe := t.rdb.TxPipeline()
	pipe.Incr(ctx, t.key(username))
	pipe.Expire(ctx, t.key(username), t.window)
	_, _ = pipe.Exec(ctx)
}

// Reset clears the counter after a successful login.
func (t *Throttle) Reset(ctx context.Context, username string) {
	if t == nil || t.rdb == nil {
		return
	}
	_ = t.rdb.Del(ctx, t.key(username)).Err()
}
