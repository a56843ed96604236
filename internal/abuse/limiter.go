// Package abuse guards POST /connect against rapid reconnect loops from a
// single client using an INCR+EXPIRE fixed-window Redis counter: the window
// starts at a key's first hit and the count resets when the key expires.
package abuse

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RuleConnect allows 5 connection attempts per minute per client IP.
var RuleConnect = struct {
	Key    string
	Limit  int
	Window time.Duration
}{Key: "rl:connect:", Limit: 5, Window: time.Minute}

// Limiter checks connection attempts against Redis. A nil *Limiter (or one
// built with NewLimiter against a client that cannot reach Redis) fails
// open: Allow always returns true rather than blocking legitimate traffic
// during a Redis outage.
type Limiter struct {
	client *redis.Client
}

// NewLimiter wraps an existing Redis client. Pass nil to build a Limiter
// that always allows.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow reports whether identifier (typically a client IP) is within the
// connect-rate window. On any Redis error, or when the limiter has no
// client configured, it fails open.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}

	key := RuleConnect.Key + identifier
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[abuse] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, RuleConnect.Window).Err(); err != nil {
			log.Printf("[abuse] redis EXPIRE error key=%s: %v (failing open)", key, err)
			l.client.Del(ctx, key)
			return true, err
		}
	}

	if int(count) > RuleConnect.Limit {
		return false, nil
	}
	return true, nil
}
