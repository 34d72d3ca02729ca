package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// QuotaRule caps how many requests a key may make per window.
type QuotaRule struct {
	Limit  int
	Window time.Duration
	KeyFn  func(*http.Request) string // empty key skips the quota
}

// Quota counts requests per key in Redis and rejects those over the limit
// with 429. A nil client or a zero limit disables it. Redis failures let the
// request through.
func Quota(rdb *redis.Client, rule QuotaRule, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rdb == nil || rule.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.KeyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("quota check skipped")
				next.ServeHTTP(w, r)
				return
			}
			if n == 1 {
				if err := rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
					log.WithError(err).WithField("key", key).Warn("quota expiry not set")
				}
			}
			if n > int64(rule.Limit) {
				writeError(w, http.StatusTooManyRequests, CodeQuotaExceeded, "usage quota exceeded, please try again later")
				return
			}

			w.Header().Set("X-Quota-Used", fmt.Sprintf("%d/%d", n, rule.Limit))
			next.ServeHTTP(w, r)
		})
	}
}
