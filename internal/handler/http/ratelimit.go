package http

import (
	"fmt"
	"net/http"
	"time"

	rd "github.com/redis/go-redis/v9"

	"github.com/mealrescue/marketplace/internal/auth"
)

// Sliding-window limiter as one atomic Redis script:
// drop entries older than the window, count what is left, admit and record
// the request only while the count stays under the limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits requests per caller identity within a sliding window.
// Redis failures let the request through; rate limiting degrades before the
// API does.
func RedisRateLimit(rdb *rd.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			if identity, ok := auth.FromContext(r.Context()); ok {
				key = "rate_limit:orders:user:" + identity.ID
			} else {
				key = "rate_limit:orders:ip:" + r.RemoteAddr
			}

			now := time.Now().Unix()
			windowSec := int64(window.Seconds())
			windowStart := now - windowSec
			member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

			res, err := rdb.Eval(r.Context(), luaRateLimit, []string{key},
				now, windowStart, windowSec, member, limit).Int()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if res < 0 {
				respondWithError(w, http.StatusTooManyRequests, "Too many order requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
