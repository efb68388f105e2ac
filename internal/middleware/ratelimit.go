// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

const (
	ipKeyPrefix   = "ratelimit:ip:"
	userKeyPrefix = "ratelimit:user:"

	idleBucketTTL = 10 * time.Minute
)

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	// FailOpen keeps serving through an in-process token bucket per key
	// while Redis is unreachable. Without it those requests get a 503.
	FailOpen bool
}

// RateLimiter enforces a shared GCRA limit stored in Redis.
type RateLimiter struct {
	limiter *redis_rate.Limiter
	local   *localBuckets
	config  RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		local:   newLocalBuckets(cfg.Limit),
		config:  cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)

		res, err := rl.limiter.Allow(r.Context(), key, rl.config.Limit)
		if err != nil {
			if !rl.config.FailOpen {
				slog.ErrorContext(r.Context(), "rate limiter unavailable",
					"key", key,
					"error", err,
				)
				core.JSONError(w, core.NewAppError(
					err,
					"service temporarily unavailable",
					http.StatusServiceUnavailable,
					"UNAVAILABLE",
				))
				return
			}
			res = rl.local.allow(key)
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeyByIP keys on the right-most X-Forwarded-For entry, then X-Real-IP,
// then the peer address.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return ipKeyPrefix + strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return ipKeyPrefix + xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ipKeyPrefix + r.RemoteAddr
	}
	return ipKeyPrefix + host
}

// KeyByUser falls back to KeyByIP for anonymous requests.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return userKeyPrefix + userID
	}
	return KeyByIP(r)
}

func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":endpoint:" + endpointPattern(r.URL.Path)
}

// endpointPattern collapses UUID and numeric path segments so that
// /users/<id> shares one bucket per user.
func endpointPattern(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if isIdentifier(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isIdentifier(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := uuid.Parse(seg); err == nil && len(seg) == 36 {
		return true
	}
	_, err := strconv.ParseUint(seg, 10, 64)
	return err == nil
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()
	resetSecs := int(res.ResetAfter.Seconds())

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy",
		strconv.Itoa(limit.Rate)+";w="+strconv.Itoa(int(limit.Period.Seconds())))
	h.Set("RateLimit",
		strconv.Itoa(res.Remaining)+";t="+strconv.Itoa(resetSecs))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.NewAppError(
		nil,
		"rate limit exceeded, retry after "+strconv.Itoa(retryAfter)+" seconds",
		http.StatusTooManyRequests,
		"RATE_LIMITED",
	))
}

// localBuckets is the per-process stand-in used while Redis is down. Idle
// buckets are swept lazily on access.
type localBuckets struct {
	mu        sync.Mutex
	limit     redis_rate.Limit
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalBuckets(limit redis_rate.Limit) *localBuckets {
	return &localBuckets{
		limit:     limit,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (l *localBuckets) allow(key string) *redis_rate.Result {
	now := time.Now()
	perSecond := float64(l.limit.Rate) / l.limit.Period.Seconds()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > idleBucketTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleBucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), l.limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := &redis_rate.Result{
		Limit:      l.limit,
		RetryAfter: -1,
		ResetAfter: time.Duration(float64(time.Second) / perSecond),
	}

	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = res.ResetAfter
	}
	res.Remaining = max(int(b.limiter.TokensAt(now)), 0)

	return res
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return PerWindow(rate, burst, time.Minute)
}

// PerWindow allows rate requests per window with the given burst. A
// non-positive window means one minute.
func PerWindow(rate, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	rate = max(rate, 1)
	burst = max(burst, 1)
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: window,
	}
}
