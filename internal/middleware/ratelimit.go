package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/handler"
	"github.com/ashwinyue/next-support/internal/logger"
)

const rateLimitPrefix = "ratelimit:chat:"

// 滑动窗口：先清理过期记录，只有放行的请求才记入窗口
var slidingWindowScript = redis.NewScript(`
redis.call("zremrangebyscore", KEYS[1], "-inf", ARGV[2])
local count = redis.call("zcard", KEYS[1])
if count < tonumber(ARGV[4]) then
	redis.call("zadd", KEYS[1], ARGV[1], ARGV[5])
	redis.call("pexpire", KEYS[1], ARGV[3])
	return {1, count + 1}
end
return {0, count}
`)

// RateLimiter Redis 有序集合实现的滑动窗口限流
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Result 一次限流判定
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Allow 判定是否超限，放行时记录本次请求
func (l *RateLimiter) Allow(ctx context.Context, identifier string) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{rateLimitPrefix + identifier},
		nowMs, nowMs-l.window.Milliseconds(), l.window.Milliseconds(), l.limit, uuid.New().String()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}

	count := int(res[1])
	return Result{
		Allowed:   res[0] == 1,
		Limit:     l.limit,
		Remaining: max(l.limit-count, 0),
		Reset:     now.Add(l.window),
	}, nil
}

// Middleware 超限返回 429，Redis 出错时放行
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil {
			c.Next()
			return
		}
		id := identifier(c)
		res, err := l.Allow(c.Request.Context(), id)
		if err != nil {
			logger.FromContext(c.Request.Context(), nil).Error("rate limiter error", "identifier", id, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.UnixMilli(), 10))

		if !res.Allowed {
			logger.FromContext(c.Request.Context(), nil).Warn("rate limit exceeded", "identifier", id, "path", c.Request.URL.Path)
			handler.Abort(c, errs.RateLimited())
			return
		}
		c.Next()
	}
}

// identifier 优先使用认证用户，其次客户端地址
func identifier(c *gin.Context) string {
	if id := c.GetString(handler.ContextKeyUserID); id != "" {
		return id
	}
	for _, h := range []string{HeaderUserID, "X-Forwarded-For", "X-Real-Ip"} {
		if v := c.GetHeader(h); v != "" {
			return v
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}
