package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/logger"
)

const (
	dbCheckTimeout    = 3 * time.Second
	redisCheckTimeout = 2 * time.Second
)

// PingFunc 依赖探活
type PingFunc func(ctx context.Context) error

// CheckResult 单项检查结果
type CheckResult struct {
	Status  string `json:"status"`
	Latency *int64 `json:"latency,omitempty"` // 毫秒
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	environment string
	db          PingFunc
	redis       PingFunc // 未启用 Redis 时为 nil
	now         func() time.Time
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(environment string, db, redis PingFunc) *HealthHandler {
	return &HealthHandler{environment: environment, db: db, redis: redis, now: time.Now}
}

// Health 基础检查
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
		"environment": h.environment,
	})
}

// Live 存活检查
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// Ready 就绪检查，数据库不可用时返回 503
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx, nil)
	checks := map[string]CheckResult{}

	db := h.check(ctx, h.db, dbCheckTimeout)
	if db.Status != "healthy" {
		log.Error("database health check failed")
	}
	checks["database"] = db

	// 数据库不可用时跳过 Redis，尽快失败
	if db.Status == "healthy" {
		if h.redis == nil {
			checks["redis"] = CheckResult{Status: "not_configured"}
		} else {
			checks["redis"] = h.check(ctx, h.redis, redisCheckTimeout)
		}
	}

	status, code := "ready", http.StatusOK
	if db.Status != "healthy" {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"checks":    checks,
	})
}

func (h *HealthHandler) check(ctx context.Context, ping PingFunc, timeout time.Duration) CheckResult {
	if ping == nil {
		return CheckResult{Status: "unhealthy"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := ping(ctx); err != nil {
		return CheckResult{Status: "unhealthy"}
	}
	latency := time.Since(start).Milliseconds()
	return CheckResult{Status: "healthy", Latency: &latency}
}
