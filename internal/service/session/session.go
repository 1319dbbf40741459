// Package session 保证同一会话同时只有一轮生成
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// 租约过期时间，进程异常退出时自动释放
	leaseTTL = 2 * time.Minute
	// Redis key 前缀
	turnKeyPrefix = "turn:"
	// 释放租约的超时
	releaseTimeout = 2 * time.Second
)

// ErrBusy 会话已有进行中的生成
var ErrBusy = errors.New("conversation already has a response in progress")

// 只删除自己持有的租约
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Turn 一轮进行中的生成
type Turn struct {
	ConversationID string
	StartedAt      time.Time
	token          string
	cancel         context.CancelFunc
	leased         bool
	stopped        atomic.Bool
}

// Stopped 是否被 Stop 主动取消
func (t *Turn) Stopped() bool {
	return t.stopped.Load()
}

// TurnGuard 进程内互斥加可选的 Redis 租约
type TurnGuard struct {
	mu     sync.Mutex
	active map[string]*Turn
	redis  *redis.Client
	logger *slog.Logger
}

// NewTurnGuard 创建守卫，redisClient 为 nil 时只做进程内互斥
func NewTurnGuard(redisClient *redis.Client, logger *slog.Logger) *TurnGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnGuard{
		active: make(map[string]*Turn),
		redis:  redisClient,
		logger: logger.With("component", "session"),
	}
}

// Acquire 占用会话，返回可被 Stop 取消的上下文
func (g *TurnGuard) Acquire(ctx context.Context, conversationID string) (context.Context, *Turn, error) {
	g.mu.Lock()
	if _, ok := g.active[conversationID]; ok {
		g.mu.Unlock()
		return nil, nil, ErrBusy
	}
	turnCtx, cancel := context.WithCancel(ctx)
	turn := &Turn{
		ConversationID: conversationID,
		StartedAt:      time.Now(),
		token:          uuid.New().String(),
		cancel:         cancel,
	}
	g.active[conversationID] = turn
	g.mu.Unlock()

	if g.redis != nil {
		ok, err := g.redis.SetNX(ctx, turnKeyPrefix+conversationID, turn.token, leaseTTL).Result()
		switch {
		case err != nil:
			// Redis 不可用时退化为进程内互斥
			g.logger.WarnContext(ctx, "failed to acquire turn lease", "conversation_id", conversationID, "error", err)
		case !ok:
			g.forget(turn)
			cancel()
			return nil, nil, ErrBusy
		default:
			turn.leased = true
		}
	}

	return turnCtx, turn, nil
}

// Release 结束一轮，可重复调用
func (g *TurnGuard) Release(turn *Turn) {
	if turn == nil || !g.forget(turn) {
		return
	}
	turn.cancel()

	if turn.leased {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		key := turnKeyPrefix + turn.ConversationID
		if err := releaseScript.Run(ctx, g.redis, []string{key}, turn.token).Err(); err != nil {
			g.logger.WarnContext(ctx, "failed to release turn lease", "conversation_id", turn.ConversationID, "error", err)
		}
	}
}

// Stop 取消会话当前的生成
func (g *TurnGuard) Stop(conversationID string) bool {
	g.mu.Lock()
	turn, ok := g.active[conversationID]
	g.mu.Unlock()
	if !ok {
		return false
	}
	turn.stopped.Store(true)
	turn.cancel()
	return true
}

// Active 会话是否有进行中的生成
func (g *TurnGuard) Active(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[conversationID]
	return ok
}

// forget 移除仍属于该 turn 的登记
func (g *TurnGuard) forget(turn *Turn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.active[turn.ConversationID]; !ok || cur != turn {
		return false
	}
	delete(g.active, turn.ConversationID)
	return true
}
