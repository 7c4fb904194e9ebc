package modver

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Refresher 定期拉取配置文档并刷新 SnapshotStore。
// 同一时刻只有一个待触发的定时器；上一周期结束 (成功或失败) 后才会重新设置。
type Refresher struct {
	source   ConfigSource
	store    *SnapshotStore
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	// pollMu 串行化刷新周期，同时保护 lastVersion
	pollMu      sync.Mutex
	lastVersion string
	seen        atomic.Bool

	// initial 并发调用方共享同一次首次加载；attempted 首次加载已结束 (无论成败)
	initial   singleflight.Group
	attempted atomic.Bool

	mu     sync.Mutex // 保护 timer / closed
	timer  *time.Timer
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefresher 创建 Refresher，不会立即开始轮询。
// interval / timeout 为 0 时使用默认值。
func NewRefresher(source ConfigSource, store *SnapshotStore, interval, timeout time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		source:   source,
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Loaded 报告是否已经成功加载过至少一次。
func (r *Refresher) Loaded() bool {
	return r.seen.Load()
}

// Running 报告是否有待触发的轮询。
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil && !r.closed
}

// Ensure 确保快照已初始化且轮询在运行。
// 首次调用同步执行一次周期 (失败只记录日志)，并发调用方等待同一次拉取；
// 首次加载失败后不再同步重试，由后台轮询继续加载。
// 只有没有待触发的定时器时才会重新设置，不会推迟已有的轮询。
func (r *Refresher) Ensure(ctx context.Context) {
	if !r.seen.Load() && !r.attempted.Load() {
		_, _, _ = r.initial.Do("initial", func() (any, error) {
			if r.seen.Load() || r.attempted.Load() {
				return nil, nil
			}
			if _, err := r.Poll(ctx); err != nil {
				r.logger.Warn("initial configuration poll failed", "error", err)
			}
			r.attempted.Store(true)
			return nil, nil
		})
	}
	if !r.Running() {
		r.arm()
	}
}

// Start 开始后台轮询。重复调用只会重置定时器，不会产生多个轮询。
func (r *Refresher) Start() {
	r.arm()
}

// Stop 停止轮询并取消进行中的拉取。
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.cancel()
}

// arm 取消已有定时器并设置新的定时器。
func (r *Refresher) arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.interval, r.tick)
}

func (r *Refresher) tick() {
	if r.ctx.Err() != nil {
		return
	}
	if _, err := r.Poll(r.ctx); err != nil {
		// 临时错误，下个周期重试
		r.logger.Warn("configuration poll failed", "error", err)
	}
	r.arm()
}
