package modver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Listener 记录更新回调，在变更流 goroutine 中同步调用。
type Listener func(id string, rec ModuleRecord)

// Subscription 订阅句柄。
type Subscription uint64

type listenerEntry struct {
	id Subscription
	fn Listener
}

// MetadataCache 把变更流镜像到内存表，并把每条更新推送给订阅者。
// 每个进程只应有一条变更流；Start 可重复调用。
type MetadataCache struct {
	source FeedSource
	logger *slog.Logger

	mu        sync.RWMutex
	table     map[string]ModuleRecord
	listeners []listenerEntry
	nextID    Subscription

	startOnce sync.Once
	readyOnce sync.Once
	ready     chan struct{}
	done      chan struct{}
	err       error // 变更流结束原因，done 关闭后可读
}

// NewMetadataCache 创建 MetadataCache。
func NewMetadataCache(source FeedSource, logger *slog.Logger) *MetadataCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetadataCache{
		source: source,
		logger: logger,
		table:  make(map[string]ModuleRecord),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start 启动变更流 (只会启动一次) 并等待初始回填完成。
// 变更流在回填完成前失败时返回该错误。
func (c *MetadataCache) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		go func() {
			c.err = c.run(ctx)
			close(c.done)
		}()
	})

	select {
	case <-c.ready:
		return nil
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready 在初始回填完成后关闭。
func (c *MetadataCache) Ready() <-chan struct{} {
	return c.ready
}

// Done 在变更流结束后关闭，之后可通过 Err 获取原因。
func (c *MetadataCache) Done() <-chan struct{} {
	return c.done
}

// Err 返回变更流结束的原因。只有 Done 关闭后才有意义。
// 非 ctx 取消导致的结束都包含 ErrFeedFailed，调用方应视为不可恢复。
func (c *MetadataCache) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *MetadataCache) run(ctx context.Context) error {
	for {
		ev, err := c.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("module feed failed", "error", err)
			return fmt.Errorf("%w: %w", ErrFeedFailed, err)
		}

		if ev.Ready {
			c.readyOnce.Do(func() {
				close(c.ready)
				c.logger.Info("module metadata cache ready", "records", c.Len())
			})
			continue
		}

		phase := "live"
		select {
		case <-c.ready:
		default:
			phase = "backfill"
		}
		feedRecords.WithLabelValues(phase).Inc()
		c.apply(ev.Record)
	}
}

// apply 更新内存表 (按 id 后写覆盖) 并按订阅顺序通知。
func (c *MetadataCache) apply(rec ModuleRecord) {
	c.mu.Lock()
	c.table[rec.ID] = rec
	listeners := make([]Listener, len(c.listeners))
	for i, l := range c.listeners {
		listeners[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(rec.ID, rec)
	}
}

// Subscribe 注册回调。
func (c *MetadataCache) Subscribe(fn Listener) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, listenerEntry{id: c.nextID, fn: fn})
	return c.nextID
}

// Unsubscribe 取消回调，未知句柄被忽略。
func (c *MetadataCache) Unsubscribe(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l.id == sub {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

// Get 返回模块记录。
func (c *MetadataCache) Get(id string) (ModuleRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.table[id]
	return rec, ok
}

// Len 返回内存表中的记录数。
func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table)
}

// ReadAllForUser 返回用户所在通道上的全部模块版本，跳过空值与 "None"。
func (c *MetadataCache) ReadAllForUser(user User) Versions {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(Versions, len(c.table))
	for id, rec := range c.table {
		rel, ok := rec.Channels[user.Channel]
		if !ok || rel.Version == "" || rel.Version == ValueNone {
			continue
		}
		out[id] = VersionEntry{Hash: rel.Version, Time: rel.Date}
	}
	return out
}
