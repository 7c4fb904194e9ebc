package modver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedEvent 变更流中的一个事件：一条记录，或初始回填完成标记。
type FeedEvent struct {
	Ready  bool
	Record ModuleRecord
}

// FeedSource 变更流。Next 阻塞直到有下一个事件；只有消费方准备好时才会被调用。
type FeedSource interface {
	Next(ctx context.Context) (FeedEvent, error)
}

// RedisFeed 以 Redis Hash 为持久化表、Redis Stream 为变更通知的变更流。
// 先回填整张表并发出 Ready 标记，之后持续读取 Stream。
type RedisFeed struct {
	rdb    *redis.Client
	block  time.Duration
	logger *slog.Logger

	started bool
	lastID  string
	backlog []FeedEvent
}

// NewRedisFeed 创建 RedisFeed。
func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{
		rdb:    client,
		block:  5 * time.Second,
		logger: logger,
	}
}

// SetBlock 设置单次 XREAD 的阻塞时长。
func (f *RedisFeed) SetBlock(d time.Duration) {
	if d > 0 {
		f.block = d
	}
}

// Next 实现 FeedSource。
func (f *RedisFeed) Next(ctx context.Context) (FeedEvent, error) {
	if !f.started {
		if err := f.backfill(ctx); err != nil {
			return FeedEvent{}, err
		}
		f.started = true
	}

	for {
		if len(f.backlog) > 0 {
			ev := f.backlog[0]
			f.backlog = f.backlog[1:]
			return ev, nil
		}
		if err := ctx.Err(); err != nil {
			return FeedEvent{}, err
		}

		// 阻塞读取
		streams, err := f.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{KeyFeed(), f.lastID},
			Block:   f.block,
			Count:   100,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return FeedEvent{}, fmt.Errorf("read feed %s: %w", KeyFeed(), err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				f.lastID = msg.ID
				if rec, ok := f.decode(msg); ok {
					f.backlog = append(f.backlog, FeedEvent{Record: rec})
				}
			}
		}
	}
}

// backfill 读取整张表。
// 先记录 Stream 末尾再读表，回填期间的更新会在之后重放一次 (按 id 覆盖，重复无害)。
func (f *RedisFeed) backfill(ctx context.Context) error {
	// 1. 记录 Stream 当前末尾
	tail, err := f.rdb.XRevRangeN(ctx, KeyFeed(), "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read feed tail: %w", err)
	}
	f.lastID = "0-0"
	if len(tail) > 0 {
		f.lastID = tail[0].ID
	}

	// 2. 加载持久化表
	all, err := f.rdb.HGetAll(ctx, KeyModules()).Result()
	if err != nil {
		return fmt.Errorf("load module table: %w", err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var rec ModuleRecord
		if err := json.Unmarshal([]byte(all[id]), &rec); err != nil {
			f.logger.Warn("skipping malformed module record", "id", id, "error", err)
			continue
		}
		if rec.ID == "" {
			rec.ID = id
		}
		f.backlog = append(f.backlog, FeedEvent{Record: rec})
	}

	// 3. 回填完成
	f.backlog = append(f.backlog, FeedEvent{Ready: true})
	f.logger.Info("module table backfilled", "records", len(ids), "from", f.lastID)
	return nil
}

func (f *RedisFeed) decode(msg redis.XMessage) (ModuleRecord, bool) {
	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		return ModuleRecord{}, false
	}
	var fm FeedMessage
	if err := json.Unmarshal([]byte(dataStr), &fm); err != nil {
		f.logger.Warn("skipping malformed feed message", "stream_id", msg.ID, "error", err)
		return ModuleRecord{}, false
	}
	if fm.Event != EventUpsert || fm.Record.ID == "" {
		return ModuleRecord{}, false
	}
	return fm.Record, true
}
