package modver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// feedMaxLen 变更流保留的近似长度
const feedMaxLen = 1000

// publishScript 写入记录并发送变更通知。
// 记录内容未变化时不写入也不通知，返回 0。
var publishScript = redis.NewScript(`
	local tableKey = KEYS[1]
	local streamKey = KEYS[2]

	local id = ARGV[1]
	local recordJSON = ARGV[2]
	local streamData = ARGV[3]
	local maxLen = ARGV[4]

	local current = redis.call('HGET', tableKey, id)
	if current == recordJSON then
		return 0
	end

	redis.call('HSET', tableKey, id, recordJSON)
	redis.call('XADD', streamKey, 'MAXLEN', '~', maxLen, '*', 'data', streamData)

	return 1
`)

// MetadataPublisher 变更流的写入端。
type MetadataPublisher struct {
	rdb *redis.Client
}

// NewMetadataPublisher 创建发布者。
// client: Redis 客户端实例（外部传入，DI）。
func NewMetadataPublisher(client *redis.Client) *MetadataPublisher {
	return &MetadataPublisher{rdb: client}
}

// Publish 写入模块记录并通知订阅方，返回实际发生变化的记录数。
func (p *MetadataPublisher) Publish(ctx context.Context, records ...ModuleRecord) (int, error) {
	changed := 0
	for _, rec := range records {
		if rec.ID == "" {
			return changed, fmt.Errorf("publish module record: missing id")
		}

		// 1. 序列化记录 (字段顺序固定，map key 已排序，可直接比较)
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return changed, fmt.Errorf("marshal module record %s: %w", rec.ID, err)
		}

		// 2. Stream 载荷
		msg := FeedMessage{
			ID:        uuid.NewString(),
			Event:     EventUpsert,
			Record:    rec,
			Timestamp: time.Now().Unix(),
		}
		msgData, err := json.Marshal(msg)
		if err != nil {
			return changed, fmt.Errorf("marshal feed message %s: %w", rec.ID, err)
		}

		// 3. 原子写入 + 通知
		keys := []string{KeyModules(), KeyFeed()}
		n, err := publishScript.Run(ctx, p.rdb, keys,
			rec.ID, string(recordJSON), string(msgData), feedMaxLen).Int()
		if err != nil {
			return changed, fmt.Errorf("publish module record %s: %w", rec.ID, err)
		}
		changed += n
	}
	return changed, nil
}

// Load 读取持久化表中的记录，不存在时返回 false。
func (p *MetadataPublisher) Load(ctx context.Context, id string) (ModuleRecord, bool, error) {
	raw, err := p.rdb.HGet(ctx, KeyModules(), id).Result()
	if errors.Is(err, redis.Nil) {
		return ModuleRecord{ID: id}, false, nil
	}
	if err != nil {
		return ModuleRecord{}, false, fmt.Errorf("load module record %s: %w", id, err)
	}
	var rec ModuleRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ModuleRecord{}, false, fmt.Errorf("unmarshal module record %s: %w", id, err)
	}
	return rec, true, nil
}
