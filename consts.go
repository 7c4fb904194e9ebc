package modver

import (
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("module not found")
	ErrFeedFailed             = errors.New("module feed failed")
	ErrDocumentVersionMissing = errors.New("document version missing")
	ErrInvalidFlagName        = errors.New("invalid flag name")
)

// Flag 服务约定的哨兵值
const (
	ValueNone     = "None"    // 未设置版本
	ReasonDefault = "DEFAULT" // 命中默认规则
	ReasonMissing = "MISSING" // 单 Flag 评估失败
	VariationNone = "NONE"
)

// 默认参数
const (
	DefaultBatchSize      = 20
	DefaultPollInterval   = 1 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultAgentURL       = "http://localhost:2772"

	// HeaderConfigVersion 配置文档的版本号响应头。
	HeaderConfigVersion = "Configuration-Version"
)

// prefix 模块元数据表与变更流共用的 Redis Key 前缀
var prefix = "modver:"

// SetPrefix 设置模块元数据表 (KeyModules) 与变更流 (KeyFeed) 的 Key 前缀，缺少结尾的 ':' 时自动补上。
// 需在创建 RedisFeed / MetadataPublisher 之前调用，运行中修改会让读写两端看到不同的 Key。
func SetPrefix(p string) {
	prefix = p
	if len(prefix) > 0 && prefix[len(prefix)-1] != ':' {
		prefix += ":"
	}
}

// Redis Key 后缀，与 prefix 拼接成完整 Key
const (
	SuffixModules = "modules" // Hash: ModuleID -> ModuleRecord JSON
	SuffixFeed    = "feed"    // Stream: FeedMessage，data 字段
)

// KeyModules 返回模块元数据的 Redis Key。
// 该 Hash 存储 ModuleID -> ModuleRecord JSON。
func KeyModules() string {
	return prefix + SuffixModules
}

// KeyFeed 返回模块变更通知的 Redis Stream Key。
func KeyFeed() string {
	return prefix + SuffixFeed
}

// Stream 事件类型
const (
	EventUpsert = "upsert"
)

// FeedMessage Redis Stream 消息载荷
type FeedMessage struct {
	ID        string       `json:"id"`     // 事件 ID (uuid)
	Event     string       `json:"event"`  // 事件类型
	Record    ModuleRecord `json:"record"` // 最新记录
	Timestamp int64        `json:"timestamp"`
}
