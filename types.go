package modver

// Channel 发布通道。
type Channel string

const (
	ChannelTrunk    Channel = "trunk"
	ChannelBeta     Channel = "beta"
	ChannelRelease  Channel = "release"
	ChannelHistory1 Channel = "history_1" // 回滚槽位
	ChannelHistory2 Channel = "history_2"
)

// Valid 报告是否为用户可以所在的通道 (history 槽位只用于回滚，不分配给用户)。
func (c Channel) Valid() bool {
	switch c {
	case ChannelTrunk, ChannelBeta, ChannelRelease:
		return true
	}
	return false
}

// Known 报告是否为版本表中可以出现的通道 (包括 history 槽位)。
func (c Channel) Known() bool {
	return c.Valid() || c == ChannelHistory1 || c == ChannelHistory2
}

// VersionEntry 模块构建指纹与构建时间。
type VersionEntry struct {
	Hash string `json:"hash"`
	Time string `json:"time"`
}

// ChannelVersionSet 通道 -> 原始版本串 ("<hash>|<time>" 或 "None")。
type ChannelVersionSet map[Channel]string

// Lookup 返回指定通道的解析结果，"None"、空值或格式错误都视为不存在。
func (s ChannelVersionSet) Lookup(ch Channel) (VersionEntry, bool) {
	raw, ok := s[ch]
	if !ok {
		return VersionEntry{}, false
	}
	return ParseVersionEntry(raw)
}

// Snapshot 代表某个配置版本的回退快照。
// 发布后不再修改，刷新时整体替换。
type Snapshot struct {
	Version string                       // 配置版本号 (来自 configuration-version 头)
	Digest  string                       // 模块表内容的 Hash
	Modules map[string]ChannelVersionSet // ModuleID -> 各通道版本
}

// User 单次请求的用户上下文。
type User struct {
	ID         string            `json:"id"`
	Group      string            `json:"group"`
	Channel    Channel           `json:"type"`
	Attributes map[string]string `json:"context,omitempty"`
}

// EvaluationResult 单个模块的解析结果。
type EvaluationResult struct {
	Module   string
	Resolved bool
	Entry    VersionEntry
}

// ReleaseInfo 持久化表中某通道的版本信息。
type ReleaseInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
}

// ModuleRecord 模块元数据记录 (持久化表 + 变更流)。
type ModuleRecord struct {
	ID       string                  `json:"id"`
	Channels map[Channel]ReleaseInfo `json:"channels"`
}

// Versions 去掉命名空间前缀后的模块名 -> 版本。
type Versions map[string]VersionEntry

// FeatureValue 评估值 (联合类型，只会有一个成员被设置)。
type FeatureValue struct {
	StringValue *string  `json:"stringValue,omitempty"`
	BoolValue   *bool    `json:"boolValue,omitempty"`
	LongValue   *int64   `json:"longValue,omitempty"`
	DoubleValue *float64 `json:"doubleValue,omitempty"`
}

// String 返回字符串成员，未设置时为空串。
func (v FeatureValue) String() string {
	if v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// Any 返回被设置的成员；有多个时后者优先。
func (v FeatureValue) Any() any {
	var out any
	if v.StringValue != nil {
		out = *v.StringValue
	}
	if v.BoolValue != nil {
		out = *v.BoolValue
	}
	if v.LongValue != nil {
		out = *v.LongValue
	}
	if v.DoubleValue != nil {
		out = *v.DoubleValue
	}
	return out
}

// EvaluationRequest 单个 Flag 的评估请求。
type EvaluationRequest struct {
	EntityID          string `json:"entityId"`
	Feature           string `json:"feature"`
	EvaluationContext string `json:"evaluationContext,omitempty"`
}

// EvaluationResponse 单个 Flag 的评估结果。
// Feature 可能是完整路径，最后一段为 Flag 名。
type EvaluationResponse struct {
	Feature   string       `json:"feature"`
	Value     FeatureValue `json:"value"`
	Reason    string       `json:"reason"`
	Variation string       `json:"variation"`
}

// FeatureResult 单 Flag 评估对外结果 (供准入判断使用)。
type FeatureResult struct {
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	Variation string `json:"variation"`
	Value     any    `json:"value"`
}
