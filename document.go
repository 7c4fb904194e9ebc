package modver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// maxDocumentSize 配置文档大小上限
const maxDocumentSize = 8 << 20

// Document 解析后的配置文档。
type Document struct {
	Project string
	Modules map[string]ChannelVersionSet
	// Skipped 被跳过的条目，仅用于日志。
	Skipped *multierror.Error
}

type rawDocument struct {
	Project  string          `json:"project"`
	Features json.RawMessage `json:"features"`
}

type rawFeature struct {
	Name       string          `json:"name"`
	Variations json.RawMessage `json:"variations"`
}

// rawVariation 列表形式的 variation：{"name": "trunk", "value": ...}
type rawVariation struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// ParseDocument 解析配置文档 {project, features: [{name, variations}]}。
// features 可以是数组或对象；variations 可以是 通道->字符串 的对象，
// 也可以是 [{name, value}] 列表。
// 格式错误的条目被跳过并记录在 Skipped 中，只有整体结构错误才返回 error。
func ParseDocument(body []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal document failed: %w", err)
	}

	features, err := splitFeatures(raw.Features)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Project: raw.Project,
		Modules: make(map[string]ChannelVersionSet),
	}

	for i, item := range features {
		var f rawFeature
		if err := json.Unmarshal(item, &f); err != nil {
			doc.Skipped = multierror.Append(doc.Skipped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		if f.Name == "" {
			doc.Skipped = multierror.Append(doc.Skipped, fmt.Errorf("feature %d: missing name", i))
			continue
		}
		// 只保留模块 Flag，其它 Flag 不是错误
		if !IsModuleName(f.Name) {
			continue
		}
		set, err := doc.parseVariations(f.Name, f.Variations)
		if err != nil {
			doc.Skipped = multierror.Append(doc.Skipped, fmt.Errorf("feature %s: %w", f.Name, err))
			continue
		}
		doc.Modules[f.Name] = set
	}

	return doc, nil
}

func splitFeatures(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("unmarshal features failed: %w", err)
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("unmarshal features failed: %w", err)
		}
		list := make([]json.RawMessage, 0, len(obj))
		for _, v := range obj {
			list = append(list, v)
		}
		return list, nil
	}
	return nil, errors.New("features must be an array or an object")
}

// parseVariations 解析单个 Feature 的通道表。
// 个别通道错误记录到 Skipped，不影响其它通道；没有任何有效通道时返回 error。
func (doc *Document) parseVariations(name string, data json.RawMessage) (ChannelVersionSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errors.New("missing variations")
	}

	set := make(ChannelVersionSet)
	apply := func(channel string, value json.RawMessage) {
		if err := setVariation(set, channel, value); err != nil {
			doc.Skipped = multierror.Append(doc.Skipped, fmt.Errorf("feature %s: %w", name, err))
		}
	}

	switch data[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		for channel, v := range obj {
			apply(channel, v)
		}
	case '[':
		var list []rawVariation
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		for _, v := range list {
			apply(v.Name, v.Value)
		}
	default:
		return nil, errors.New("variations must be an array or an object")
	}

	if len(set) == 0 {
		return nil, errors.New("no channel variations")
	}
	return set, nil
}

func setVariation(set ChannelVersionSet, name string, value json.RawMessage) error {
	ch := Channel(strings.ToLower(name))
	if !ch.Known() {
		return nil
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		set[ch] = s
		return nil
	}
	var fv FeatureValue
	if err := json.Unmarshal(value, &fv); err == nil && fv.StringValue != nil {
		set[ch] = *fv.StringValue
		return nil
	}
	return fmt.Errorf("variation %s: value is not a string", name)
}

// ConfigFetch 一次拉取的结果。
type ConfigFetch struct {
	Version string
	Body    []byte
}

// ConfigSource 配置文档来源。
type ConfigSource interface {
	Fetch(ctx context.Context) (*ConfigFetch, error)
}

// AgentSource 从本地评估 Sidecar 拉取配置文档：GET <agentURL>/<configPath>。
type AgentSource struct {
	client *http.Client
	url    string
}

// NewAgentSource 创建 AgentSource。client 为 nil 时使用带超时的默认客户端。
func NewAgentSource(agentURL, configPath string, client *http.Client) *AgentSource {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &AgentSource{
		client: client,
		url:    strings.TrimRight(agentURL, "/") + "/" + strings.TrimLeft(configPath, "/"),
	}
}

// Fetch 拉取配置文档及其版本号。
func (a *AgentSource) Fetch(ctx context.Context) (*ConfigFetch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &ConfigFetch{
		Version: resp.Header.Get(HeaderConfigVersion),
		Body:    body,
	}, nil
}

// ProjectFromConfigPath 返回配置路径的最后一段，作为评估项目名。
func ProjectFromConfigPath(configPath string) string {
	return FlagBasename(strings.TrimRight(configPath, "/"))
}
