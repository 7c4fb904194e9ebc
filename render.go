package modver

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// taggedValue 跨边界传输 Map / Set 时的显式标记格式。
type taggedValue struct {
	DataType string `json:"dataType"`
	Value    any    `json:"value"`
}

// MarshalJSON 输出 {"dataType":"Map","value":[[key,{hash,time}],...]}，按 key 排序。
func (v Versions) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([][2]any, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, [2]any{k, v[k]})
	}
	return json.Marshal(taggedValue{DataType: "Map", Value: entries})
}

// UnmarshalJSON 接受 MarshalJSON 的输出。
func (v *Versions) UnmarshalJSON(data []byte) error {
	var tagged struct {
		DataType string            `json:"dataType"`
		Value    []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if tagged.DataType != "Map" {
		return fmt.Errorf("unexpected dataType %q", tagged.DataType)
	}
	out := make(Versions, len(tagged.Value))
	for _, raw := range tagged.Value {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("map entry must have 2 elements, got %d", len(pair))
		}
		var key string
		var entry VersionEntry
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], &entry); err != nil {
			return err
		}
		out[key] = entry
	}
	*v = out
	return nil
}

// TaggedSet 以 {"dataType":"Set","value":[...]} 形式序列化的集合。
type TaggedSet []string

// MarshalJSON 输出排序后的集合。
func (s TaggedSet) MarshalJSON() ([]byte, error) {
	values := append([]string(nil), s...)
	sort.Strings(values)
	return json.Marshal(taggedValue{DataType: "Set", Value: values})
}

// TaggedMap 以 {"dataType":"Map","value":[[k,v],...]} 形式序列化的任意 map。
type TaggedMap map[string]any

// MarshalJSON 输出按 key 排序的条目。
func (m TaggedMap) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([][2]any, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, [2]any{k, m[k]})
	}
	return json.Marshal(taggedValue{DataType: "Map", Value: entries})
}

// EncodeClientConfig 合并前端配置与模块版本，输出给模板渲染方。
// cfg 中的 Versions / TaggedSet / TaggedMap 会按标记格式输出。
func EncodeClientConfig(cfg map[string]any, versions Versions) ([]byte, error) {
	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	if versions == nil {
		versions = Versions{}
	}
	out["components"] = versions
	return json.Marshal(out)
}

// DocumentKey 返回应用主文档对应的模块名。
func DocumentKey(app string) string {
	return strings.ToLower(app) + "-html"
}

// DocumentVersion 返回应用主文档的版本。
// 主文档缺失时请求无法继续，返回 ErrDocumentVersionMissing。
func DocumentVersion(app string, versions Versions) (VersionEntry, error) {
	key := DocumentKey(app)
	entry, ok := versions[key]
	if !ok || entry.Hash == "" {
		return VersionEntry{}, fmt.Errorf("%w: %s", ErrDocumentVersionMissing, key)
	}
	return entry, nil
}
