package modver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// ComputeDigest 计算模块表的全局 Hash。
// 按 ModuleID 排序后依次写入 Key 与通道表，保证结果与 map 遍历顺序无关。
func ComputeDigest(modules map[string]ChannelVersionSet) string {
	keys := make([]string, 0, len(modules))
	for k := range modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		// encoding/json 对 map key 排序，序列化结果是确定的
		data, _ := json.Marshal(modules[k])
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
