package modver

import (
	"regexp"
	"strings"
)

// moduleNamePattern 模块 Flag 命名约定：<Namespace>Module_<Bare>
var moduleNamePattern = regexp.MustCompile(`^([A-Za-z]*)Module_(.+)$`)

// versionSeparator 版本串分隔符，两侧允许空白、'*' 与不换行空格。
var versionSeparator = regexp.MustCompile(`[\s*\x{00A0}]*\|[\s*\x{00A0}]*`)

const sharedNamespace = "shared"

const trimSet = " \t\u00a0"

// ModuleName 拆分后的模块 Flag 名。
type ModuleName struct {
	Full      string
	Namespace string
	Bare      string
}

// ParseModuleName 按命名约定拆分 Flag 名，不符合约定时返回 false。
func ParseModuleName(name string) (ModuleName, bool) {
	m := moduleNamePattern.FindStringSubmatch(name)
	if m == nil {
		return ModuleName{}, false
	}
	return ModuleName{Full: name, Namespace: m[1], Bare: m[2]}, true
}

// IsModuleName 报告 name 是否符合模块命名约定。
func IsModuleName(name string) bool {
	return moduleNamePattern.MatchString(name)
}

// MatchesProduct 检查模块是否属于指定产品 (大小写不敏感)。
// 命名空间等于产品前缀，或无命名空间且 Bare 以 "<prefix>-" 开头都算属于该产品。
func (n ModuleName) MatchesProduct(product string) bool {
	if product == "" {
		return false
	}
	if strings.EqualFold(n.Namespace, product) {
		return true
	}
	if n.Namespace != "" {
		return false
	}
	p := strings.ToLower(product) + "-"
	return strings.HasPrefix(strings.ToLower(n.Bare), p)
}

// Shared 报告模块是否位于公共命名空间：SharedModule_*，或无命名空间的 Module_shared*。
// 其它产品命名空间下的 Bare 即使以 shared 开头也不算公共模块。
func (n ModuleName) Shared() bool {
	if strings.EqualFold(n.Namespace, sharedNamespace) {
		return true
	}
	return n.Namespace == "" && strings.HasPrefix(strings.ToLower(n.Bare), sharedNamespace)
}

// Visible 报告模块对指定产品是否可见。
func (n ModuleName) Visible(product string) bool {
	return n.MatchesProduct(product) || n.Shared()
}

// FlagBasename 返回 Feature 路径的最后一段。
func FlagBasename(feature string) string {
	if idx := strings.LastIndex(feature, "/"); idx >= 0 {
		return feature[idx+1:]
	}
	return feature
}

// ParseVersionEntry 解析 "<hash> | <time>"，多余的分段会被忽略。
// Hash 为空或值为 "None" 时返回 false；缺少时间部分时 Time 为空。
func ParseVersionEntry(raw string) (VersionEntry, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == ValueNone {
		return VersionEntry{}, false
	}
	parts := versionSeparator.Split(raw, -1)
	hash := strings.Trim(parts[0], trimSet)
	if hash == "" {
		return VersionEntry{}, false
	}
	entry := VersionEntry{Hash: hash}
	if len(parts) > 1 {
		entry.Time = strings.Trim(parts[1], trimSet)
	}
	return entry, true
}
