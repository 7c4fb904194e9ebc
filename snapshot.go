package modver

import (
	"sort"
	"sync/atomic"
)

// SnapshotStore 保存当前生效的回退快照。
// 读取无锁；Replace 整体替换指针，读者只会看到完整的旧快照或新快照。
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotStore 创建一个带空快照的 Store。
func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.current.Store(&Snapshot{Modules: make(map[string]ChannelVersionSet)})
	return s
}

// Current 返回当前快照，调用方不得修改。
func (s *SnapshotStore) Current() *Snapshot {
	return s.current.Load()
}

// Version 返回当前快照的配置版本，尚未加载时为空。
func (s *SnapshotStore) Version() string {
	return s.current.Load().Version
}

// Get 返回模块的通道版本表。
func (s *SnapshotStore) Get(moduleID string) (ChannelVersionSet, bool) {
	set, ok := s.current.Load().Modules[moduleID]
	return set, ok
}

// Lookup 返回模块在指定通道上的回退版本。
func (s *SnapshotStore) Lookup(moduleID string, ch Channel) (VersionEntry, bool) {
	set, ok := s.Get(moduleID)
	if !ok {
		return VersionEntry{}, false
	}
	return set.Lookup(ch)
}

// Names 返回当前快照中的全部模块名 (已排序)。
func (s *SnapshotStore) Names() []string {
	ss := s.current.Load()
	names := make([]string, 0, len(ss.Modules))
	for k := range ss.Modules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Replace 原子替换快照。nil 被忽略。
func (s *SnapshotStore) Replace(ss *Snapshot) {
	if ss == nil {
		return
	}
	if ss.Modules == nil {
		ss.Modules = make(map[string]ChannelVersionSet)
	}
	s.current.Store(ss)
}
