package modver

import (
	"context"
	"fmt"
)

// Poll 执行一次刷新周期。
// 版本号未变化时不做任何事；变化时解析文档并整体替换快照。
// 失败时快照与已记录的版本号保持不变。
func (r *Refresher) Poll(ctx context.Context) (bool, error) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// 1. 拉取文档与版本号
	fetch, err := r.source.Fetch(ctx)
	if err != nil {
		refreshCycles.WithLabelValues("error").Inc()
		return false, fmt.Errorf("fetch configuration failed: %w", err)
	}

	// 2. 版本号未变化
	if r.seen.Load() && fetch.Version == r.lastVersion {
		refreshCycles.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	// 3. 解析
	doc, err := ParseDocument(fetch.Body)
	if err != nil {
		refreshCycles.WithLabelValues("error").Inc()
		return false, fmt.Errorf("parse configuration %q failed: %w", fetch.Version, err)
	}
	if skipped := doc.Skipped.ErrorOrNil(); skipped != nil {
		r.logger.Warn("configuration entries skipped",
			"version", fetch.Version, "count", len(doc.Skipped.Errors), "error", skipped)
	}

	// 4. 构建快照并原子替换
	ss := &Snapshot{
		Version: fetch.Version,
		Digest:  ComputeDigest(doc.Modules),
		Modules: doc.Modules,
	}
	r.store.Replace(ss)
	r.lastVersion = fetch.Version
	r.seen.Store(true)

	refreshCycles.WithLabelValues("updated").Inc()
	snapshotModules.Set(float64(len(ss.Modules)))
	r.logger.Info("configuration snapshot updated",
		"version", ss.Version, "digest", ss.Digest, "modules", len(ss.Modules))

	return true, nil
}
