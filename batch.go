package modver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// BatchEvaluator 分批并发评估模块 Flag，并与回退快照合并。
type BatchEvaluator struct {
	evaluator Evaluator
	store     *SnapshotStore
	project   string
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewBatchEvaluator 创建 BatchEvaluator。batchSize / timeout 为 0 时使用默认值。
func NewBatchEvaluator(evaluator Evaluator, store *SnapshotStore, project string, batchSize int, timeout time.Duration, logger *slog.Logger) *BatchEvaluator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchEvaluator{
		evaluator: evaluator,
		store:     store,
		project:   project,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger,
	}
}

// Partition 按 size 切分，最后一批可能不足 size。
func Partition(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		batches = append(batches, ids[i:min(i+size, len(ids))])
	}
	return batches
}

// Resolve 为用户解析模块版本。
// 返回值以去掉命名空间的模块名为 Key；无法解析的模块不出现在结果中。
// 任一批次失败时整体返回 error，其它批次仍会执行完毕。
func (b *BatchEvaluator) Resolve(ctx context.Context, product string, user User, moduleIDs []string) (Versions, error) {
	start := time.Now()

	requested := mapset.NewThreadUnsafeSet[string](moduleIDs...)
	batches := Partition(moduleIDs, b.batchSize)
	partials := make([]Versions, len(batches))
	evalCtx := evaluationContext(user)

	// 1. 并发执行所有批次，每个批次写入自己的结果槽位
	var g errgroup.Group
	for i, batch := range batches {
		g.Go(func() error {
			out, err := b.evaluateBatch(ctx, product, user, evalCtx, batch, requested)
			if err != nil {
				evaluationBatches.WithLabelValues("error").Inc()
				return err
			}
			evaluationBatches.WithLabelValues("ok").Inc()
			partials[i] = out
			return nil
		})
	}

	// 2. 等待全部完成
	if err := g.Wait(); err != nil {
		resolveSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("resolve module versions for %s: %w", product, err)
	}

	// 3. 按批次顺序合并 (同名时后者覆盖)
	versions := make(Versions)
	for _, p := range partials {
		for k, v := range p {
			versions[k] = v
		}
	}

	resolveSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	b.logger.Debug("module versions resolved",
		"product", product, "user", user.ID, "requested", len(moduleIDs), "resolved", len(versions))
	return versions, nil
}

func (b *BatchEvaluator) evaluateBatch(ctx context.Context, product string, user User, evalCtx string, batch []string, requested mapset.Set[string]) (Versions, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	reqs := make([]EvaluationRequest, 0, len(batch))
	for _, id := range batch {
		reqs = append(reqs, EvaluationRequest{
			EntityID:          user.ID,
			Feature:           id,
			EvaluationContext: evalCtx,
		})
	}

	results, err := b.evaluator.BatchEvaluate(ctx, b.project, reqs)
	if err != nil {
		return nil, err
	}

	out := make(Versions, len(results))
	for _, r := range results {
		res, ok := b.reconcile(product, user, r, requested)
		if !ok || !res.Resolved {
			continue
		}
		name, _ := ParseModuleName(res.Module)
		out[name.Bare] = res.Entry
	}
	return out, nil
}

// reconcile 合并单个评估结果与回退快照。
// 第二个返回值为 false 表示结果不属于本次请求或本产品，应直接丢弃。
func (b *BatchEvaluator) reconcile(product string, user User, r EvaluationResponse, requested mapset.Set[string]) (EvaluationResult, bool) {
	flag := FlagBasename(r.Feature)
	if !requested.Contains(flag) {
		return EvaluationResult{}, false
	}
	name, ok := ParseModuleName(flag)
	if !ok || !name.Visible(product) {
		return EvaluationResult{}, false
	}

	res := EvaluationResult{Module: flag}

	// 实时评估命中非默认规则
	if value := r.Value.String(); value != ValueNone && r.Reason != ReasonDefault {
		if entry, ok := ParseVersionEntry(value); ok {
			resolvedModules.WithLabelValues("live").Inc()
			res.Resolved = true
			res.Entry = entry
			return res, true
		}
	}

	// 回退到快照
	if entry, ok := b.store.Lookup(flag, user.Channel); ok {
		resolvedModules.WithLabelValues("fallback").Inc()
		res.Resolved = true
		res.Entry = entry
	}
	return res, true
}
