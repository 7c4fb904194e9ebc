package modver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Resolver 是主要入口点：持有回退快照、刷新器与评估器。
// 生命周期：New -> Init -> ... -> Shutdown。
type Resolver struct {
	opts      Options
	logger    *slog.Logger
	store     *SnapshotStore
	refresher *Refresher
	batch     *BatchEvaluator
	flags     *FlagEvaluator
}

// ResolverOption 注入依赖 (测试或自定义传输)。
type ResolverOption func(*resolverDeps)

type resolverDeps struct {
	logger    *slog.Logger
	client    *http.Client
	source    ConfigSource
	evaluator Evaluator
}

// WithLogger 指定日志。
func WithLogger(l *slog.Logger) ResolverOption {
	return func(d *resolverDeps) { d.logger = l }
}

// WithHTTPClient 指定 Sidecar 与评估服务共用的 HTTP 客户端。
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(d *resolverDeps) { d.client = c }
}

// WithConfigSource 替换配置文档来源。
func WithConfigSource(s ConfigSource) ResolverOption {
	return func(d *resolverDeps) { d.source = s }
}

// WithEvaluator 替换评估服务客户端。
func WithEvaluator(e Evaluator) ResolverOption {
	return func(d *resolverDeps) { d.evaluator = e }
}

// New 创建 Resolver。不会发起任何网络请求。
func New(opts Options, setters ...ResolverOption) (*Resolver, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	deps := &resolverDeps{}
	for _, set := range setters {
		set(deps)
	}
	if deps.logger == nil {
		deps.logger = slog.Default()
	}
	if deps.client == nil {
		deps.client = &http.Client{Timeout: opts.RequestTimeout}
	}
	if deps.source == nil {
		deps.source = NewAgentSource(opts.AgentURL, opts.ConfigPath, deps.client)
	}
	if deps.evaluator == nil {
		deps.evaluator = NewHTTPEvaluator(opts.EvaluationEndpoint(), deps.client)
	}

	logger := deps.logger.With("project", opts.ProjectName())
	store := NewSnapshotStore()

	return &Resolver{
		opts:      opts,
		logger:    logger,
		store:     store,
		refresher: NewRefresher(deps.source, store, opts.PollInterval, opts.RequestTimeout, logger),
		batch:     NewBatchEvaluator(deps.evaluator, store, opts.ProjectName(), opts.BatchSize, opts.RequestTimeout, logger),
		flags:     NewFlagEvaluator(deps.evaluator, opts.ProjectName(), opts.RequestTimeout, logger),
	}, nil
}

// Init 立即加载快照并开始后台轮询。
// 加载失败不会返回错误，轮询会继续重试。
func (r *Resolver) Init(ctx context.Context) {
	r.refresher.Ensure(ctx)
}

// Shutdown 停止后台轮询。
func (r *Resolver) Shutdown() {
	r.refresher.Stop()
}

// Snapshot 返回当前回退快照。
func (r *Resolver) Snapshot() *Snapshot {
	return r.store.Current()
}

// ModuleVersions 为用户解析产品下全部模块的版本。
// 第一次调用时会同步加载快照并启动轮询。
func (r *Resolver) ModuleVersions(ctx context.Context, product string, user User) (Versions, error) {
	r.refresher.Ensure(ctx)
	return r.batch.Resolve(ctx, product, user, r.store.Names())
}

// Feature 评估单个 Flag，失败时返回 Missing 结果。
func (r *Resolver) Feature(ctx context.Context, flag string, user User) FeatureResult {
	return r.flags.Evaluate(ctx, flag, user)
}

// Allow 判断用户是否满足 Gate。
func (r *Resolver) Allow(ctx context.Context, gate Gate, user User) bool {
	return gate.Allow(ctx, r.flags, user)
}
