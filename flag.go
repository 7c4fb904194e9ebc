package modver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

var flagNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-]*$`)

// ValidateFlagName 校验并返回规范化的 Flag 名。
func ValidateFlagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !flagNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFlagName, name)
	}
	return name, nil
}

// FlagEvaluator 单 Flag 同步评估，用于准入判断。
type FlagEvaluator struct {
	evaluator Evaluator
	project   string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFlagEvaluator 创建 FlagEvaluator。
func NewFlagEvaluator(evaluator Evaluator, project string, timeout time.Duration, logger *slog.Logger) *FlagEvaluator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlagEvaluator{
		evaluator: evaluator,
		project:   project,
		timeout:   timeout,
		logger:    logger,
	}
}

// Missing 返回评估失败时的哨兵结果。
func Missing(userID string) FeatureResult {
	return FeatureResult{
		ID:        userID,
		Reason:    ReasonMissing,
		Value:     "",
		Variation: VariationNone,
	}
}

// Evaluate 评估单个 Flag。任何失败都返回 Missing 结果，不会返回 error。
func (f *FlagEvaluator) Evaluate(ctx context.Context, flag string, user User) (result FeatureResult) {
	defer func() {
		// 评估客户端 panic 同样视为不可用
		if r := recover(); r != nil {
			f.logger.Error("flag evaluation panicked", "flag", flag, "panic", r)
			result = Missing(user.ID)
		}
		flagEvaluations.WithLabelValues(result.Reason).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.evaluator.Evaluate(ctx, f.project, EvaluationRequest{
		EntityID:          user.ID,
		Feature:           flag,
		EvaluationContext: evaluationContext(user),
	})
	if err != nil {
		f.logger.Debug("flag evaluation failed", "flag", flag, "user", user.ID, "error", err)
		return Missing(user.ID)
	}
	if resp.Reason == "" {
		f.logger.Debug("flag evaluation malformed", "flag", flag, "user", user.ID)
		return Missing(user.ID)
	}

	return FeatureResult{
		ID:        user.ID,
		Reason:    resp.Reason,
		Variation: resp.Variation,
		Value:     resp.Value.Any(),
	}
}

// Gate Flag 准入条件：值或 variation 命中任一集合即放行。
type Gate struct {
	Flag       string
	Values     mapset.Set[string]
	Variations mapset.Set[string]
}

// NewGate 创建 Gate。values 支持 string / bool / 数字，内部统一按文本比较。
func NewGate(flag string, values []any, variations []string) Gate {
	g := Gate{
		Flag:       flag,
		Values:     mapset.NewSet[string](),
		Variations: mapset.NewSet[string](variations...),
	}
	for _, v := range values {
		g.Values.Add(fmt.Sprint(v))
	}
	return g
}

// Admits 判断评估结果是否满足条件。
func (g Gate) Admits(result FeatureResult) bool {
	if result.Value != nil && g.Values != nil && g.Values.Contains(fmt.Sprint(result.Value)) {
		return true
	}
	return g.Variations != nil && g.Variations.Contains(result.Variation)
}

// Allow 评估 Flag 并判断用户是否放行。
func (g Gate) Allow(ctx context.Context, f *FlagEvaluator, user User) bool {
	return g.Admits(f.Evaluate(ctx, g.Flag, user))
}
