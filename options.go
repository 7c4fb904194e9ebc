package modver

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Options 解析器配置。
type Options struct {
	// ConfigPath 配置文档在 Sidecar 上的路径，最后一段默认作为评估项目名。
	ConfigPath string `mapstructure:"config_path"`
	// Project 评估项目名，为空时取 ConfigPath 最后一段。
	Project string `mapstructure:"project"`
	// AgentURL 本地 Sidecar 地址 (配置文档)。
	AgentURL string `mapstructure:"agent_url"`
	// EvaluationURL 评估服务地址，为空时与 AgentURL 相同。
	EvaluationURL string `mapstructure:"evaluation_url"`

	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BatchSize      int           `mapstructure:"batch_size"`

	Redis RedisOptions `mapstructure:"redis"`
}

// RedisOptions 模块元数据表所在的 Redis。
type RedisOptions struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DefaultOptions 返回默认配置。
func DefaultOptions() Options {
	return Options{
		AgentURL:       DefaultAgentURL,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		BatchSize:      DefaultBatchSize,
		Redis: RedisOptions{
			Addr:   "localhost:6379",
			Prefix: "modver:",
		},
	}
}

// ProjectName 返回评估项目名。
func (o Options) ProjectName() string {
	if o.Project != "" {
		return o.Project
	}
	return ProjectFromConfigPath(o.ConfigPath)
}

// EvaluationEndpoint 返回评估服务地址。
func (o Options) EvaluationEndpoint() string {
	if o.EvaluationURL != "" {
		return o.EvaluationURL
	}
	return o.AgentURL
}

// Validate 检查配置，返回全部问题。
func (o Options) Validate() error {
	var errs *multierror.Error
	if o.ConfigPath == "" {
		errs = multierror.Append(errs, errors.New("config_path is required"))
	}
	if o.ProjectName() == "" {
		errs = multierror.Append(errs, errors.New("project cannot be derived from config_path"))
	}
	urls := [][2]string{{"agent_url", o.AgentURL}, {"evaluation_url", o.EvaluationEndpoint()}}
	for _, kv := range urls {
		name, raw := kv[0], kv[1]
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s %q is not an absolute url", name, raw))
		}
	}
	if o.PollInterval <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("poll_interval must be positive, got %s", o.PollInterval))
	}
	if o.RequestTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("request_timeout must be positive, got %s", o.RequestTimeout))
	}
	if o.BatchSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("batch_size must be positive, got %d", o.BatchSize))
	}
	return errs.ErrorOrNil()
}
