package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	modver "github.com/btt-go/btt-modver"
)

var configFile string

// rootCmd 不带子命令时的根命令
var rootCmd = &cobra.Command{
	Use:          "modver",
	Short:        "Resolve per-user module versions from feature flags",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ./modver.yaml)")
	rootCmd.AddCommand(serveCmd, resolveCmd, flagCmd, publishCmd)
}

// setup 加载配置并设置进程日志。
func setup() (*appConfig, *slog.Logger, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	modver.SetPrefix(cfg.Resolver.Redis.Prefix)
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newRedis(o modver.RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
}

// userFlags 绑定 resolve 与 flag 共用的用户参数。
func userFlags(cmd *cobra.Command, u *userInput) {
	cmd.Flags().StringVar(&u.id, "user", "", "user id (entity id)")
	cmd.Flags().StringVar(&u.group, "group", "", "user group")
	cmd.Flags().StringVar(&u.channel, "channel", string(modver.ChannelRelease), "release channel: trunk|beta|release")
	cmd.Flags().StringToStringVar(&u.attrs, "attr", nil, "evaluation context attribute key=value (repeatable)")
	_ = cmd.MarkFlagRequired("user")
}

type userInput struct {
	id      string
	group   string
	channel string
	attrs   map[string]string
}

func (u userInput) user() (modver.User, error) {
	return parseUser(u.id, u.group, u.channel, u.attrs)
}
