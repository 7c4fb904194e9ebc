package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	modver "github.com/btt-go/btt-modver"
)

var (
	publishID       string
	publishChannels map[string]string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Write a module metadata record and announce it on the change feed",
	Example: `  modver publish --id shop-html --set trunk="a1b2c3|2024-01-01T00:00:00Z"
  modver publish --id shop-html --set beta=None`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		if err := checkChannels(publishChannels); err != nil {
			return err
		}

		rdb := newRedis(cfg.Resolver.Redis)
		defer rdb.Close()

		ctx := context.Background()
		pub := modver.NewMetadataPublisher(rdb)

		rec, _, err := pub.Load(ctx, publishID)
		if err != nil {
			return err
		}
		rec.ID = publishID
		if err := applyChannels(&rec, publishChannels); err != nil {
			return err
		}

		n, err := pub.Publish(ctx, rec)
		if err != nil {
			return err
		}
		logger.Info("module record published", "id", rec.ID, "changed", n > 0)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishID, "id", "", "module id")
	publishCmd.Flags().StringToStringVar(&publishChannels, "set", nil, "channel=<hash>|<time> or channel=None (repeatable)")
	_ = publishCmd.MarkFlagRequired("id")
}

// checkChannels 拒绝未知通道，避免写入持久化表。
func checkChannels(sets map[string]string) error {
	for name := range sets {
		if !modver.Channel(strings.ToLower(name)).Known() {
			return fmt.Errorf("unknown channel %q", name)
		}
	}
	return nil
}

// applyChannels 把 --set 参数合并到记录中，"None" 表示清空该通道。
func applyChannels(rec *modver.ModuleRecord, sets map[string]string) error {
	if err := checkChannels(sets); err != nil {
		return err
	}
	if rec.Channels == nil {
		rec.Channels = make(map[modver.Channel]modver.ReleaseInfo)
	}
	for name, raw := range sets {
		ch := modver.Channel(strings.ToLower(name))
		if raw == modver.ValueNone {
			rec.Channels[ch] = modver.ReleaseInfo{Version: modver.ValueNone}
			continue
		}
		entry, ok := modver.ParseVersionEntry(raw)
		if !ok {
			return fmt.Errorf("invalid version %q for channel %s", raw, name)
		}
		rec.Channels[ch] = modver.ReleaseInfo{Version: entry.Hash, Date: entry.Time}
	}
	return nil
}
