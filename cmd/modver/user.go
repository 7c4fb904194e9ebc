package main

import (
	"fmt"
	"strings"

	modver "github.com/btt-go/btt-modver"
)

// parseUser 逐个字段校验后再构造用户上下文。
func parseUser(id, group, channel string, attrs map[string]string) (modver.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return modver.User{}, fmt.Errorf("user id is required")
	}
	ch := modver.Channel(strings.ToLower(strings.TrimSpace(channel)))
	if ch == "" {
		ch = modver.ChannelRelease
	}
	if !ch.Valid() {
		return modver.User{}, fmt.Errorf("invalid channel %q", channel)
	}
	return modver.User{
		ID:         id,
		Group:      strings.TrimSpace(group),
		Channel:    ch,
		Attributes: attrs,
	}, nil
}
