package config

import (
	"fmt"
	"strconv"
	"strings"

	"steamwatch/internal/apperr"
)

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envVar binds one environment variable to a config field.
type envVar struct {
	name string
	key  string
	set  func(c *Config, v string) error
}

var envVars = []envVar{
	{"STEAM_APPID", "app_id", func(c *Config, v string) error { c.AppID = v; return nil }},
	{"WEBHOOK_URL", "sink.webhook_url", func(c *Config, v string) error { c.Sink.WebhookURL = v; return nil }},
	{"GIST_TOKEN", "marker.gist.token", func(c *Config, v string) error { c.Marker.Gist.Token = v; return nil }},
	{"GIST_ID", "marker.gist.id", func(c *Config, v string) error { c.Marker.Gist.ID = v; return nil }},
	{"MESSAGE_PREFIX", "message.prefix", func(c *Config, v string) error { c.Message.Prefix = v; return nil }},
	{"MARKER_DRIVER", "marker.driver", func(c *Config, v string) error { c.Marker.Driver = v; return nil }},
	{"MARKER_FILE", "marker.path", func(c *Config, v string) error { c.Marker.Path = v; return nil }},
	{"MARKER_DSN", "marker.dsn", func(c *Config, v string) error { c.Marker.DSN = v; return nil }},
	{"REDIS_ADDR", "marker.redis.addr", func(c *Config, v string) error { c.Marker.Redis.Addr = v; return nil }},
	{"SKIP_FEEDS", "filter.skip_feeds", func(c *Config, v string) error { c.Filter.SkipFeeds = splitList(v); return nil }},
	{"FILTER_POLICY", "filter.policy", func(c *Config, v string) error { c.Filter.Policy = v; return nil }},
	{"SINK_KIND", "sink.kind", func(c *Config, v string) error { c.Sink.Kind = v; return nil }},
	{"TELEGRAM_TOKEN", "sink.telegram.token", func(c *Config, v string) error { c.Sink.Telegram.Token = v; return nil }},
	{"TELEGRAM_CHAT_ID", "sink.telegram.chat_id", func(c *Config, v string) error {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		c.Sink.Telegram.ChatID = id
		return nil
	}},
	{"SCHEDULE", "schedule", func(c *Config, v string) error { c.Schedule = v; return nil }},
	{"LOG_LEVEL", "logging.level", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
}

// ApplyEnv overlays set environment variables onto cfg. A variable that is
// set, even to the empty string, wins over the file, except where noted:
// an empty TELEGRAM_CHAT_ID is ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		return nil
	}
	var bad []string
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if ev.name == "TELEGRAM_CHAT_ID" && strings.TrimSpace(v) == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			bad = append(bad, fmt.Sprintf("%s (%s): %v", ev.name, ev.key, err))
		}
	}
	if len(bad) > 0 {
		return &apperr.ConfigError{Invalid: bad}
	}
	return nil
}

// splitList splits a comma separated list, dropping blanks. The result is
// never nil so that an empty value explicitly clears the list.
func splitList(v string) []string {
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// label renders a setting as "ENV (key)" when it has an environment variable.
func label(key string) string {
	for _, ev := range envVars {
		if ev.key == key {
			return ev.name + " (" + key + ")"
		}
	}
	return key
}
