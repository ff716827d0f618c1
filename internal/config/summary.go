package config

import (
	"slices"
	"strings"

	"steamwatch/pkg/logx"
)

// SummarizeChange lists the config sections that differ between two configs
// plus log fields describing the new values. Secrets (tokens, passwords,
// webhook URLs, DSNs) are reported only as "set" flags.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	o, n := oldCfg, newCfg
	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if o.AppID != n.AppID || o.Feed != n.Feed || o.Timeout != n.Timeout || o.UserAgent != n.UserAgent {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.String("app_id", n.AppID),
			logx.String("feed.base_url", n.Feed.BaseURL),
			logx.String("timeout", n.Timeout),
		)
	}

	if o.Schedule != n.Schedule || o.Timezone != n.Timezone {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule", n.Schedule),
			logx.String("timezone", n.Timezone),
		)
	}

	if o.Message != n.Message || !slices.Equal(o.Filter.SkipFeeds, n.Filter.SkipFeeds) || o.Filter.Policy != n.Filter.Policy {
		changed = append(changed, "message")
		attrs = append(attrs,
			logx.Int("message.max_chunk", n.Message.MaxChunk),
			logx.String("filter.skip_feeds", strings.Join(n.Filter.SkipFeeds, ",")),
			logx.String("filter.policy", n.Filter.Policy),
		)
	}

	if o.Sink.Kind != n.Sink.Kind || o.Sink.WebhookURL != n.Sink.WebhookURL || !sameFlags(o.Sink.Flags, n.Sink.Flags) ||
		o.Sink.Username != n.Sink.Username || o.Sink.RatePerSec != n.Sink.RatePerSec || o.Sink.Telegram != n.Sink.Telegram {
		changed = append(changed, "sink")
		attrs = append(attrs,
			logx.String("sink.kind", n.Sink.Kind),
			logx.Bool("sink.webhook_set", strings.TrimSpace(n.Sink.WebhookURL) != ""),
			logx.Bool("sink.telegram_token_set", strings.TrimSpace(n.Sink.Telegram.Token) != ""),
		)
	}

	if o.Marker != n.Marker {
		changed = append(changed, "marker")
		attrs = append(attrs,
			logx.String("marker.driver", n.Marker.Driver),
			logx.Bool("marker.gist_token_set", strings.TrimSpace(n.Marker.Gist.Token) != ""),
			logx.Bool("marker.dsn_set", strings.TrimSpace(n.Marker.DSN) != ""),
		)
	}

	if o.Logging != n.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", n.Logging.Level),
			logx.Bool("logging.file_enabled", n.Logging.File.Enabled),
		)
	}

	return changed, attrs
}

func sameFlags(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
