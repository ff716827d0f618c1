package config

import (
	"fmt"
	"net/url"
	"strings"

	"steamwatch/internal/apperr"
	"steamwatch/internal/checker"
	"steamwatch/internal/schedule"
)

// DefaultSkipFeeds is used when filter.skip_feeds is not configured at all.
var DefaultSkipFeeds = []string{"PC Gamer"}

const DefaultTimeout = "30s"

// ApplyDefaults fills in everything left unset. It is idempotent.
func (c *Config) ApplyDefaults() {
	c.AppID = strings.TrimSpace(c.AppID)
	if c.Filter.SkipFeeds == nil {
		c.Filter.SkipFeeds = append([]string(nil), DefaultSkipFeeds...)
	}
	if strings.TrimSpace(c.Filter.Policy) == "" {
		c.Filter.Policy = string(checker.PolicyHold)
	}
	if strings.TrimSpace(c.Sink.Kind) == "" {
		c.Sink.Kind = "discord"
	}
	if strings.TrimSpace(c.Marker.Driver) == "" {
		// A bare MARKER_FILE selects the local file store.
		if strings.TrimSpace(c.Marker.Path) != "" && strings.TrimSpace(c.Marker.Gist.ID) == "" {
			c.Marker.Driver = "file"
		} else {
			c.Marker.Driver = "gist"
		}
	}
	c.Sink.Kind = strings.ToLower(strings.TrimSpace(c.Sink.Kind))
	c.Marker.Driver = strings.ToLower(strings.TrimSpace(c.Marker.Driver))
	if strings.TrimSpace(c.Timeout) == "" {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports every missing or invalid setting at once as an
// *apperr.ConfigError. Call ApplyDefaults first.
func (c *Config) Validate() error {
	ce := &apperr.ConfigError{}
	missing := func(key string) { ce.Missing = append(ce.Missing, label(key)) }
	invalid := func(key, format string, args ...any) {
		ce.Invalid = append(ce.Invalid, label(key)+": "+fmt.Sprintf(format, args...))
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	if blank(c.AppID) {
		missing("app_id")
	} else if !isDigits(c.AppID) {
		invalid("app_id", "must be a numeric Steam app id, got %q", c.AppID)
	}

	switch c.Sink.Kind {
	case "discord":
		if blank(c.Sink.WebhookURL) {
			missing("sink.webhook_url")
		} else if !isHTTPURL(c.Sink.WebhookURL) {
			invalid("sink.webhook_url", "must be an http(s) URL")
		}
		if c.Sink.RatePerSec < 0 {
			invalid("sink.rate_per_sec", "must be >= 0")
		}
	case "telegram":
		if blank(c.Sink.Telegram.Token) {
			missing("sink.telegram.token")
		}
		if c.Sink.Telegram.ChatID == 0 {
			missing("sink.telegram.chat_id")
		}
	default:
		invalid("sink.kind", "unknown sink %q (use discord or telegram)", c.Sink.Kind)
	}

	switch c.Marker.Driver {
	case "gist":
		if blank(c.Marker.Gist.Token) {
			missing("marker.gist.token")
		}
		if blank(c.Marker.Gist.ID) {
			missing("marker.gist.id")
		}
	case "file", "sqlite", "sqlite3":
		if blank(c.Marker.Path) {
			missing("marker.path")
		}
		if _, err := ParseDurationField("marker.busy_timeout", c.Marker.BusyTimeout); err != nil {
			ce.Invalid = append(ce.Invalid, err.Error())
		}
	case "postgres", "postgresql":
		if blank(c.Marker.DSN) {
			missing("marker.dsn")
		}
	case "redis":
		if blank(c.Marker.Redis.Addr) {
			missing("marker.redis.addr")
		}
	default:
		invalid("marker.driver", "unknown driver %q (use gist, file, sqlite, postgres or redis)", c.Marker.Driver)
	}

	if _, err := checker.ParsePolicy(c.Filter.Policy); err != nil {
		invalid("filter.policy", "%v", err)
	}
	if c.Message.MaxChunk < 0 {
		invalid("message.max_chunk", "must be >= 0")
	}
	if c.Feed.Count < 0 {
		invalid("feed.count", "must be >= 0")
	}
	if !blank(c.Feed.BaseURL) && !isHTTPURL(c.Feed.BaseURL) {
		invalid("feed.base_url", "must be an http(s) URL")
	}
	if _, err := ParseDurationField("timeout", c.Timeout); err != nil {
		ce.Invalid = append(ce.Invalid, err.Error())
	}
	if !blank(c.Schedule) {
		if _, err := schedule.Parse(c.Schedule); err != nil {
			invalid("schedule", "%v", err)
		}
	}
	if _, err := schedule.LoadLocation(c.Timezone); err != nil {
		invalid("timezone", "%v", err)
	}

	if ce.Empty() {
		return nil
	}
	return ce
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
