package config

// Config is the whole steamwatch configuration.
//
// It is read from an optional JSON or YAML file and then overlaid with the
// environment (see env.go). Durations are Go duration strings ("30s", "5m").
type Config struct {
	AppID string `json:"app_id"`

	// Schedule turns on daemon mode: a cron expression ("*/10 * * * *",
	// "@hourly"), an interval ("15m") or HH:MM ("00:30"). Empty means run one
	// cycle and exit, leaving scheduling to an external scheduler.
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// Timeout bounds every outbound call. Default "30s".
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Feed    FeedConfig    `json:"feed"`
	Message MessageConfig `json:"message"`
	Filter  FilterConfig  `json:"filter"`
	Sink    SinkConfig    `json:"sink"`
	Marker  MarkerConfig  `json:"marker"`
	Logging LoggingConfig `json:"logging"`
}

type FeedConfig struct {
	BaseURL string `json:"base_url,omitempty"` // default https://api.steampowered.com
	Count   int    `json:"count,omitempty"`    // items requested; only the first is used
}

type MessageConfig struct {
	Prefix string `json:"prefix,omitempty"`
	// MaxChunk is the per-message limit in characters. 0 picks the sink's limit.
	MaxChunk int `json:"max_chunk,omitempty"`
}

// FilterConfig skips entries from syndicated feeds.
//
// SkipFeeds left out entirely defaults to ["PC Gamer"]; an explicit empty list
// turns the filter off. Policy is "hold" (default, marker untouched) or
// "advance" (marker moves to the skipped entry).
type FilterConfig struct {
	SkipFeeds []string `json:"skip_feeds,omitempty"`
	Policy    string   `json:"policy,omitempty"`
}

type SinkConfig struct {
	Kind string `json:"kind,omitempty"` // "discord" (default) | "telegram"

	WebhookURL string `json:"webhook_url,omitempty"`
	// Flags is passed through to the webhook payload. Default 4 (suppress
	// embeds); -1 leaves the field out.
	Flags      *int    `json:"flags,omitempty"`
	Username   string  `json:"username,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`

	Telegram TelegramSinkConfig `json:"telegram"`
}

type TelegramSinkConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
}

// MarkerConfig selects where the last announced entry id is kept.
//
// Example:
//
//	"marker": { "driver": "file", "path": "./state/last-patch-gid.txt" }
type MarkerConfig struct {
	Driver      string      `json:"driver,omitempty"` // gist | file | sqlite | postgres | redis
	Key         string      `json:"key,omitempty"`
	Path        string      `json:"path,omitempty"`
	DSN         string      `json:"dsn,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"` // sqlite
	Gist        GistConfig  `json:"gist"`
	Redis       RedisConfig `json:"redis"`
}

type GistConfig struct {
	ID      string `json:"id,omitempty"`
	Token   string `json:"token,omitempty"`
	File    string `json:"file,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}
