package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"steamwatch/internal/checker"
	"steamwatch/internal/config"
	"steamwatch/internal/format"
	"steamwatch/internal/httpx"
	"steamwatch/internal/marker"
	"steamwatch/internal/sink"
	"steamwatch/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("timeout", cfg.Timeout, httpx.DefaultTimeout)
}

func mapMarkerConfig(cfg *config.Config) (marker.Config, error) {
	mc := cfg.Marker
	busy, err := config.ParseDurationField("marker.busy_timeout", mc.BusyTimeout)
	if err != nil {
		return marker.Config{}, err
	}
	return marker.Config{
		Driver:      mc.Driver,
		Key:         mc.Key,
		Path:        mc.Path,
		DSN:         mc.DSN,
		BusyTimeout: busy,
		Gist: marker.GistConfig{
			ID:      mc.Gist.ID,
			Token:   mc.Gist.Token,
			File:    mc.Gist.File,
			BaseURL: mc.Gist.BaseURL,
		},
		Redis: marker.RedisConfig{
			Addr:     mc.Redis.Addr,
			Password: mc.Redis.Password,
			DB:       mc.Redis.DB,
		},
	}, nil
}

func mapCheckerConfig(cfg *config.Config) (checker.Config, error) {
	policy, err := checker.ParsePolicy(cfg.Filter.Policy)
	if err != nil {
		return checker.Config{}, err
	}
	maxChunk := cfg.Message.MaxChunk
	if maxChunk <= 0 {
		maxChunk = format.DefaultMaxLen
		if cfg.Sink.Kind == "telegram" {
			maxChunk = sink.TelegramTextLimit
		}
	}
	return checker.Config{
		Prefix:   strings.TrimSpace(cfg.Message.Prefix),
		MaxChunk: maxChunk,
		Filter: checker.Filter{
			SkipFeeds: cfg.Filter.SkipFeeds,
			Policy:    policy,
		},
	}, nil
}

// buildSink picks the sink for cfg.Sink.Kind. hx serves the webhook sink;
// the Telegram bot needs a plain client carrying the timeout itself.
func buildSink(cfg *config.Config, hx *httpx.Client, log logx.Logger) (sink.Sink, error) {
	sc := cfg.Sink
	switch sc.Kind {
	case "", "discord":
		flags := sink.DefaultDiscordFlags
		if sc.Flags != nil {
			flags = *sc.Flags
		}
		return sink.NewDiscord(sink.DiscordConfig{
			WebhookURL: sc.WebhookURL,
			Flags:      flags,
			Username:   sc.Username,
			RatePerSec: sc.RatePerSec,
		}, hx, log)
	case "telegram":
		return sink.NewTelegram(sink.TelegramConfig{
			Token:    sc.Telegram.Token,
			ChatID:   sc.Telegram.ChatID,
			ThreadID: sc.Telegram.ThreadID,
			APIURL:   sc.Telegram.APIURL,
		}, &http.Client{Timeout: hx.Timeout()}, log)
	default:
		return nil, fmt.Errorf("%w: %s", sink.ErrUnknownKind, sc.Kind)
	}
}
