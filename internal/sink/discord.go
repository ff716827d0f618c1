package sink

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"steamwatch/internal/httpx"
	"steamwatch/pkg/logx"
)

// DefaultDiscordFlags is SUPPRESS_EMBEDS: no link previews under the post.
const DefaultDiscordFlags = 4

// NoFlags omits the flags field from the payload.
const NoFlags = -1

type DiscordConfig struct {
	WebhookURL string
	// Flags is passed through as-is. NoFlags omits it.
	Flags int
	// Username overrides the webhook's display name when set.
	Username string
	// RatePerSec paces consecutive posts. <= 0 means 2.
	RatePerSec float64
}

// Discord posts to a Discord-compatible webhook: POST {"content": ..., "flags": ...}.
type Discord struct {
	http     *httpx.Client
	url      string
	flags    *int
	username string
	limiter  *rate.Limiter
	log      logx.Logger
}

type webhookPayload struct {
	Content  string `json:"content"`
	Flags    *int   `json:"flags,omitempty"`
	Username string `json:"username,omitempty"`
}

func NewDiscord(cfg DiscordConfig, hc *httpx.Client, log logx.Logger) (*Discord, error) {
	u := strings.TrimSpace(cfg.WebhookURL)
	if u == "" {
		return nil, errors.New("sink.webhook_url is required for discord sink")
	}
	if hc == nil {
		hc = httpx.New(nil, 0, "")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	d := &Discord{
		http:     hc,
		url:      u,
		username: strings.TrimSpace(cfg.Username),
		limiter:  rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/rps)), 1),
		log:      log.With(logx.String("comp", "sink"), logx.String("kind", "discord")),
	}
	if cfg.Flags != NoFlags {
		f := cfg.Flags
		d.flags = &f
	}
	return d, nil
}

func (d *Discord) Post(ctx context.Context, content string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	p := webhookPayload{Content: content, Flags: d.flags, Username: d.username}
	if err := d.http.SendJSON(ctx, "post webhook", http.MethodPost, d.url, nil, p, nil); err != nil {
		return err
	}
	d.log.Debug("chunk posted", logx.Int("len", len(content)))
	return nil
}
