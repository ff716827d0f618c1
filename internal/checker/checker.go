// Package checker runs one update check: fetch the latest news entry, compare
// it with the stored marker, announce it if it is new, then save the marker.
package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"steamwatch/internal/format"
	"steamwatch/internal/marker"
	"steamwatch/internal/news"
	"steamwatch/internal/sink"
	"steamwatch/pkg/logx"
)

var ErrNotConfigured = errors.New("checker: source, store and sink are required")

// Source returns the most recent news entry for an app.
type Source interface {
	Latest(ctx context.Context, appID string) (news.Entry, error)
}

type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusFiltered  Status = "filtered"
	StatusNotified  Status = "notified"
)

type Result struct {
	Status      Status
	Entry       news.Entry
	Chunks      int
	MarkerSaved bool
}

type Config struct {
	Prefix   string
	MaxChunk int // runes per message; <= 0 means format.DefaultMaxLen
	Filter   Filter
}

type Checker struct {
	source Source
	store  marker.Store
	sink   sink.Sink
	cfg    Config
	log    logx.Logger
}

func New(cfg Config, source Source, store marker.Store, out sink.Sink, log logx.Logger) (*Checker, error) {
	if source == nil || store == nil || out == nil {
		return nil, ErrNotConfigured
	}
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = format.DefaultMaxLen
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Checker{
		source: source,
		store:  store,
		sink:   out,
		cfg:    cfg,
		log:    log.With(logx.String("comp", "checker")),
	}, nil
}

// CheckAndNotify runs one cycle for appID.
//
// Every error is terminal for the cycle. The marker is only written after all
// chunks were posted, so a failed post is retried by the next cycle; a crash
// between the last post and the save produces a duplicate announcement.
func (c *Checker) CheckAndNotify(ctx context.Context, appID string) (Result, error) {
	start := time.Now()
	log := c.log.With(logx.String("app_id", appID))

	entry, err := c.source.Latest(ctx, appID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch latest news: %w", err)
	}
	last, err := c.store.LoadMarker(ctx)
	if err != nil {
		return Result{Entry: entry}, fmt.Errorf("load marker: %w", err)
	}

	log = log.With(logx.String("gid", entry.ID))
	if entry.ID == last {
		log.Debug("no new entry")
		return Result{Status: StatusUnchanged, Entry: entry}, nil
	}

	if c.cfg.Filter.Skips(entry) {
		res := Result{Status: StatusFiltered, Entry: entry}
		log.Info("entry skipped by feed filter", logx.String("feed", entry.FeedName), logx.String("policy", string(c.cfg.Filter.policy())))
		if c.cfg.Filter.policy() == PolicyAdvance {
			if err := c.store.SaveMarker(ctx, entry.ID); err != nil {
				return res, fmt.Errorf("save marker: %w", err)
			}
			res.MarkerSaved = true
		}
		return res, nil
	}

	msg := format.Render(c.cfg.Prefix, entry)
	res := Result{Status: StatusNotified, Entry: entry}
	for i, chunk := range format.SplitToChunks(msg, c.cfg.MaxChunk) {
		if err := c.sink.Post(ctx, chunk); err != nil {
			return res, fmt.Errorf("post chunk %d: %w", i+1, err)
		}
		res.Chunks++
	}

	if err := c.store.SaveMarker(ctx, entry.ID); err != nil {
		return res, fmt.Errorf("save marker: %w", err)
	}
	res.MarkerSaved = true

	log.Info("posted update",
		logx.String("title", entry.Title),
		logx.Time("published", entry.Published()),
		logx.Int("chunks", res.Chunks),
		logx.Duration("took", time.Since(start)),
	)
	return res, nil
}

// ---- feed filter ----

type Policy string

const (
	// PolicyHold leaves the marker alone: the skipped entry is seen again
	// next cycle until a newer one replaces it.
	PolicyHold Policy = "hold"
	// PolicyAdvance records the skipped entry as seen.
	PolicyAdvance Policy = "advance"
)

// ParsePolicy accepts "hold", "advance" or "" (hold).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyHold:
		return PolicyHold, nil
	case PolicyAdvance:
		return PolicyAdvance, nil
	default:
		return "", fmt.Errorf("unknown filter policy %q (use hold or advance)", s)
	}
}

// Filter skips entries syndicated from unwanted feeds. An empty SkipFeeds
// disables it.
type Filter struct {
	SkipFeeds []string
	Policy    Policy
}

func (f Filter) Skips(e news.Entry) bool {
	name := strings.TrimSpace(e.FeedName)
	if name == "" {
		return false
	}
	for _, s := range f.SkipFeeds {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

func (f Filter) policy() Policy {
	if f.Policy == "" {
		return PolicyHold
	}
	return f.Policy
}
