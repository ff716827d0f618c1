package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"steamwatch/pkg/logx"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     Kind
		source   string
		cron     string
		duration time.Duration
	}{
		{name: "cron", raw: "*/10 * * * *", kind: KindCron, source: "cron", cron: "*/10 * * * *"},
		{name: "cron with seconds", raw: "0 30 * * * *", kind: KindCron, source: "cron", cron: "0 30 * * * *"},
		{name: "descriptor", raw: "@hourly", kind: KindCron, source: "cron", cron: "@hourly"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: KindCron, source: "cron", cron: "0 0 * * *"},
		{name: "duration", raw: "15m", kind: KindInterval, source: "duration", duration: 15 * time.Minute, cron: "@every 15m0s"},
		{name: "prefixed interval", raw: "interval:45s", kind: KindInterval, source: "duration", duration: 45 * time.Second, cron: "@every 45s"},
		{name: "every prefix", raw: "every: 2h", kind: KindInterval, source: "duration", duration: 2 * time.Hour, cron: "@every 2h0m0s"},
		{name: "hhmm", raw: "01:30", kind: KindInterval, source: "hhmm", duration: 90 * time.Minute, cron: "@every 1h30m0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == KindInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
			if got.CronSpec() != tt.cron {
				t.Fatalf("CronSpec = %q, want %q", got.CronSpec(), tt.cron)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "0", "00:00", "01:75", "* * *", "cron:", "interval:-5m", "@fortnightly"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
	}
}

func TestLoadLocation(t *testing.T) {
	t.Parallel()
	if loc, err := LoadLocation(""); err != nil || loc != time.Local {
		t.Fatalf("empty tz = %v, %v", loc, err)
	}
	if _, err := LoadLocation("UTC"); err != nil {
		t.Fatalf("UTC: %v", err)
	}
	if _, err := LoadLocation("Mars/Olympus_Mons"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestRunnerFiresJob(t *testing.T) {
	r := NewRunner(logx.Nop())
	t.Cleanup(r.Stop)

	var runs atomic.Int32
	fired := make(chan struct{}, 1)
	err := r.Set(context.Background(), "1s", "UTC", func(ctx context.Context) {
		runs.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if r.Next().IsZero() {
		t.Fatal("expected a next run time")
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}

	r.Stop()
	if !r.Next().IsZero() {
		t.Fatal("stopped runner should have no next run")
	}
	n := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	if runs.Load() != n {
		t.Fatal("job ran after Stop")
	}
}

func TestRunnerRejectsBadInput(t *testing.T) {
	r := NewRunner(logx.Nop())
	t.Cleanup(r.Stop)
	if err := r.Set(context.Background(), "nope", "", func(context.Context) {}); err == nil {
		t.Fatal("expected schedule error")
	}
	if err := r.Set(context.Background(), "1h", "Not/AZone", func(context.Context) {}); err == nil {
		t.Fatal("expected timezone error")
	}
}
