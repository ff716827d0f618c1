package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"steamwatch/internal/apperr"
	"steamwatch/pkg/logx"
)

func envOf(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"STEAM_APPID": "440",
		"WEBHOOK_URL": "https://discord.example/api/webhooks/1/tok",
		"GIST_TOKEN":  "ghp_x",
		"GIST_ID":     "abc123",
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestEnvOnlyDefaults(t *testing.T) {
	cfg, err := NewManager("", envOf(baseEnv())).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != "440" || cfg.Sink.Kind != "discord" || cfg.Marker.Driver != "gist" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !slices.Equal(cfg.Filter.SkipFeeds, []string{"PC Gamer"}) || cfg.Filter.Policy != "hold" {
		t.Fatalf("filter defaults = %+v", cfg.Filter)
	}
	if cfg.Timeout != DefaultTimeout || cfg.Logging.Level != "info" {
		t.Fatalf("timeout=%q level=%q", cfg.Timeout, cfg.Logging.Level)
	}
}

func TestMissingSettingsAreAllNamed(t *testing.T) {
	_, err := NewManager("", envOf(map[string]string{})).Load()
	var ce *apperr.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	for _, want := range []string{"STEAM_APPID", "WEBHOOK_URL", "GIST_TOKEN", "GIST_ID"} {
		if !strings.Contains(ce.Error(), want) {
			t.Fatalf("error %q does not name %s", ce.Error(), want)
		}
	}
	if len(ce.Missing) != 4 {
		t.Fatalf("missing = %v", ce.Missing)
	}
}

func TestMarkerFileNeedsNoGistCredentials(t *testing.T) {
	env := map[string]string{
		"STEAM_APPID": "440",
		"WEBHOOK_URL": "https://discord.example/api/webhooks/1/tok",
		"MARKER_FILE": "/tmp/last.txt",
	}
	cfg, err := NewManager("", envOf(env)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Marker.Driver != "file" || cfg.Marker.Path != "/tmp/last.txt" {
		t.Fatalf("marker = %+v", cfg.Marker)
	}
}

func TestDriverRequirements(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"sqlite", "MARKER_FILE"},
		{"postgres", "MARKER_DSN"},
		{"redis", "REDIS_ADDR"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			env := baseEnv()
			env["MARKER_DRIVER"] = tt.driver
			_, err := NewManager("", envOf(env)).Load()
			if !apperr.IsConfig(err) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected ConfigError naming %s, got %v", tt.want, err)
			}
		})
	}

	env := baseEnv()
	env["MARKER_DRIVER"] = "etcd"
	if _, err := NewManager("", envOf(env)).Load(); !apperr.IsConfig(err) {
		t.Fatalf("expected ConfigError for unknown driver, got %v", err)
	}
}

func TestTelegramSink(t *testing.T) {
	env := baseEnv()
	delete(env, "WEBHOOK_URL")
	env["SINK_KIND"] = "Telegram"
	env["TELEGRAM_TOKEN"] = "123:abc"
	env["TELEGRAM_CHAT_ID"] = "-100200"
	cfg, err := NewManager("", envOf(env)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sink.Kind != "telegram" || cfg.Sink.Telegram.ChatID != -100200 {
		t.Fatalf("sink = %+v", cfg.Sink)
	}

	env["TELEGRAM_CHAT_ID"] = "general"
	_, err = NewManager("", envOf(env)).Load()
	var ce *apperr.ConfigError
	if !errors.As(err, &ce) || len(ce.Invalid) != 1 {
		t.Fatalf("expected invalid chat id, got %v", err)
	}
}

func TestSkipFeedsEnv(t *testing.T) {
	env := baseEnv()
	env["SKIP_FEEDS"] = " PC Gamer, Rock Paper Shotgun ,,"
	env["FILTER_POLICY"] = "advance"
	cfg, err := NewManager("", envOf(env)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !slices.Equal(cfg.Filter.SkipFeeds, []string{"PC Gamer", "Rock Paper Shotgun"}) || cfg.Filter.Policy != "advance" {
		t.Fatalf("filter = %+v", cfg.Filter)
	}

	env["SKIP_FEEDS"] = ""
	cfg, err = NewManager("", envOf(env)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Filter.SkipFeeds == nil || len(cfg.Filter.SkipFeeds) != 0 {
		t.Fatalf("empty SKIP_FEEDS should disable the filter: %#v", cfg.Filter.SkipFeeds)
	}
}

func TestInvalidValues(t *testing.T) {
	env := baseEnv()
	env["STEAM_APPID"] = "tf2"
	env["FILTER_POLICY"] = "drop"
	env["SCHEDULE"] = "sometimes"
	env["WEBHOOK_URL"] = "discord"
	_, err := NewManager("", envOf(env)).Load()
	var ce *apperr.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(ce.Invalid) != 4 || len(ce.Missing) != 0 {
		t.Fatalf("invalid=%v missing=%v", ce.Invalid, ce.Missing)
	}
}

func TestYAMLFileWithEnvOverride(t *testing.T) {
	p := writeFile(t, "steamwatch.yaml", `
app_id: "570"
schedule: 15m
timeout: 10s
message:
  prefix: "<@&123>"
  max_chunk: 1900
filter:
  skip_feeds: []
sink:
  webhook_url: https://discord.example/api/webhooks/2/file
  flags: -1
marker:
  driver: sqlite
  path: ./state.db
logging:
  console: true
`)
	cfg, err := NewManager(p, envOf(map[string]string{"STEAM_APPID": "440"})).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != "440" {
		t.Fatalf("env should win, app_id = %q", cfg.AppID)
	}
	if cfg.Message.Prefix != "<@&123>" || cfg.Message.MaxChunk != 1900 || cfg.Schedule != "15m" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Sink.Flags == nil || *cfg.Sink.Flags != -1 {
		t.Fatalf("flags = %v", cfg.Sink.Flags)
	}
	if len(cfg.Filter.SkipFeeds) != 0 {
		t.Fatalf("explicit empty skip list must be kept: %v", cfg.Filter.SkipFeeds)
	}
	if cfg.Marker.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Marker.Driver)
	}
}

func TestStrictDecoding(t *testing.T) {
	env := envOf(baseEnv())

	p := writeFile(t, "c.json", `{"app_id":"440","webhook":"x"}`)
	if _, err := NewManager(p, env).Load(); !apperr.IsConfig(err) {
		t.Fatalf("unknown field should be rejected, got %v", err)
	}

	p = writeFile(t, "c.json", `{"app_id":"440"}{"app_id":"1"}`)
	if _, err := NewManager(p, env).Load(); !apperr.IsConfig(err) {
		t.Fatalf("trailing data should be rejected, got %v", err)
	}

	p = writeFile(t, "c.yml", "")
	if _, err := NewManager(p, env).Load(); err != nil {
		t.Fatalf("empty file should be accepted: %v", err)
	}

	if _, err := NewManager(filepath.Join(t.TempDir(), "nope.json"), env).Load(); err == nil || apperr.IsConfig(err) {
		t.Fatalf("missing file should be a read error, got %v", err)
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("timeout", ""); err != nil || d != 0 {
		t.Fatalf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("timeout", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	if _, err := ParseDurationField("timeout", "-1s"); err == nil {
		t.Fatal("negative duration should fail")
	}
	if _, err := ParseDurationField("timeout", "soon"); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("error should name the key: %v", err)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	p := writeFile(t, "c.json", `{"message":{"prefix":"a"}}`)
	m := NewManager(p, envOf(baseEnv()))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if published, err := m.Reload(); err != nil || published {
		t.Fatalf("unchanged reload: published=%v err=%v", published, err)
	}

	if err := os.WriteFile(p, []byte(`{"message":{"prefix":"b"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if published, err := m.Reload(); err != nil || !published {
		t.Fatalf("changed reload: published=%v err=%v", published, err)
	}
	got := <-ch
	if got.Message.Prefix != "b" || m.Get().Message.Prefix != "b" {
		t.Fatalf("published prefix = %q", got.Message.Prefix)
	}

	if err := os.WriteFile(p, []byte(`{"message":{"max_chunk":-3}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(); err == nil {
		t.Fatal("invalid edit should be rejected")
	}
	if m.Get().Message.Prefix != "b" {
		t.Fatal("rejected edit must keep the previous config")
	}
}

func TestWatchPicksUpEdits(t *testing.T) {
	p := writeFile(t, "c.json", `{"message":{"prefix":"a"}}`)
	m := NewManager(p, envOf(baseEnv()))
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()
	for {
		// rewrite until the watcher (which may still be starting) sees it
		_ = os.WriteFile(p, []byte(`{"message":{"prefix":"b"}}`), 0o644)
		select {
		case cfg := <-ch:
			if cfg.Message.Prefix != "b" {
				t.Fatalf("prefix = %q", cfg.Message.Prefix)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no config published")
		}
	}
}

func TestWatchWithoutFileReturns(t *testing.T) {
	if err := NewManager("", nil).Watch(context.Background()); err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	oldCfg := &Config{Sink: SinkConfig{WebhookURL: "https://discord.example/api/webhooks/1/secret"}}
	newCfg := &Config{Sink: SinkConfig{WebhookURL: "https://discord.example/api/webhooks/1/other"}, Schedule: "1h"}
	changed, attrs := SummarizeChange(oldCfg, newCfg)
	if !slices.Equal(changed, []string{"schedule", "sink"}) {
		t.Fatalf("changed = %v", changed)
	}

	var buf strings.Builder
	logx.NewWriter(&buf, "debug").Info("config reloaded", attrs...)
	if strings.Contains(buf.String(), "secret") || strings.Contains(buf.String(), "other") {
		t.Fatalf("webhook leaked into log: %s", buf.String())
	}
}
