package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"steamwatch/internal/apperr"
	"steamwatch/internal/checker"
	"steamwatch/internal/config"
)

// fakeWorld serves the news feed, the gist API and the webhook.
type fakeWorld struct {
	mu     sync.Mutex
	gid    string
	feed   string
	marker string
	posts  []string
	srv    *httptest.Server
}

func newFakeWorld(t *testing.T, gid, feed, marker string) *fakeWorld {
	t.Helper()
	w := &fakeWorld{gid: gid, feed: feed, marker: marker}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ISteamNews/GetNewsForApp/v2/", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if r.URL.Query().Get("appid") != "440" {
			http.Error(rw, "wrong app", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(rw, `{"appnews":{"appid":440,"newsitems":[{"gid":%q,"title":"Team Fortress 2 Update Released","url":"https://store.steampowered.com/news/1","author":"Valve","contents":"[list][*]Fixed a crash[*]Updated maps[/list]","feedlabel":"Community Announcements","date":1700000000,"feedname":%q}],"count":1}}`, w.gid, w.feed)
	})
	mux.HandleFunc("GET /gists/abc", func(rw http.ResponseWriter, r *http.Request) {
		w.mu.Lock()
		defer w.mu.Unlock()
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"files": map[string]any{"last-patch-gid.txt": map[string]string{"content": w.marker}},
		})
	})
	mux.HandleFunc("PATCH /gists/abc", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Files map[string]struct {
				Content string `json:"content"`
			} `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		w.mu.Lock()
		w.marker = body.Files["last-patch-gid.txt"].Content
		w.mu.Unlock()
		_, _ = rw.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /webhook", func(rw http.ResponseWriter, r *http.Request) {
		var body struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.mu.Lock()
		w.posts = append(w.posts, body.Content)
		w.mu.Unlock()
		rw.WriteHeader(http.StatusNoContent)
	})
	w.srv = httptest.NewServer(mux)
	t.Cleanup(w.srv.Close)
	return w
}

func (w *fakeWorld) state() (string, []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.marker, append([]string(nil), w.posts...)
}

func (w *fakeWorld) config(extra map[string]any) map[string]any {
	cfg := map[string]any{
		"app_id": "440",
		"feed":   map[string]any{"base_url": w.srv.URL},
		"sink":   map[string]any{"webhook_url": w.srv.URL + "/webhook", "rate_per_sec": 1000},
		"marker": map[string]any{
			"gist": map[string]any{"id": "abc", "token": "t", "base_url": w.srv.URL},
		},
		"logging": map[string]any{"level": "error"},
	}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

func newTestApp(t *testing.T, cfg map[string]any) *App {
	t.Helper()
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "steamwatch.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(config.NewManager(p, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunOnceAnnouncesNewEntry(t *testing.T) {
	w := newFakeWorld(t, "5001", "steam_community_announcements", "5000")
	a := newTestApp(t, w.config(map[string]any{"message": map[string]any{"prefix": "<@&42>"}}))

	res, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Status != checker.StatusNotified {
		t.Fatalf("status = %s", res.Status)
	}
	marker, posts := w.state()
	if marker != "5001" {
		t.Fatalf("marker = %q", marker)
	}
	if len(posts) != 1 {
		t.Fatalf("posts = %d", len(posts))
	}
	want := "<@&42>\n# Team Fortress 2 Update Released\n" +
		"**Published by *Valve* on <t:1700000000:f> (<t:1700000000:R>)**\n" +
		"**https://store.steampowered.com/news/1**\n\n" +
		"- Fixed a crash\n- Updated maps"
	if posts[0] != want {
		t.Fatalf("post =\n%s\nwant\n%s", posts[0], want)
	}

	res, err = a.RunOnce(context.Background())
	if err != nil || res.Status != checker.StatusUnchanged {
		t.Fatalf("second run: res=%+v err=%v", res, err)
	}
	if _, posts := w.state(); len(posts) != 1 {
		t.Fatalf("second run must not post, posts=%d", len(posts))
	}
}

func TestRunOnceSkipsSyndicatedFeed(t *testing.T) {
	w := newFakeWorld(t, "999", "PC Gamer", "998")
	a := newTestApp(t, w.config(nil))

	res, err := a.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	marker, posts := w.state()
	if res.Status != checker.StatusFiltered || marker != "998" || len(posts) != 0 {
		t.Fatalf("status=%s marker=%q posts=%d", res.Status, marker, len(posts))
	}
}

func TestRunOnceWithFileMarker(t *testing.T) {
	w := newFakeWorld(t, "77", "", "")
	path := filepath.Join(t.TempDir(), "last.txt")
	a := newTestApp(t, w.config(map[string]any{
		"marker": map[string]any{"path": path},
	}))
	if a.Config().Marker.Driver != "file" {
		t.Fatalf("driver = %q", a.Config().Marker.Driver)
	}

	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(b)) != "77" {
		t.Fatalf("marker file = %q, %v", b, err)
	}
}

func TestRunOnceTransportFailureKeepsMarker(t *testing.T) {
	w := newFakeWorld(t, "2", "", "1")
	cfg := w.config(nil)
	cfg["sink"] = map[string]any{"webhook_url": w.srv.URL + "/missing"}
	a := newTestApp(t, cfg)

	_, err := a.RunOnce(context.Background())
	if !apperr.IsTransport(err) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if marker, _ := w.state(); marker != "1" {
		t.Fatalf("marker moved to %q", marker)
	}
}

func TestErrKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("post: %w", &apperr.TransportError{Op: "post", Status: 500}), "transport"},
		{&apperr.ParseError{What: "news feed", Err: errors.New("bad json")}, "parse"},
		{&apperr.ConfigError{Missing: []string{"app_id"}}, "config"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := errKind(tt.err); got != tt.want {
			t.Fatalf("errKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewReportsConfigErrors(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(p, []byte(`{"app_id":"440"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(config.NewManager(p, func(string) (string, bool) { return "", false }))
	if !apperr.IsConfig(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestDaemonRunsAndNotifiesSystemd(t *testing.T) {
	w := newFakeWorld(t, "10", "", "9")
	a := newTestApp(t, w.config(map[string]any{"schedule": "1h"}))

	var (
		mu     sync.Mutex
		states []string
	)
	a.notify = func(state string) (bool, error) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
		return true, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Daemon(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if marker, _ := w.state(); marker == "10" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first cycle did not run")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Daemon: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != daemon.SdNotifyReady || states[1] != daemon.SdNotifyStopping {
		t.Fatalf("states = %q", states)
	}
}

func TestDaemonNeedsSchedule(t *testing.T) {
	w := newFakeWorld(t, "1", "", "")
	a := newTestApp(t, w.config(nil))
	if err := a.Daemon(context.Background()); !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule, got %v", err)
	}
}

func TestMapCheckerConfigPicksSinkLimit(t *testing.T) {
	cfg := &config.Config{Sink: config.SinkConfig{Kind: "telegram"}}
	cc, err := mapCheckerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if cc.MaxChunk != 4096 || cc.Filter.Policy != checker.PolicyHold {
		t.Fatalf("checker config = %+v", cc)
	}
	cfg.Message.MaxChunk = 1500
	if cc, _ = mapCheckerConfig(cfg); cc.MaxChunk != 1500 {
		t.Fatalf("explicit max_chunk ignored: %d", cc.MaxChunk)
	}
}
