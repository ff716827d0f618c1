package marker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown marker driver")
	ErrClosed        = errors.New("marker store closed")
)

const (
	DefaultGistFile = "last-patch-gid.txt"
	DefaultKey      = "steamwatch:last-patch-gid"
)

// Store loads and saves the marker. An empty marker means nothing has been
// announced yet.
type Store interface {
	LoadMarker(ctx context.Context) (string, error)
	SaveMarker(ctx context.Context, value string) error
	Close() error
}

// Config configures the marker store.
//
// Driver values: "gist" (default), "file", "sqlite", "postgres", "redis".
type Config struct {
	Driver string

	// Key names the marker inside shared backends (sql row name, redis key).
	// Defaults to DefaultKey.
	Key string

	// Path is the marker file ("file") or database file ("sqlite").
	Path string
	// DSN is the PostgreSQL connection string ("postgres").
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default

	Gist  GistConfig
	Redis RedisConfig
}

type GistConfig struct {
	ID      string
	Token   string
	File    string // defaults to DefaultGistFile
	BaseURL string // defaults to https://api.github.com
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}
