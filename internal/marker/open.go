package marker

import (
	"fmt"
	"strings"

	"steamwatch/internal/httpx"
	"steamwatch/pkg/logx"
)

// Open initializes the configured store. hc is only used by the gist driver
// and may be nil otherwise.
func Open(cfg Config, hc *httpx.Client, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "gist"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Key) == "" {
		cfg.Key = DefaultKey
	}
	log = log.With(logx.String("comp", "marker"), logx.String("driver", driver))

	switch driver {
	case "gist":
		if hc == nil {
			hc = httpx.New(nil, 0, "")
		}
		return openGist(cfg.Gist, hc, log)
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	case "redis":
		return openRedis(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
