package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"steamwatch/internal/apperr"
	"steamwatch/internal/app"
	"steamwatch/internal/config"
	"steamwatch/pkg/logx"
)

func main() {
	var (
		cfgPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to a YAML or JSON config file (optional; environment variables override it)")
	flag.BoolVar(&once, "once", false, "run a single check even if a schedule is configured")
	flag.Parse()

	os.Exit(run(cfgPath, once))
}

func run(cfgPath string, once bool) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boot := logx.NewConsole("INFO").With(logx.String("comp", "main"))

	a, err := app.New(config.NewManager(cfgPath, os.LookupEnv))
	if err != nil {
		return fail(boot, err)
	}
	defer func() { _ = a.Close() }()

	if once || strings.TrimSpace(a.Config().Schedule) == "" {
		res, err := a.RunOnce(ctx)
		if err != nil {
			return fail(a.Logger(), err)
		}
		a.Logger().Info("check finished", logx.String("status", string(res.Status)), logx.String("gid", res.Entry.ID))
		return 0
	}

	if err := a.Daemon(ctx); err != nil {
		return fail(a.Logger(), err)
	}
	return 0
}

// fail logs err and picks the exit code: 2 for configuration problems, 1 for
// everything else.
func fail(log logx.Logger, err error) int {
	if apperr.IsConfig(err) {
		fmt.Fprintln(logx.Stderr(), "configuration error:", err)
		return 2
	}
	log.Error("fatal", logx.Err(err))
	return 1
}
