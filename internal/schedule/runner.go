package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"steamwatch/pkg/logx"
)

// Job is one scheduled run. The context is cancelled when the runner stops.
type Job func(ctx context.Context)

// Runner fires a single job on a schedule. Runs never overlap: a tick that
// arrives while the previous run is still going is skipped.
type Runner struct {
	mu   sync.Mutex
	c    *cron.Cron
	spec Spec
	loc  *time.Location
	id   cron.EntryID
	log  logx.Logger
}

func NewRunner(log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{log: log.With(logx.String("comp", "schedule"))}
}

// Set (re)installs job on raw in timezone tz and starts the runner. Any
// previous schedule is stopped first, waiting for an in-flight run to end.
func (r *Runner) Set(ctx context.Context, raw, tz string, job Job) error {
	spec, err := Parse(raw)
	if err != nil {
		return err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", tz, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		<-r.c.Stop().Done()
	}

	cl := cronLogger{log: r.log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(spec.CronSpec(), func() {
		if ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("add schedule %q: %w", raw, err)
	}
	c.Start()

	r.c, r.spec, r.loc, r.id = c, spec, loc, id
	r.log.Info("schedule installed",
		logx.String("schedule", spec.CronSpec()),
		logx.String("source", spec.Source),
		logx.String("tz", loc.String()),
		logx.Time("next", r.nextLocked()),
	)
	return nil
}

// Next is the time of the upcoming run, zero when nothing is scheduled.
func (r *Runner) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextLocked()
}

func (r *Runner) nextLocked() time.Time {
	if r.c == nil {
		return time.Time{}
	}
	// Entry.Next is only filled in once the cron loop has started; compute it
	// from the schedule instead.
	e := r.c.Entry(r.id)
	if e.Schedule == nil {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(r.loc))
}

// Stop halts the runner and waits for an in-flight run.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	// cron's own info lines (wake, run, schedule) are too chatty above debug.
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
