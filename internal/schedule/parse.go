// Package schedule parses schedule strings and runs the update cycle on them
// in daemon mode.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

// Spec is a parsed schedule string.
//
// Supported forms:
//   - cron: "*/10 * * * *", "0 30 * * * *" (optional seconds), "@hourly"
//   - interval: "15m", "1h30m"
//   - interval as HH:MM: "00:30" (every 30 minutes), "02:00"
//
// "cron:" forces cron parsing, "every:" or "interval:" forces an interval.
type Spec struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

// CronSpec is the expression handed to the cron parser. Intervals become
// "@every" descriptors.
func (s Spec) CronSpec() string {
	if s.Kind == KindInterval {
		return "@every " + s.Every.String()
	}
	return s.Cron
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Parse classifies raw and checks that cron expressions are well formed.
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSpec(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return intervalSpec(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return intervalSpec(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return cronSpec(s)
	}
	if reHHMM.MatchString(s) || looksLikeDuration(s) {
		return intervalSpec(s)
	}
	return Spec{}, fmt.Errorf("invalid schedule %q (use cron like '*/10 * * * *', HH:MM like '00:30', or duration like '15m')", raw)
}

func cronSpec(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := parser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: KindCron, Cron: expr, Source: "cron"}, nil
}

func intervalSpec(v string) (Spec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMM(v)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid interval %q (use HH:MM or a duration like '15m')", v)
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Kind: KindInterval, Every: d, Source: "duration"}, nil
}

func looksLikeDuration(s string) bool {
	_, err := time.ParseDuration(s)
	return err == nil
}

// parseHHMM reads hours up to 999 and minutes 0..59 as a duration.
func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// LoadLocation resolves a timezone name; empty means time.Local.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
