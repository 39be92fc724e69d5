package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule yields the next run time of a job.
type Schedule interface {
	Next(after time.Time) time.Time
}

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	Every time.Duration
}

// Next returns after plus the interval.
func (s IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.Every)
}

// ParseSchedule accepts "@every <duration>", "@hourly", "@daily" or a
// 5-field cron expression.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.HasPrefix(spec, "@every "):
		d, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every ")))
		if err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
		if d < time.Second {
			return nil, fmt.Errorf("invalid interval: %s is shorter than a second", d)
		}
		return IntervalSchedule{Every: d}, nil
	case spec == "@hourly":
		return ParseCron("0 * * * *")
	case spec == "@daily":
		return ParseCron("0 0 * * *")
	}
	return ParseCron(spec)
}

// CronSchedule represents a parsed cron schedule (minute, hour, day, month, weekday)
type CronSchedule struct {
	Minute  map[int]bool // 0-59
	Hour    map[int]bool // 0-23
	Day     map[int]bool // 1-31
	Month   map[int]bool // 1-12
	Weekday map[int]bool // 0-6 (Sunday=0)
}

// ParseCron parses a 5-field cron expression into a CronSchedule
func ParseCron(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}
	bounds := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day", 1, 31},
		{"month", 1, 12},
		{"weekday", 0, 6},
	}
	parsed := make([]map[int]bool, len(fields))
	for i, b := range bounds {
		set, err := parseCronField(fields[i], b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		parsed[i] = set
	}
	return &CronSchedule{
		Minute:  parsed[0],
		Hour:    parsed[1],
		Day:     parsed[2],
		Month:   parsed[3],
		Weekday: parsed[4],
	}, nil
}

// parseCronField parses a single cron field: *, values, lists, ranges and /steps.
func parseCronField(field string, min, max int) (map[int]bool, error) {
	result := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid step: %s", part)
			}
			step = n
			part = base
		}

		start, end := min, max
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			lo, hi, _ := strings.Cut(part, "-")
			var err1, err2 error
			start, err1 = strconv.Atoi(lo)
			end, err2 = strconv.Atoi(hi)
			if err1 != nil || err2 != nil || start > end || start < min || end > max {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
		default:
			val, err := strconv.Atoi(part)
			if err != nil || val < min || val > max {
				return nil, fmt.Errorf("invalid value: %s", part)
			}
			start, end = val, val
			if step > 1 {
				end = max
			}
		}

		for i := start; i <= end; i += step {
			result[i] = true
		}
	}
	return result, nil
}

// maxCronSearch bounds the search for schedules that never match, like Feb 30.
const maxCronSearch = 366 * 24 * 60

// Next returns the next time after 'after' that matches the schedule, or the
// zero time if none exists within a year.
func (c *CronSchedule) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)
	for i := 0; i < maxCronSearch; i++ {
		if c.Minute[t.Minute()] &&
			c.Hour[t.Hour()] &&
			c.Day[t.Day()] &&
			c.Month[int(t.Month())] &&
			c.Weekday[int(t.Weekday())] {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}
