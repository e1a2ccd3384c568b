package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig configures per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int   `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	RequestsPerHour   int   `json:"requests_per_hour" yaml:"requests_per_hour" mapstructure:"requests_per_hour"`
	MaxRequestsPerDay int   `json:"max_requests_per_day" yaml:"max_requests_per_day" mapstructure:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `json:"max_data_per_day_mb" yaml:"max_data_per_day_mb" mapstructure:"max_data_per_day_mb"`
}

// RateLimiter limits uploads per client. Windows are fixed and start with a
// client's first request in the window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxBytesPerDay    int64

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
	day         time.Time
	dayCount    int
	dayBytes    int64
	lastSeen    time.Time
}

// NewRateLimiter creates a limiter from config.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: config.RequestsPerMinute,
		requestsPerHour:   config.RequestsPerHour,
		maxRequestsPerDay: config.MaxRequestsPerDay,
		maxBytesPerDay:    config.MaxDataPerDayMB * 1024 * 1024,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, day: startOfDay(now)}
		rl.clients[client] = u
	}
	u.roll(now)

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Window: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{Window: "hour", Limit: rl.requestsPerHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Kind: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.dayCount), Resets: resets}
	}
	if rl.maxBytesPerDay > 0 && u.dayBytes+size > rl.maxBytesPerDay {
		return &QuotaExceededError{Kind: "data", Limit: rl.maxBytesPerDay, Used: u.dayBytes, Resets: resets}
	}

	u.minuteCount++
	u.hourCount++
	u.dayCount++
	u.dayBytes += size
	u.lastSeen = now
	return nil
}

// Prune forgets clients idle for longer than a day.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-24 * time.Hour)
	n := 0
	for id, u := range rl.clients {
		if u.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
			n++
		}
	}
	return n
}

func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}
	if day := startOfDay(now); !day.Equal(u.day) {
		u.day, u.dayCount, u.dayBytes = day, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RateLimitError is returned when a request window is full.
type RateLimitError struct {
	Window     string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per %s, retry after %v", e.Limit, e.Window, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError is returned when a daily quota is used up.
type QuotaExceededError struct {
	Kind   string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily %s quota exceeded (used %d of %d), resets %s",
		e.Kind, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
