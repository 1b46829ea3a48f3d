package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultRateLimit is applied when a client is created without one
const DefaultRateLimit = "1000/hour"

// ClientApp represents an application allowed to call the proxy routes
type ClientApp struct {
	Id             string
	Name           string
	ClientId       string // public identifier presented in X-Client-ID
	APIKeyHash     string // SHA-256 of the secret key; the key itself is never stored
	Description    string
	State          LifecycleState
	RateLimit      RateLimit
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
}

// RateLimit is a count/period descriptor such as "1000/hour"
type RateLimit struct {
	Count  int
	Period string
}

var validPeriods = map[string]bool{
	"second": true,
	"minute": true,
	"hour":   true,
	"day":    true,
}

// ParseRateLimit parses a "count/period" descriptor
func ParseRateLimit(s string) (RateLimit, error) {
	countStr, period, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateLimit{}, fmt.Errorf("rate limit %q must have the form count/period", s)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		return RateLimit{}, fmt.Errorf("rate limit count %q must be a positive integer", countStr)
	}

	if !validPeriods[period] {
		return RateLimit{}, fmt.Errorf("rate limit period %q must be one of second, minute, hour, day", period)
	}

	return RateLimit{Count: count, Period: period}, nil
}

// String renders the descriptor back to count/period form
func (r RateLimit) String() string {
	if r.Count == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%s", r.Count, r.Period)
}
