package models

import (
	"strings"
	"time"
)

// Actions used as the first key segment.
const (
	ActionLogin   = "login"
	ActionRequest = "request"
)

// Key identifies one rate-limit counter: rl:{action}:{caller}.
type Key string

// NewKey builds a counter key. Caller segments are sanitized so user-controlled
// input cannot forge an adjacent key.
func NewKey(action, caller string) Key {
	return Key("rl:" + SanitizeKeySegment(action) + ":" + SanitizeKeySegment(strings.ToLower(caller)))
}

func (k Key) String() string { return string(k) }

// SanitizeKeySegment escapes delimiter characters in rate limit key segments.
// An identifier "user:admin" becomes "user_admin".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// Counter is the state of one fixed window.
type Counter struct {
	Count int
	TTL   time.Duration
}

// Result is the outcome of a limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Consumed evaluates a counter that already includes the current request.
// The request is allowed while the count stays within limit.
func Consumed(c Counter, limit int) Result {
	if c.Count > limit {
		return Result{Allowed: false, Limit: limit, RetryAfter: c.TTL}
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - c.Count}
}

// Lockout evaluates a failure counter before an attempt. The caller is
// locked out once recorded failures reach limit.
func Lockout(c Counter, limit int) Result {
	if c.Count >= limit {
		return Result{Allowed: false, Limit: limit, RetryAfter: c.TTL}
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit - c.Count}
}
