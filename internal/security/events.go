// Package security carries the structured security events the auth service
// emits to its external audit consumers.
package security

import "time"

type EventKind string

const (
	EventLoginSuccess       EventKind = "login_success"
	EventLoginFailure       EventKind = "login_failure"
	EventRegisterSuccess    EventKind = "register_success"
	EventRegisterFailure    EventKind = "register_failure"
	EventLogout             EventKind = "logout"
	EventRefreshSuccess     EventKind = "refresh_success"
	EventRefreshFailure     EventKind = "refresh_failure"
	EventUnauthorizedAccess EventKind = "unauthorized_access"
	EventRateLimitExceeded  EventKind = "rate_limit_exceeded"
	EventTokenReuseDetected EventKind = "token_reuse_detected"
)

type Event struct {
	Kind      EventKind `json:"kind"`
	Identity  string    `json:"identity,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives security events. Implementations must never block the
// request path and must never surface a delivery failure to the caller.
type Sink interface {
	Emit(event Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}
