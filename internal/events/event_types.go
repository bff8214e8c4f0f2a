package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventUserLoggedIn   EventType = "user_logged_in"
	EventLoginFailed    EventType = "login_failed"
	EventUserLoggedOut  EventType = "user_logged_out"
)

// Event represents an auth state transition emitted by the auth service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedReason tells the two login failures apart.
type LoginFailedReason string

const (
	ReasonUnknownEmail  LoginFailedReason = "unknown_email"
	ReasonWrongPassword LoginFailedReason = "wrong_password"
)

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Email  string            `json:"email"`
	Reason LoginFailedReason `json:"reason"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Email string `json:"email"`
}
