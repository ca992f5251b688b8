package service

import (
	"context"
	"time"
)

type EventType string

const (
	EventUserRegistered          EventType = "user.registered"
	EventActivationRequested     EventType = "user.activation_requested"
	EventUserActivated           EventType = "user.activated"
	EventUserLoggedIn            EventType = "user.logged_in"
	EventUserLoggedOut           EventType = "user.logged_out"
	EventPasswordResetRequested  EventType = "user.password_reset_requested"
	EventPasswordChanged         EventType = "user.password_changed"
	EventEmailChangeRequested    EventType = "user.email_change_requested"
	EventEmailChanged            EventType = "user.email_changed"
	EventUserBanned              EventType = "user.banned"
	EventUserUnbanned            EventType = "user.unbanned"
	EventFederatedIdentityLinked EventType = "user.federated_linked"
)

// Event describes something that happened to an account. Code is set on the
// *_requested and registered events; delivering it (usually by email) is the
// observer's job.
type Event struct {
	Type      EventType
	UserID    string
	Username  string
	Email     string
	Code      string
	CodeTTL   time.Duration
	NewEmail  string
	SessionID string
	At        time.Time
}

// Observer receives account lifecycle events. Notify runs inline with the
// flow that raised the event; a returned error is logged and otherwise
// ignored.
type Observer interface {
	Notify(ctx context.Context, e Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, e Event) error

func (f ObserverFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// NoopObserver drops every event.
type NoopObserver struct{}

func (NoopObserver) Notify(context.Context, Event) error { return nil }

// Observers fans an event out to each observer in order. Every observer is
// called; the first error is returned.
type Observers []Observer

func (os Observers) Notify(ctx context.Context, e Event) error {
	var first error
	for _, o := range os {
		if err := o.Notify(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
