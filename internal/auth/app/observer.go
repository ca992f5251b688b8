package app

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
)

// LogObserver records account events in the service log. There is no mail
// delivery yet, so in dev revealCodes puts verification codes in the log to
// let the flows be walked by hand.
func LogObserver(logger *slog.Logger, revealCodes bool) service.Observer {
	return service.ObserverFunc(func(ctx context.Context, e service.Event) error {
		attrs := []any{
			slog.String("event", string(e.Type)),
			slog.String("user_id", e.UserID),
		}
		if e.NewEmail != "" {
			attrs = append(attrs, slog.String("new_email", e.NewEmail))
		}
		if e.SessionID != "" {
			attrs = append(attrs, slog.String("session_id", e.SessionID))
		}
		if e.Code != "" {
			attrs = append(attrs, slog.Duration("code_ttl", e.CodeTTL))
			if revealCodes {
				attrs = append(attrs, slog.String("code", e.Code))
			}
		}

		logger.InfoContext(ctx, "account event", attrs...)
		return nil
	})
}
