package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/bot/handlers"
	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/ratelimit"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
	"github.com/kvaty/gatekeeper-bot/pkg/logger"
	"github.com/kvaty/gatekeeper-bot/pkg/metrics"
)

// updateKind classifies the update for logs and metrics.
func updateKind(c telebot.Context) string {
	switch {
	case c == nil:
		return "unknown"
	case c.Callback() != nil:
		return "callback"
	case c.Message() != nil && len(c.Message().UsersJoined) > 0:
		return "member_joined"
	case c.Message() != nil && c.Message().UserLeft != nil:
		return "member_left"
	default:
		return "message"
	}
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "Произошла ошибка. Попробуйте позже"
					if errHandler != nil {
						if msg, _ := errHandler.Handle(handlers.RequestContext(c), fmt.Errorf("panic recovered: %v", r)); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures. Callback presses are answered with an alert so the user
// sees the message even when the wizard screen could not be updated.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(handlers.RequestContext(c), err); msg != "" {
					userMsg = msg
				}
			}

			if c == nil {
				return nil
			}

			if c.Callback() != nil {
				_ = c.Respond(&telebot.CallbackResponse{Text: userMsg, ShowAlert: true})
				return nil
			}

			_ = c.Send(userMsg)
			return nil
		}
	}
}

// LoggingMiddleware seeds the per-update context with a correlation id, logs
// basic telemetry and records update metrics.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := logger.WithCorrelationID(context.Background())
			handlers.SetRequestContext(c, ctx)

			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = cb.Data
				} else {
					action = c.Text()
				}
			}

			kind := updateKind(c)
			correlationID := logger.CorrelationIDFromContext(ctx)

			log.Info("handling update",
				slog.String("kind", kind),
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
			)

			err := next(c)

			status := "ok"
			if err != nil {
				status = "error"
			}
			metrics.RecordUpdate(kind, status, time.Since(start))

			log.Info("handled update",
				slog.String("kind", kind),
				slog.Int64("user_id", userID),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", correlationID),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// RateLimitMiddleware throttles updates per user. Limiter failures fail open:
// a broken Redis must not lock everyone out of verification.
func RateLimitMiddleware(limiter ratelimit.Limiter, cfg config.RateLimitConfig, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if !cfg.Enabled || limiter == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			userID := c.Sender().ID
			result, err := limiter.Check(handlers.RequestContext(c), strconv.FormatInt(userID, 10), cfg.Limit, cfg.Window)
			if err != nil {
				log.Warn("rate limiter unavailable, allowing update", slog.Int64("user_id", userID), slog.Any("error", err))
				return next(c)
			}

			if !result.Allowed {
				log.Info("rate limited update", slog.Int64("user_id", userID))

				if c.Callback() != nil {
					return c.Respond(&telebot.CallbackResponse{Text: "Слишком быстро. Подождите немного."})
				}
				return nil
			}

			return next(c)
		}
	}
}
