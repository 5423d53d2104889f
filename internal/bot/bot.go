// Package bot wires the telegram transport to the verification flow.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/kvaty/gatekeeper-bot/internal/bot/handlers"
	"github.com/kvaty/gatekeeper-bot/internal/content"
	apperrors "github.com/kvaty/gatekeeper-bot/internal/errors"
	"github.com/kvaty/gatekeeper-bot/internal/media"
	"github.com/kvaty/gatekeeper-bot/internal/ratelimit"
	"github.com/kvaty/gatekeeper-bot/internal/render"
	"github.com/kvaty/gatekeeper-bot/internal/session"
	"github.com/kvaty/gatekeeper-bot/internal/verification"
	"github.com/kvaty/gatekeeper-bot/internal/wizard"
	"github.com/kvaty/gatekeeper-bot/pkg/config"
)

const (
	CommandStart   = "/start"
	CommandRestart = "/restart"
)

// Bot wraps telebot.Bot with the application dependencies needed to gate a group chat.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	engine     *wizard.Engine
	restrictor *Restrictor
	errHandler *apperrors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(
	cfg config.Config,
	log *slog.Logger,
	policy *verification.Policy,
	sessions session.Store,
	contentStore *content.Store,
	mediaCache *media.Cache,
	limiter ratelimit.Limiter,
) (*Bot, error) {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Bot.Listen,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	restrictor := NewRestrictor(tb, log)
	transport := NewTransport(tb, mediaCache, log)
	renderer := render.NewRenderer(transport, log, cfg.Verification.CaptionLimit)
	engine := wizard.NewEngine(contentStore, policy, renderer, sessions, restrictor, errHandler, log)

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		engine:     engine,
		restrictor: restrictor,
		errHandler: errHandler,
	}

	b.registerHandlers(policy, sessions, limiter)

	return b, nil
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) registerHandlers(policy *verification.Policy, sessions session.Store, limiter ratelimit.Limiter) {
	middlewares := []handlers.Middleware{
		RecoveryMiddleware(b.log, b.errHandler),
		ErrorHandlingMiddleware(b.errHandler),
		LoggingMiddleware(b.log),
		RateLimitMiddleware(limiter, b.cfg.RateLimit, b.log),
	}

	wrap := func(h handlers.Handler) telebot.HandlerFunc {
		wrapped := handlers.Chain(h, middlewares...)
		return func(c telebot.Context) error {
			return wrapped(c)
		}
	}

	botUsername := ""
	if b.telebot.Me != nil {
		botUsername = b.telebot.Me.Username
	}

	b.telebot.Handle(CommandStart, wrap(handlers.NewStartHandler(b.engine, b.log)))
	b.telebot.Handle(CommandRestart, wrap(handlers.NewRestartHandler(b.engine, policy, botUsername, b.log)))
	b.telebot.Handle(telebot.OnCallback, wrap(handlers.NewCallbackHandler(b.engine, sessions, b.log)))
	b.telebot.Handle(telebot.OnUserJoined, wrap(handlers.NewJoinHandler(policy, b.restrictor, botUsername, b.log)))
}
