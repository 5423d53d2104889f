// Package handlers contains the update handlers of the gatekeeper bot.
package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes one bot update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Chain applies middlewares to a handler, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	if h == nil {
		return nil
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}

	return h
}

const requestContextKey = "request_ctx"

// SetRequestContext stores the per-update context on the telebot context.
func SetRequestContext(c telebot.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(requestContextKey, ctx)
	}
}

// RequestContext returns the per-update context seeded by the logging
// middleware, carrying the correlation id.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(requestContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}

	return context.Background()
}
