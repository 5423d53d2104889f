// Package lifecycle coordinates named shutdown hooks for the process.
package lifecycle

import "context"

// Hook is a named cleanup step executed during shutdown.
type Hook struct {
	Name string
	Fn   func(context.Context) error
}
