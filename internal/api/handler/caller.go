package handler

import "context"

type callerKey struct{}

// Caller is the attribution attached to authenticated requests by the auth
// middleware.
type Caller struct {
	UID   string
	Name  string
	Admin bool
}

// WithCaller attaches a caller to the request context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom extracts the request caller, zero-valued when absent.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
