package client

import "context"

// Spec §9's open question on dyeing-key propagation across coroutine
// suspensions is resolved for Go (which has no coroutines to suspend) by
// carrying the key as an explicit context.Context value, attached once at
// invocation entry: any nested Invoke call sharing the same Context (same
// goroutine, or an explicitly forwarded one) inherits it automatically,
// the same way the original's thread-local survived a coroutine resume.
type dyeingKeyCtxKey struct{}

// WithDyeing returns a Context carrying key, to be read back by any
// Invoke call made with it (directly or by a nested call that forwards
// the same Context).
func WithDyeing(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, dyeingKeyCtxKey{}, key)
}

// DyeingKey reads back the key attached by WithDyeing, or "" if none.
func DyeingKey(ctx context.Context) string {
	v, _ := ctx.Value(dyeingKeyCtxKey{}).(string)
	return v
}
