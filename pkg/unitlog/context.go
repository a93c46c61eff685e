package unitlog

import "context"

type unitKey struct{}

// NewContext returns a context carrying u.
func NewContext(ctx context.Context, u *Unit) context.Context {
	return context.WithValue(ctx, unitKey{}, u)
}

// FromContext returns the unit carried by ctx.
func FromContext(ctx context.Context) (*Unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*Unit)
	return u, ok && u != nil
}

// From returns a logger for the unit carried by ctx. Outside a unit the
// returned logger discards entries.
func From(ctx context.Context) Logger {
	u, ok := FromContext(ctx)
	if !ok {
		return Logger{}
	}
	return u.Logger()
}
