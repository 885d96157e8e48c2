package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// FromHeader returns the inbound id when it is a well-formed UUID, or a
// fresh one. Arbitrary client strings never reach the logs.
func FromHeader(v string) string {
	if v == "" {
		return New()
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return New()
	}
	return id.String()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if no id is attached.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
