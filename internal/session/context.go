package session

import (
	"context"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
)

type ctxKey struct{}

func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

func FromContext(ctx context.Context) (*domain.Session, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}
	return c.Session(), true
}

// Provider resolves the session of the request a context belongs to.
type Provider struct{}

func (Provider) CurrentSession(ctx context.Context) (*domain.Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}
