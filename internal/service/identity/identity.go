// Package identity answers "who is driving this cart" for the cart engine.
package identity

import (
	"context"

	"storefront/internal/domain"
)

type sessionKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func FromContext(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(domain.Session)
	return sess, ok
}

// Provider reads the session placed on the context by the HTTP middleware.
type Provider struct{}

func (Provider) CurrentSession(ctx context.Context) (domain.Session, error) {
	sess, ok := FromContext(ctx)
	if !ok {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	return sess, nil
}

// Static always reports the same session.
type Static domain.Session

func (s Static) CurrentSession(context.Context) (domain.Session, error) {
	return domain.Session(s), nil
}
