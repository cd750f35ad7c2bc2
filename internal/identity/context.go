package identity

import "context"

type contextKey struct{}

// ContextWithSession attaches a verified session to the request context.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// SessionFromContext extracts the verified session, if any. The zero session
// reports IsAuthenticated() == false.
func SessionFromContext(ctx context.Context) Session {
	sess, _ := ctx.Value(contextKey{}).(Session)
	return sess
}
