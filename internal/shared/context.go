package shared

import (
	"context"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
)

type sessionContextKey struct{}

type actorContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor grouprole.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the acting user, or the anonymous actor when none was stored.
func ActorFromContext(ctx context.Context) grouprole.Actor {
	actor, _ := ctx.Value(actorContextKey{}).(grouprole.Actor)
	return actor
}
