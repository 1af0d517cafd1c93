package actorcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Role is the verified role attached to a session by the auth collaborator.
type Role string

const (
	RoleIndividual Role = "individual"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
)

// Actor is the authenticated caller identity carried on every request.
type Actor struct {
	UserID snowflake.ID
	Role   Role
	OrgID  snowflake.ID // 0 when the actor has no organization
}

// IsOrganization reports whether the actor acts within an organization.
func (a Actor) IsOrganization() bool {
	return a.OrgID != 0 && (a.Role == RoleAdmin || a.Role == RoleMember)
}

// ActorContextKey is the request context key for the verified actor.
type ActorContextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the actor from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	if !ok || actor.UserID == 0 {
		return Actor{}, false
	}
	return actor, true
}
