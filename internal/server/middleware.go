package server

import (
	"strings"

	"github.com/Tao119/eurekode-sub004/internal/actorcontext"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// Identity headers injected by the session collaborator after it has
// verified the caller. This service never sees raw credentials.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
	HeaderOrg    = "X-Org-ID"
)

// ActorRequired rejects requests that arrive without a verified identity
// and threads the actor through the request context.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := snowflake.ParseString(strings.TrimSpace(c.GetHeader(HeaderUserID)))
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role := actorcontext.Role(strings.TrimSpace(c.GetHeader(HeaderRole)))
		switch role {
		case actorcontext.RoleIndividual, actorcontext.RoleAdmin, actorcontext.RoleMember:
		default:
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := actorcontext.Actor{UserID: userID, Role: role}
		if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
			orgID, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			actor.OrgID = orgID
		}
		if (role == actorcontext.RoleAdmin || role == actorcontext.RoleMember) && actor.OrgID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(actorcontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func actorFrom(c *gin.Context) (actorcontext.Actor, bool) {
	return actorcontext.ActorFromContext(c.Request.Context())
}
