package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"facility-booking-backend/internal/booking"
	"facility-booking-backend/internal/model"
)

// Headers set by the fronting auth proxy.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

const actorKey = "actor"

var knownRoles = map[model.ActorRole]bool{
	model.RoleOwner:  true,
	model.RoleStaff:  true,
	model.RoleTenant: true,
}

// Actor reads the caller identity headers. Requests without an id or with an
// unknown role are refused with 401.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := model.ActorRole(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole))))
		if id == "" || !knownRoles[role] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "X-Actor-Id and a valid X-Actor-Role (owner, staff, tenant) are required",
			})
			return
		}
		c.Set(actorKey, booking.Actor{ID: id, Role: role})
		c.Next()
	}
}

// ActorFrom returns the actor stored by the Actor middleware.
func ActorFrom(c *gin.Context) booking.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(booking.Actor); ok {
			return a
		}
	}
	return booking.Actor{}
}
