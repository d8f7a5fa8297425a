package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
)

// Headers set by the trusted gateway after authenticating the caller.
const (
	HeaderUserID      = "X-User-ID"
	HeaderUserRole    = "X-User-Role"
	HeaderVehicleType = "X-Vehicle-Type"
)

const callerKey = "dispatch.caller"

// Identity resolves the caller from gateway headers and rejects requests without one.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		role := domain.Role(strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		if id == "" || !role.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid caller identity"})
			return
		}

		caller := domain.Caller{ID: id, Role: role}
		if vt := domain.VehicleType(strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderVehicleType)))); vt.Valid() {
			caller.ActiveVehicleType = vt
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the caller stored by Identity.
func CallerFrom(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}
