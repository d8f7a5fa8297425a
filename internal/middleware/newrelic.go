package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// CallerAttributes tags the request's New Relic transaction with the caller
// and the matched route. It must run after nrgin and Identity.
func CallerAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if caller, ok := CallerFrom(c); ok {
			txn.AddAttribute("caller.id", caller.ID)
			txn.AddAttribute("caller.role", string(caller.Role))
			if caller.ActiveVehicleType != "" {
				txn.AddAttribute("caller.vehicleType", string(caller.ActiveVehicleType))
			}
		}
		if tripID := c.Param("id"); tripID != "" {
			txn.AddAttribute("entity.id", tripID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
