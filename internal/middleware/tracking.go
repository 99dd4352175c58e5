package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Request headers shared with the other platform services.
const (
	TrackingHeader = "x-np-tracking-id"
	EmitterHeader  = "x-np-emitter-id"
)

const (
	trackingKey = "tracking_id"
	emitterKey  = "emitter_id"
)

// Tracking echoes the caller's tracking id, or a new UUID when none was sent,
// on every response. The emitter id of the caller is kept for audit entries.
func Tracking() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TrackingHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(trackingKey, id)
		c.Set(emitterKey, c.GetHeader(EmitterHeader))
		c.Header(TrackingHeader, id)
		c.Next()
	}
}

// TrackingID returns the tracking id of the request.
func TrackingID(c *gin.Context) string {
	return c.GetString(trackingKey)
}

// EmitterID returns the x-np-emitter-id of the request, if any.
func EmitterID(c *gin.Context) string {
	return c.GetString(emitterKey)
}
