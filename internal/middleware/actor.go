package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/store"
	"github.com/noah-isme/academic-engine/pkg/logger"
)

const (
	// ContextActorKey stores the resolved caller on the gin context.
	ContextActorKey = "actor"
	maxActorLength  = 64
)

// Actor attaches the X-Actor header to the request context so committed
// change events carry the caller. Missing or oversized values fall back to
// the store default.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(logger.ActorHeader))
		if actor == "" || len(actor) > maxActorLength {
			actor = store.DefaultActor
		}
		c.Set(ContextActorKey, actor)
		c.Request = c.Request.WithContext(store.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
