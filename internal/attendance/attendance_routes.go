package attendance

import (
	"go-bioattend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService middleware.RBACService, rdb *redis.Client) {
	// Kiosk-facing mark endpoints: authenticated by the biometric sample
	// itself, throttled and deduplicated rather than token-guarded.
	marks := r.Group("/marks")
	marks.Use(middleware.RateLimitByIP(rate.Limit(2), 5))
	marks.Use(middleware.Idempotency(rdb))
	{
		marks.POST("/face", h.MarkByFace)
		marks.POST("/assertion", h.MarkByAssertion)
		marks.POST("/challenge", h.IssueChallenge)
	}

	reports := r.Group("/attendance")
	reports.Use(middleware.AuthMiddleware())
	{
		reports.GET("", middleware.RBACAuthorize(rbacService, "attendance", "read"), h.ListByDay)
		reports.GET("/absentees", middleware.RBACAuthorize(rbacService, "attendance", "read"), h.ListAbsentees)
	}
}
