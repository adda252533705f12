package identity

import (
	"go-bioattend/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, rbacService middleware.RBACService) {
	identities := r.Group("/identities")
	identities.Use(middleware.AuthMiddleware())
	{
		identities.GET("", middleware.RBACAuthorize(rbacService, "identity", "read"), h.GetAll)
		identities.GET("/:id", middleware.RBACAuthorize(rbacService, "identity", "read"), h.GetByID)
		identities.POST("/enroll-face", middleware.RBACAuthorize(rbacService, "identity", "create"), h.EnrollFace)
		identities.POST("/credentials", middleware.RBACAuthorize(rbacService, "identity", "create"), h.RegisterCredential)
		identities.POST("/:id/deactivate", middleware.RBACAuthorize(rbacService, "identity", "update"), h.Deactivate)
	}
}
