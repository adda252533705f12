package app

import (
	"database/sql"
	"path/filepath"
	"time"

	"go-bioattend/internal/assertion"
	"go-bioattend/internal/attendance"
	"go-bioattend/internal/auth"
	"go-bioattend/internal/faceengine"
	"go-bioattend/internal/identity"
	"go-bioattend/internal/messaging/kafka"
	"go-bioattend/internal/notify"
	"go-bioattend/internal/photostore"
	"go-bioattend/internal/rbac"
	"go-bioattend/internal/rbac/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type deps struct {
	extractor faceengine.Extractor
	uploader  photostore.Uploader
	links     *notify.LinkBuilder
	location  *time.Location
	threshold float64
}

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	d deps,
) error {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	identityRepo := identity.NewRepository(gormDB)
	attendanceRepo := attendance.NewRepository(gormDB)
	authRepo := auth.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(filepath.Join("internal", "rbac", "infra", "model.conf"))
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer)

	// --- Core Components ---
	gallery := identity.NewGallery(identityRepo, 30*time.Second)
	challenges := assertion.NewChallengeStore(rdb, assertion.DefaultChallengeTTL)

	// --- Services ---
	authService := auth.NewService(authRepo)
	identityService := identity.NewService(db, identityRepo, outboxRepo, d.extractor, gallery)
	attendanceService := attendance.NewService(
		db,
		attendanceRepo,
		identityRepo,
		gallery,
		outboxRepo,
		d.extractor,
		d.uploader,
		challenges,
		d.links,
		attendance.Config{
			Location:  d.location,
			Threshold: d.threshold,
		},
	)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService)
	identityHandler := identity.NewHandler(identityService)
	attendanceHandler := attendance.NewHandler(attendanceService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authHandler)
		identity.RegisterRoutes(api, identityHandler, rbacService)
		attendance.RegisterRoutes(api, attendanceHandler, rbacService, rdb)
	}

	return nil
}
