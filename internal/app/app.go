package app

import (
	"os"
	"strconv"
	"time"

	"go-bioattend/internal/faceengine"
	"go-bioattend/internal/matcher"
	"go-bioattend/internal/notify"
	"go-bioattend/internal/photostore"
	"go-bioattend/internal/shared/connection"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func BuildApp(router *gin.Engine) error {
	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}

	extractor := faceengine.New(os.Getenv("FACE_ENGINE_URL"))
	uploader := buildUploader()
	links := notify.NewLinkBuilder(os.Getenv("ABSENCE_MESSAGE_TEMPLATE"))

	return registerModules(router, sqlDB, gormDB, redisClient, deps{
		extractor: extractor,
		uploader:  uploader,
		links:     links,
		location:  attendanceLocation(),
		threshold: matchThreshold(),
	})
}

func buildUploader() photostore.Uploader {
	cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
	if cloudName == "" {
		zap.L().Warn("object storage not configured, mark photos will not be persisted")
		return photostore.Noop{}
	}
	return photostore.New(
		cloudName,
		os.Getenv("CLOUDINARY_API_KEY"),
		os.Getenv("CLOUDINARY_API_SECRET"),
		os.Getenv("CLOUDINARY_FOLDER"),
	)
}

// attendanceLocation resolves the single canonical timezone that decides
// what "today" means. Defaults to server-local when ATTENDANCE_TZ is unset.
func attendanceLocation() *time.Location {
	tz := os.Getenv("ATTENDANCE_TZ")
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		zap.L().Warn("invalid ATTENDANCE_TZ, falling back to server-local time", zap.String("tz", tz), zap.Error(err))
		return time.Local
	}
	return loc
}

func matchThreshold() float64 {
	raw := os.Getenv("MATCH_THRESHOLD")
	if raw == "" {
		return matcher.DefaultThreshold
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		zap.L().Warn("invalid MATCH_THRESHOLD, using default", zap.String("value", raw))
		return matcher.DefaultThreshold
	}
	return v
}
