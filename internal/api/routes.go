package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesquitadev/whatsticket-be/internal/api/middleware"
	"github.com/mesquitadev/whatsticket-be/internal/api/response"
	v1 "github.com/mesquitadev/whatsticket-be/internal/api/v1"
	"github.com/mesquitadev/whatsticket-be/internal/repository"
	"github.com/mesquitadev/whatsticket-be/internal/service"
	"github.com/mesquitadev/whatsticket-be/internal/sse"
	"github.com/mesquitadev/whatsticket-be/internal/storage"
	loggerpkg "github.com/mesquitadev/whatsticket-be/pkg/logger"
)

type RouterConfig struct {
	AnnouncementService *service.AnnouncementService
	AuditRepo           repository.AuditRepository
	Store               storage.Store
	Hub                 *sse.Hub
	RecentLogs          *loggerpkg.RecentLogs
	InternalToken       string
	Logger              *zap.Logger
}

func RegisterRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	root := router.Group("")
	v1.RegisterAnnouncementRoutes(root, cfg.AnnouncementService, cfg.Store)
	v1.RegisterSSERoutes(root, cfg.Hub)
	v1.RegisterWSRoutes(root, cfg.Hub, cfg.Logger)
	v1.RegisterAuditRoutes(root, cfg.AuditRepo)

	internal := router.Group("/internal", middleware.InternalTokenAuth(cfg.InternalToken))
	internal.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.RecentLogs != nil {
		internal.GET("/logs", recentLogsHandler(cfg.RecentLogs))
	}
}

func recentLogsHandler(recent *loggerpkg.RecentLogs) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 100
		if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				response.Fail(c, 400, "invalid limit")
				return
			}
			limit = parsed
		}
		response.Success(c, recent.Tail(limit))
	}
}
