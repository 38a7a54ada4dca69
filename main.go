package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/amity/server/api/rest"
	"github.com/kasuganosora/amity/server/audit"
	"github.com/kasuganosora/amity/server/cache"
	"github.com/kasuganosora/amity/server/config"
	dbadapter "github.com/kasuganosora/amity/server/db"
	"github.com/kasuganosora/amity/server/friend"
	mw "github.com/kasuganosora/amity/server/middleware"
	"github.com/kasuganosora/amity/server/model"
	"github.com/kasuganosora/amity/server/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	sched.AddTicker("audit_prune", cfg.Audit.PruneInterval, func() {
		auditSvc.Prune(retention)
	})

	// ---- Services ----
	friendSvc := friend.NewService(db, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if len(cfg.Server.AllowedOrigins) == 0 {
				return true
			}
			for _, o := range cfg.Server.AllowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	friendH := apirest.NewFriendHandler(friendSvc, auditSvc)
	adminH := apirest.NewAdminHandler(db, sched, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		api.GET("/me", mw.Auth(cfg.Security, c), authH.Me)

		friendsG := api.Group("/friends")
		friendsG.Use(mw.Auth(cfg.Security, c))
		friendsG.GET("", friendH.ListFriends)
		friendsG.GET("/invitations", friendH.ListInvitations)
		friendsG.POST("/invitations", friendH.Propose)
		friendsG.POST("/invitations/:id/accept", friendH.Accept)
		friendsG.POST("/invitations/:id/reject", friendH.Reject)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Security.AdminIPWhitelist))
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/users/:id/ban", adminH.BanUser)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
