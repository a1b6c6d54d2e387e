package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sunrise-clinic/booking-api/api/swagger"
	"github.com/sunrise-clinic/booking-api/internal/handler"
	"github.com/sunrise-clinic/booking-api/internal/middleware"
	"github.com/sunrise-clinic/booking-api/internal/models"
	"github.com/sunrise-clinic/booking-api/internal/repository"
	"github.com/sunrise-clinic/booking-api/internal/service"
	"github.com/sunrise-clinic/booking-api/pkg/cache"
	"github.com/sunrise-clinic/booking-api/pkg/config"
	"github.com/sunrise-clinic/booking-api/pkg/database"
	"github.com/sunrise-clinic/booking-api/pkg/logger"
	corsmiddleware "github.com/sunrise-clinic/booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sunrise-clinic/booking-api/pkg/middleware/requestid"
	"github.com/sunrise-clinic/booking-api/pkg/storage"
)

// @title Sunrise Clinic Booking API
// @version 1.0.0
// @description Multi-location appointment booking backend
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	businessLocation, err := time.LoadLocation(cfg.Booking.DefaultTimezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid default timezone", "timezone", cfg.Booking.DefaultTimezone, "error", err)
	}

	metricsService := service.NewMetricsService()

	// A missing Redis only costs the availability cache, not the whole API.
	var availabilityCache *service.InstrumentedCache
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		availabilityCache = service.NewInstrumentedCache(repository.NewCacheRepository(redisClient), metricsService)
	}

	userRepo := repository.NewUserRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	serviceRepo := repository.NewServiceRepository(db)
	technicianRepo := repository.NewTechnicianRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	businessHourRepo := repository.NewBusinessHourRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userService := service.NewUserService(userRepo, locationRepo, nil, logr)
	patientService := service.NewPatientService(patientRepo, nil, logr)
	availabilityService := service.NewAvailabilityService(
		offeringRepo,
		businessHourRepo,
		appointmentRepo,
		technicianRepo,
		availabilityCache,
		businessLocation,
		service.QuotaDefaults{
			Morning:   cfg.Booking.RestrictedMorningQuota,
			Afternoon: cfg.Booking.RestrictedAfternoonQuota,
		},
		cfg.Booking.AvailabilityCacheTTL,
		nil,
		logr,
	)
	catalogService := service.NewCatalogService(locationRepo, serviceRepo, technicianRepo, offeringRepo, availabilityService, nil, logr)
	businessHourService := service.NewBusinessHourService(businessHourRepo, technicianRepo, locationRepo, availabilityService, nil, logr)
	appointmentService := service.NewAppointmentService(appointmentRepo, patientRepo, offeringRepo, userRepo, availabilityService, nil, logr)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "dir", cfg.Exports.StorageDir, "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportService := service.NewExportService(
		appointmentRepo,
		technicianRepo,
		exportStorage,
		exportSigner,
		businessLocation,
		service.ExportConfig{
			Enabled:   cfg.Exports.Enabled,
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			Workers:   cfg.Exports.WorkerConcurrency,
			Retries:   cfg.Exports.WorkerRetries,
		},
		nil,
		logr,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		exportService.Start(ctx)
		defer exportService.Stop()
		go runExportCleanup(ctx, exportService, cfg.Exports, logr)
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	patientHandler := handler.NewPatientHandler(patientService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	businessHourHandler := handler.NewBusinessHourHandler(businessHourService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, metricsService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Signed download links carry their own credential.
	api.GET("/admin/exports/download/:token", exportHandler.Download)

	public := api.Group("", middleware.OptionalJWT(authService))
	{
		public.GET("/catalog/locations", catalogHandler.ListLocations)
		public.GET("/catalog/services", catalogHandler.ListServices)
		public.GET("/catalog/technicians", catalogHandler.ListTechnicians)
		public.GET("/catalog/offerings", catalogHandler.ListOfferings)
		public.GET("/schedule/availability", availabilityHandler.Get)
	}

	authed := api.Group("", middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		authed.GET("/users/me", userHandler.Me)
		authed.PATCH("/users/me", userHandler.UpdateMe)

		authed.GET("/users/patients", patientHandler.List)
		authed.POST("/users/patients", patientHandler.Create)
		authed.PUT("/users/patients/:id", patientHandler.Update)
		authed.DELETE("/users/patients/:id", patientHandler.Delete)

		authed.GET("/appointments/me", appointmentHandler.ListMine)
		authed.POST("/appointments", appointmentHandler.Book)
		authed.DELETE("/appointments/:id", appointmentHandler.Cancel)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)

		admin.POST("/catalog/locations", catalogHandler.CreateLocation)
		admin.PUT("/catalog/locations/:id", catalogHandler.UpdateLocation)
		admin.POST("/catalog/services", catalogHandler.CreateService)
		admin.PUT("/catalog/services/:id", catalogHandler.UpdateService)
		admin.POST("/catalog/technicians", catalogHandler.CreateTechnician)
		admin.PUT("/catalog/technicians/:id", catalogHandler.UpdateTechnician)
		admin.POST("/catalog/offerings", catalogHandler.CreateOffering)
		admin.PUT("/catalog/offerings/:id", catalogHandler.UpdateOffering)
		admin.DELETE("/catalog/offerings/:id", catalogHandler.DeleteOffering)

		admin.GET("/schedule/business-hours", businessHourHandler.List)
		admin.POST("/schedule/business-hours", businessHourHandler.Create)
		admin.PUT("/schedule/business-hours/:id", businessHourHandler.Update)
		admin.DELETE("/schedule/business-hours/:id", businessHourHandler.Delete)

		admin.GET("/appointments", appointmentHandler.AdminList)
		admin.POST("/appointments", appointmentHandler.AdminCreate)
		admin.PATCH("/appointments/:id", appointmentHandler.AdminUpdate)
		admin.DELETE("/appointments/:id", appointmentHandler.AdminDelete)

		admin.POST("/exports/schedule", exportHandler.Create)
		admin.GET("/exports/schedule/:id", exportHandler.Status)

		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// runExportCleanup periodically removes rendered export files past their TTL.
func runExportCleanup(ctx context.Context, exports *service.ExportService, cfg config.ExportsConfig, logr *zap.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(cfg.SignedURLTTL)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("export files cleaned up", zap.Int("count", len(removed)))
			}
		}
	}
}
