package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-api/internal/handler"
	"github.com/noah-isme/studio-api/internal/middleware"
	"github.com/noah-isme/studio-api/internal/models"
	"github.com/noah-isme/studio-api/internal/service"
	"github.com/noah-isme/studio-api/pkg/config"
	"github.com/noah-isme/studio-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studio-api/pkg/middleware/requestid"
)

type routeDeps struct {
	cfg         *config.Config
	logger      *zap.Logger
	metrics     *service.MetricsService
	auth        *service.AuthService
	lessons     *service.ContentService
	technics    *service.ContentService
	assignments *service.AssignmentService
	roster      *service.RosterService
	directory   *service.DirectoryService
	media       *service.MediaService
	checks      map[string]handler.ReadinessCheck
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	metricsHandler := handler.NewMetricsHandler(d.metrics, d.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(d.auth)
	userHandler := handler.NewUserHandler(d.directory)
	lessonHandler := handler.NewContentHandler(d.lessons)
	technicHandler := handler.NewContentHandler(d.technics)
	assignmentHandler := handler.NewAssignmentHandler(d.assignments)
	rosterHandler := handler.NewRosterHandler(d.roster)
	mediaHandler := handler.NewMediaHandler(d.media)

	api := r.Group(d.cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/login", authHandler.Login)
	auth.POST("/provider", authHandler.ProviderLogin)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/profile", authHandler.CompleteProfile)
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/metrics/summary", middleware.RequireRoles(models.RoleTeacher), metricsHandler.Summary)

	teacher := secured.Group("")
	teacher.Use(middleware.RequireRoles(models.RoleTeacher))

	teacher.GET("/users", userHandler.List)

	registerContent(teacher.Group("/lessons"), lessonHandler, d.logger, "lesson")
	registerContent(teacher.Group("/technics"), technicHandler, d.logger, "technic")

	teacher.POST("/assignments", middleware.Audit(d.logger, "assign", "assignment"), assignmentHandler.Create)
	secured.PATCH("/assignments/:id/status", assignmentHandler.UpdateStatus)

	students := secured.Group("/students/:id")
	students.Use(middleware.RBAC(string(models.RoleTeacher), middleware.Self))
	students.GET("/assignments", assignmentHandler.ListForStudent)
	students.GET("/assignments/export", assignmentHandler.Export)
	students.GET("/library", assignmentHandler.Library)

	teacher.GET("/roster", rosterHandler.Get)
	teacher.POST("/roster", middleware.Audit(d.logger, "add", "roster"), rosterHandler.Add)
	teacher.GET("/roster/:studentId", rosterHandler.Detail)
	teacher.DELETE("/roster/:studentId", middleware.Audit(d.logger, "remove", "roster"), rosterHandler.Remove)

	teacher.POST("/media", mediaHandler.Upload)
	teacher.POST("/media/sign", mediaHandler.Sign)
	api.GET("/media/:token", mediaHandler.Download)

	return r
}

func registerContent(group *gin.RouterGroup, h *handler.ContentHandler, logr *zap.Logger, resource string) {
	group.GET("", h.List)
	group.POST("", middleware.Audit(logr, "create", resource), h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", middleware.Audit(logr, "update", resource), h.Update)
	group.DELETE("/:id", middleware.Audit(logr, "delete", resource), h.Delete)
}
