package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pdfshelf/internal/bootstrap"
	"pdfshelf/internal/transport/http/handler"
	"pdfshelf/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(app.Logger),
		middleware.Metrics(app.Metrics),
		cors.New(corsConfig(app.Config.CORS.AllowedOrigins)),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	services := app.Services
	authHandler := handler.NewAuthHandler(services.Auth)
	profileHandler := handler.NewProfileHandler(services.Profile)
	documentHandler := handler.NewDocumentHandler(services.Document, int64(app.Config.Storage.MaxUploadMB)<<20)
	textHandler := handler.NewTextHandler(services.Enrichment)
	collectionHandler := handler.NewCollectionHandler(services.Collection)
	chatHandler := handler.NewChatHandler(services.Chat)
	noteHandler := handler.NewNoteHandler(services.Note)
	progressHandler := handler.NewProgressHandler(services.Progress)

	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	limits := app.Config.RateLimit

	// A nil counter disables limiting.
	var counter middleware.HitCounter
	if app.RateCounter != nil {
		counter = app.RateCounter
	}

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register",
		middleware.RateLimit(counter, "register", limits.RegisterLimit, time.Duration(limits.RegisterWindowMinute)*time.Minute, app.Logger),
		authHandler.Register)
	authGroup.POST("/login",
		middleware.RateLimit(counter, "login", limits.LoginLimit, time.Duration(limits.LoginWindowMinute)*time.Minute, app.Logger),
		authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authRequired, authHandler.Logout)
	authGroup.GET("/me", authRequired, authHandler.Me)

	profileGroup := v1.Group("/profile", authRequired)
	profileGroup.GET("", profileHandler.Get)
	profileGroup.PUT("", profileHandler.Update)
	profileGroup.PUT("/password", profileHandler.ChangePassword)

	documentGroup := v1.Group("/documents", authRequired)
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/search", documentHandler.Search)
	documentGroup.GET("/recent", documentHandler.Recent)
	documentGroup.GET("/stats", documentHandler.Stats)
	documentGroup.POST("/bulk-delete", documentHandler.BulkDelete)
	documentGroup.POST("/bulk-update", documentHandler.BulkUpdate)
	documentGroup.POST("/bulk-move", documentHandler.BulkMove)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.PUT("/:id", documentHandler.Update)
	documentGroup.DELETE("/:id", documentHandler.Delete)
	documentGroup.POST("/:id/extract-text", textHandler.Extract)
	documentGroup.POST("/:id/ocr", textHandler.OCR)
	documentGroup.GET("/:id/text-status", textHandler.Status)
	documentGroup.GET("/:id/text-search", textHandler.Search)

	collectionGroup := v1.Group("/collections", authRequired)
	collectionGroup.POST("", collectionHandler.Create)
	collectionGroup.GET("", collectionHandler.List)
	collectionGroup.PUT("/reorder", collectionHandler.Reorder)
	collectionGroup.GET("/:id", collectionHandler.Get)
	collectionGroup.PUT("/:id", collectionHandler.Update)
	collectionGroup.DELETE("/:id", collectionHandler.Delete)

	chatGroup := v1.Group("/chat", authRequired)
	chatGroup.POST("/:documentId", chatHandler.SendMessage)
	chatGroup.POST("/:documentId/stream", chatHandler.StreamMessage)
	chatGroup.GET("/:documentId", chatHandler.GetHistory)
	chatGroup.DELETE("/:documentId", chatHandler.ClearHistory)

	noteGroup := v1.Group("/notes", authRequired)
	noteGroup.POST("", noteHandler.Create)
	noteGroup.GET("/document/:documentId", noteHandler.ListByDocument)
	noteGroup.PUT("/:id", noteHandler.Update)
	noteGroup.DELETE("/:id", noteHandler.Delete)

	progressGroup := v1.Group("/progress", authRequired)
	progressGroup.GET("", progressHandler.Recent)
	progressGroup.GET("/:documentId", progressHandler.Get)
	progressGroup.PUT("/:documentId", progressHandler.Update)

	return router
}

// corsConfig allows any origin without credentials when none is configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
