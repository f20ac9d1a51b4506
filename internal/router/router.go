package router

import (
	"net/http"
	"time"

	"recon-ledger/internal/config"
	"recon-ledger/internal/handler"
	"recon-ledger/internal/ledger"
	"recon-ledger/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRouter builds the loopback API over app. cfg.JWT.Secret must be set.
func SetupRouter(cfg *config.Config, app *ledger.App, log zerolog.Logger) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	// 本地前端跨域
	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: false,
			MaxAge:           time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "unlocked": app.Unlocked()})
	})

	// ====== API ======
	api := r.Group("/api")

	// 初始化/解锁接口（不需要鉴权）
	authHandler := handler.NewAuthHandler(app, cfg.JWT)
	api.POST("/onboard", authHandler.Onboard)
	api.POST("/unlock", authHandler.Unlock)
	api.POST("/recover", authHandler.Recover)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret, app))

	protected.GET("/me", handler.GetMe)
	protected.POST("/lock", authHandler.Lock)
	protected.POST("/profile", handler.UpdateProfile(app))

	entryHandler := handler.NewEntryHandler(app)
	protected.GET("/ledger", entryHandler.Ledger)
	protected.POST("/transactions", entryHandler.CreateTransaction)
	protected.PUT("/transactions/:id", entryHandler.UpdateTransaction)
	protected.DELETE("/transactions/:id", entryHandler.DeleteTransaction)
	protected.GET("/categories", entryHandler.ListCategories)
	protected.POST("/categories", entryHandler.CreateCategory)
	protected.DELETE("/categories/:id", entryHandler.DeleteCategory)

	importExportHandler := handler.NewImportExportHandler(app, cfg.Backup.MaxImportBytes)
	protected.POST("/import/csv", importExportHandler.ImportStatement)
	protected.POST("/import/confirm", importExportHandler.ConfirmImport)
	protected.POST("/reconcile/review", importExportHandler.ReconcileReview)
	protected.POST("/reconcile/confirm", importExportHandler.ReconcileConfirm)
	protected.GET("/export/csv", importExportHandler.ExportCSV)
	protected.GET("/export/xlsx", importExportHandler.ExportXLSX)

	backupHandler := handler.NewBackupHandler(app, cfg.Backup.Dir)
	protected.POST("/store/export", backupHandler.ExportStore)
	protected.POST("/store/import", backupHandler.ImportStore)
	protected.GET("/store/backups", backupHandler.ListBackups)

	return r
}
