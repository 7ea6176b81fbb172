package web

import (
	"embed"
	"html/template"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"BookPublisher/internal/infrastructure/storage"
	"BookPublisher/internal/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

// RouterConfig carries the use cases the UI drives.
type RouterConfig struct {
	Pipeline  *usecase.Pipeline
	Finalizer *usecase.Finalizer
	Archive   *usecase.Archive
	Store     *storage.FileStore
	Logger    *slog.Logger
}

// NewRouter builds the gin engine with every page and download route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))
	router.MaxMultipartMemory = 8 << 20

	h := &Handler{
		pipeline:  cfg.Pipeline,
		finalizer: cfg.Finalizer,
		archive:   cfg.Archive,
		store:     cfg.Store,
		logger:    cfg.Logger,
	}

	router.GET("/healthz", HealthCheck)

	// Pipeline
	router.GET("/", h.PipelinePage)
	pipeline := router.Group("/pipeline")
	{
		pipeline.POST("/scrape", h.Scrape)
		pipeline.POST("/write", h.Write)
		pipeline.POST("/review", h.Review)
	}

	// Editor
	router.GET("/editor", h.EditorPage)
	router.POST("/editor/upload", h.EditorUpload)
	router.POST("/editor/save", h.EditorSave)

	// Archive
	router.GET("/archive", h.ArchivePage)
	router.POST("/archive/upload", h.ArchiveUpload)
	router.GET("/archive/chapters/:id", h.ArchiveChapter)

	router.GET("/artifacts/:stage/:id", h.Artifact)

	return router
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
