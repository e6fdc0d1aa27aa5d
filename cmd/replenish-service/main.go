package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/replenish_backend/airtable"
	"bitbucket.org/mmdatafocus/replenish_backend/config"
	"bitbucket.org/mmdatafocus/replenish_backend/export"
	"bitbucket.org/mmdatafocus/replenish_backend/models"
	"bitbucket.org/mmdatafocus/replenish_backend/pipeline"
	"bitbucket.org/mmdatafocus/replenish_backend/shiphero"
	"bitbucket.org/mmdatafocus/replenish_backend/shopify"
	"bitbucket.org/mmdatafocus/replenish_backend/utils"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("REPLENISH_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	worker, err := buildWorker(sigCtx)
	if err != nil {
		logger.WithError(err).Fatal("worker could not be wired")
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")

	r.Use(cors.New(corsConfig))
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api", staticTokenGuard())
	api.POST("/pipeline/run", worker.TriggerHandler())
	api.GET("/pipeline/runs", pipeline.HistoryHandler())
	api.GET("/pipeline/runs/:id", pipeline.RunDetailHandler())

	// Pub/Sub push endpoint for queued runs.
	r.POST("/pubsub/replenish", worker.PubSubPushHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	if config.HasDatabase() {
		if err := config.ConnectDatabase(); err != nil {
			logger.WithError(err).Fatal("database connection failed")
		}
		if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
			models.MigrateTable()
		}
	}
	if config.HasRedis() {
		if err := config.ConnectRedis(); err != nil {
			logger.WithError(err).Fatal("redis connection failed")
		}
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func buildWorker(ctx context.Context) (*pipeline.Worker, error) {
	warehouse := shiphero.NewClientFromEnv()
	storefront := shopify.NewClient()
	records, err := airtable.NewClient()
	if err != nil {
		return nil, err
	}

	var sheets *export.SheetsExporter
	if config.EnvString("SHEETS_SPREADSHEET_ID", "") != "" {
		sheets, err = export.NewSheetsExporter(ctx)
		if err != nil {
			return nil, err
		}
	}
	return pipeline.NewWorker(warehouse, storefront, records, sheets), nil
}

// staticTokenGuard protects the API with a shared bearer token. Without
// SERVICE_AUTH_TOKEN configured the API is open, which is only acceptable
// behind an authenticating proxy.
func staticTokenGuard() gin.HandlerFunc {
	expected := strings.TrimSpace(os.Getenv("SERVICE_AUTH_TOKEN"))
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") && strings.TrimSpace(auth[7:]) == expected {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
