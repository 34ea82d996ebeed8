package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"paper-shelf/config"
	"paper-shelf/models"
	"paper-shelf/notion"
	"paper-shelf/providers/arxiv"
	"paper-shelf/services"
	"paper-shelf/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	papersAddedCounter prometheus.Counter
	syncRunsCounter    prometheus.Counter
)

func init() {
	papersAddedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papers_added_total",
			Help: "Total number of papers added to the library.",
		},
	)
	syncRunsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notion_sync_runs_total",
			Help: "Total number of completed Notion sync runs.",
		},
	)
	prometheus.MustRegister(papersAddedCounter, syncRunsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APIKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	store := storage.NewStore(cfg, logging)

	var s3Client *awss3.Client
	if cfg.S3Enabled() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		logging.Info("S3 audio mirror enabled", zap.String("bucket", cfg.S3Bucket))
	}

	pipeline := services.NewPipelineService(cfg, store, s3Client, logging)

	var syncService *services.SyncService
	if cfg.NotionEnabled() {
		notionClient := notion.NewClient(cfg, logging)
		syncService = services.NewSyncService(cfg, store, notionClient, pipeline.Arxiv, logging)
		logging.Info("Notion sync enabled", zap.String("database_id", cfg.NotionDatabaseID))
	} else {
		logging.Info("Notion sync disabled (NOTION_TOKEN / NOTION_DATABASE_ID not set)")
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Feed und Audio sind öffentlich: Podcast-Clients schicken keine Header.
	setupPublicRoutes(router, store, pipeline.Feed, logging)

	api := router.Group("/api")
	api.Use(apiKeyAuthMiddleware(cfg))
	setupPaperRoutes(api, store, pipeline.Feed, logging)
	setupIngestRoutes(api, pipeline, logging)
	setupSyncRoutes(api, syncService, logging)
	setupFeedRoutes(api, pipeline.Feed)

	// Setup Cron
	if cfg.SyncCronSchedule != "" && syncService != nil {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.SyncCronSchedule, func() {
			logging.Info("Running scheduled Notion sync...")
			report, err := syncService.Run(context.Background(), services.SyncOptions{})
			if err != nil {
				logging.Error("Scheduled sync failed", zap.Error(err))
				return
			}
			syncRunsCounter.Inc()
			if report.HasChanges() {
				if err := pipeline.Feed.Write(); err != nil {
					logging.Warn("Feed rebuild after sync failed", zap.Error(err))
				}
			}
		})
		if err != nil {
			logging.Fatal("Invalid SYNC_CRON_SCHEDULE", zap.Error(err))
		}
		cronScheduler.Start()
		logging.Info("Sync cron scheduled", zap.String("schedule", cfg.SyncCronSchedule))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Aufnahme eines Papers wartet auf Modell und TTS, das dauert Minuten.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupPublicRoutes(router *gin.Engine, store *storage.Store, feed *services.FeedService, log *zap.Logger) {
	router.GET("/feed.xml", func(c *gin.Context) {
		data, err := feed.Generate()
		if err != nil {
			log.Error("Feed generation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feed error"})
			return
		}
		c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", data)
	})

	router.GET("/audio/:file", func(c *gin.Context) {
		file := c.Param("file")
		id := strings.TrimSuffix(file, ".mp3")
		if id == file || strings.ContainsAny(id, "/\\") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audio file name"})
			return
		}
		paper, err := store.Get(id)
		if err != nil || !paper.HasAudio {
			c.JSON(http.StatusNotFound, gin.H{"error": "audio not found"})
			return
		}
		c.Header("Content-Type", "audio/mpeg")
		c.File(store.AudioPath(id))
	})
}

func setupPaperRoutes(rg *gin.RouterGroup, store *storage.Store, feed *services.FeedService, log *zap.Logger) {
	rg.GET("/papers", func(c *gin.Context) {
		papers, err := store.List(c.DefaultQuery("sort", "date_added"))
		if err != nil {
			log.Error("Index read failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "index error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.GET("/papers/:id", func(c *gin.Context) {
		paper, err := store.Get(c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.GET("/papers/:id/summary", func(c *gin.Context) {
		text, err := store.LoadSummary(c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(text))
	})

	rg.DELETE("/papers/:id", func(c *gin.Context) {
		if err := store.Delete(c.Param("id")); err != nil {
			respondStoreError(c, err)
			return
		}
		if err := feed.Write(); err != nil {
			log.Warn("Feed rebuild after delete failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	})

	rg.POST("/papers/:id/tags", func(c *gin.Context) {
		var req struct {
			Tags []string `json:"tags" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		paper, err := store.AddTags(c.Param("id"), req.Tags)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.DELETE("/papers/:id/tags/:tag", func(c *gin.Context) {
		paper, err := store.RemoveTag(c.Param("id"), c.Param("tag"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.PUT("/papers/:id/status", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		status, ok := models.ParseReadingStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown reading status"})
			return
		}
		paper, err := store.SetReadingStatus(c.Param("id"), status)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.POST("/papers/:id/archive", func(c *gin.Context) {
		var req struct {
			Archived *bool `json:"archived" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		paper, err := store.SetArchived(c.Param("id"), *req.Archived, time.Now().UTC())
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if err := feed.Write(); err != nil {
			log.Warn("Feed rebuild after archive failed", zap.Error(err))
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupIngestRoutes(rg *gin.RouterGroup, pipeline *services.PipelineService, log *zap.Logger) {
	ingest := func(forceSkipSummary bool) gin.HandlerFunc {
		return func(c *gin.Context) {
			var req struct {
				Input       string   `json:"input" binding:"required"`
				Tags        []string `json:"tags"`
				SkipSummary bool     `json:"skip_summary"`
				SkipAudio   bool     `json:"skip_audio"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
			opts := services.AddOptions{
				Tags:        req.Tags,
				SkipSummary: req.SkipSummary || forceSkipSummary,
				SkipAudio:   req.SkipAudio,
			}

			var (
				paper *models.Paper
				err   error
			)
			if _, ok := arxiv.ParseInput(req.Input); ok {
				paper, err = pipeline.AddArxiv(c.Request.Context(), req.Input, opts)
			} else {
				paper, err = pipeline.AddWeb(c.Request.Context(), req.Input, opts)
			}
			if err != nil {
				var notFound *arxiv.NotFoundError
				if errors.As(err, &notFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
					return
				}
				log.Error("Paper ingest failed", zap.String("input", req.Input), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			papersAddedCounter.Inc()
			c.JSON(http.StatusCreated, paper)
		}
	}

	rg.POST("/papers", ingest(false))
	// Import: nur Metadaten und PDF, keine Summary.
	rg.POST("/papers/import", ingest(true))

	rg.POST("/papers/:id/regenerate", func(c *gin.Context) {
		paper, err := pipeline.Regenerate(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.POST("/papers/:id/audio", func(c *gin.Context) {
		if err := pipeline.GenerateAudio(c.Request.Context(), c.Param("id")); err != nil {
			respondStoreError(c, err)
			return
		}
		if err := pipeline.Feed.Write(); err != nil {
			log.Warn("Feed rebuild after audio failed", zap.Error(err))
		}
		paper, err := pipeline.Store.Get(c.Param("id"))
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})
}

func setupSyncRoutes(rg *gin.RouterGroup, syncService *services.SyncService, log *zap.Logger) {
	runSync := func(c *gin.Context, dryRun bool) {
		if syncService == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Notion sync is not configured"})
			return
		}
		report, err := syncService.Run(c.Request.Context(), services.SyncOptions{
			DryRun: dryRun,
			Paper:  c.Query("paper"),
		})
		if err != nil {
			log.Error("Sync run failed", zap.Bool("dry_run", dryRun), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if !dryRun {
			syncRunsCounter.Inc()
		}
		c.JSON(http.StatusOK, report)
	}

	rg.GET("/notion/sync/preview", func(c *gin.Context) { runSync(c, true) })
	rg.POST("/notion/sync", func(c *gin.Context) { runSync(c, false) })
}

func setupFeedRoutes(rg *gin.RouterGroup, feed *services.FeedService) {
	rg.POST("/feed/regenerate", func(c *gin.Context) {
		if err := feed.Write(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"written": feed.Config.FeedPath()})
	})
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
