package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendlive/internal/config"
	"attendlive/internal/event"
	"attendlive/internal/export"
	"attendlive/internal/geo"
	"attendlive/internal/httpmiddleware"
	"attendlive/internal/render"
	"attendlive/internal/session"
	"attendlive/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *store.Redis
	var bus event.Bus
	if cfg.BusBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		bus = event.NewRedisBus(redisClient.Client, "attendlive:events")
	} else {
		// No external worker can see an in-memory bus, so the
		// presentation renderer runs in process and keeps it drained.
		memBus := event.NewInMemory(64)
		bus = memBus
		go renderLoop(ctx, memBus)
	}

	locator := geo.New(cfg.GeoServiceURL, cfg.GeoSkip, cfg.GeoTimeout)
	if cfg.GeoSkip {
		log.Println("Geolocation provider disabled (GEO_SKIP); attendees recorded without coordinates")
	} else {
		log.Println("Geolocation provider:", cfg.GeoServiceURL)
	}

	// All session state lives in this store; it resets on restart.
	sessions := session.NewStore()
	ctrl := session.NewController(sessions, bus, locator, session.Options{
		ShareBaseURL:       cfg.ShareBaseURL,
		DefaultDurationMin: float64(cfg.DefaultDurationMin),
		DefaultMode:        cfg.DefaultMode,
		GeoTimeout:         cfg.GeoTimeout,
	})

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		busHealthy := true
		if redisClient != nil {
			busHealthy = redisClient.Healthy(c.Request.Context())
		}
		status := http.StatusOK
		if !busHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "bus": busHealthy})
	})

	v1 := r.Group("/v1")

	v1.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Course      string   `json:"course"`
			Class       string   `json:"class"`
			Date        string   `json:"date"`
			DurationMin *float64 `json:"duration_min"`
			Mode        string   `json:"mode"`
			Latitude    *float64 `json:"latitude"`
			Longitude   *float64 `json:"longitude"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		params := session.CreateParams{
			Course:      req.Course,
			Class:       req.Class,
			DurationMin: req.DurationMin,
			Mode:        req.Mode,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
		}
		// Malformed dates are coerced to now, never rejected.
		if req.Date != "" {
			if t, err := parseDate(req.Date); err == nil {
				params.Date = t
			}
		}

		c.JSON(http.StatusCreated, ctrl.Create(params))
	})

	v1.POST("/sessions/quickstart", func(c *gin.Context) {
		c.JSON(http.StatusCreated, ctrl.QuickStart())
	})

	v1.GET("/sessions", func(c *gin.Context) {
		limit := cfg.RecentLimit
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": ctrl.Recent(limit)})
	})

	v1.GET("/sessions/:id", func(c *gin.Context) {
		s, err := ctrl.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	v1.POST("/sessions/:id/activate", func(c *gin.Context) {
		s, err := ctrl.Activate(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	v1.GET("/sessions/:id/export", func(c *gin.Context) {
		s, err := ctrl.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		name, data := export.Session(s)
		serveCSV(c, name, data)
	})

	v1.GET("/live", func(c *gin.Context) {
		snap, ok := ctrl.Live()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	v1.POST("/live/pause", func(c *gin.Context) {
		if err := ctrl.Pause(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"paused": true})
	})

	v1.POST("/live/resume", func(c *gin.Context) {
		if err := ctrl.Resume(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"paused": false})
	})

	v1.POST("/live/end", func(c *gin.Context) {
		s, err := ctrl.EndActive()
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	v1.POST("/live/attendees", func(c *gin.Context) {
		var req struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a, err := ctrl.ManualAdd(c.Request.Context(), req.ID, req.Name)
		switch {
		case errors.Is(err, session.ErrMissingFields):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case errors.Is(err, session.ErrNoActiveSession):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, a)
	})

	v1.POST("/live/scan", func(c *gin.Context) {
		a, err := ctrl.SimulateScan()
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, a)
	})

	v1.GET("/export", func(c *gin.Context) {
		fromStr, toStr := c.Query("from"), c.Query("to")

		var name string
		var data []byte
		var err error
		if fromStr != "" || toStr != "" {
			var from, to time.Time
			if fromStr != "" {
				from, _ = parseDate(fromStr)
			}
			if toStr != "" {
				to, _ = parseDate(toStr)
			}
			name, data, err = export.Range(ctrl.Sessions(), from, to)
		} else {
			name, data, err = export.All(ctrl.Sessions(), time.Now())
		}

		switch {
		case errors.Is(err, export.ErrMissingBound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "select a from and to date"})
			return
		case errors.Is(err, export.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "no attendees yet"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		serveCSV(c, name, data)
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// renderLoop drains the in-memory bus into the presentation renderer.
func renderLoop(ctx context.Context, bus event.Bus) {
	messages, err := bus.Consume(ctx)
	if err != nil {
		log.Printf("bus consume init failed: %v", err)
		return
	}
	r := render.New()
	for msg := range messages {
		var p session.EventPayload
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			log.Printf("bad event body: %v", err)
			continue
		}
		r.Apply(msg.Type, p)
	}
}

func serveCSV(c *gin.Context, name string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// parseDate accepts RFC3339 timestamps or bare dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
