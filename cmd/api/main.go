package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facemark/internal/attendance"
	"facemark/internal/auth"
	"facemark/internal/config"
	"facemark/internal/faceclient"
	"facemark/internal/geofence"
	"facemark/internal/httpmiddleware"
	"facemark/internal/metrics"
	"facemark/internal/notify"
	"facemark/internal/queue"
	"facemark/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		if db == nil {
			return fmt.Errorf("db open failed: %w", err)
		}
		// Pool opened but the ping failed; requests will retry lazily.
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "facemark:notices")
	}

	boundary := geofence.Boundary{
		Center:   geofence.Point{Lat: cfg.CampusLat, Lon: cfg.CampusLon},
		RadiusKm: cfg.CampusRadiusKm,
	}
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	repo := attendance.NewRepository(db.Client)
	dispatcher := notify.NewDispatcher(q)
	coord := attendance.NewCoordinator(boundary, face,
		cfg.FaceCollection, cfg.FaceMatchThreshold, cfg.FaceMaxMatches,
		repo, repo, cfg.CooldownWindow, dispatcher)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/stations/register", func(c *gin.Context) {
		var req struct {
			StationID string `json:"station_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repo.UpsertStation(c.Request.Context(), req.StationID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "station register failed"})
			return
		}

		tokens, err := auth.Issue(req.StationID, "station", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), req.StationID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StationAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Marking endpoint: multipart body with the captured face image and the
	// station's geolocation as decimal strings.
	authGroup.POST("/attendance", func(c *gin.Context) {
		latStr := c.PostForm("lat")
		lonStr := c.PostForm("lon")
		if latStr == "" || lonStr == "" {
			metrics.Markings.WithLabelValues("validation_error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "geolocation data is missing"})
			return
		}
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lon, lonErr := strconv.ParseFloat(lonStr, 64)
		if latErr != nil || lonErr != nil {
			metrics.Markings.WithLabelValues("validation_error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid geolocation data"})
			return
		}

		file, _, err := c.Request.FormFile("face_image")
		if err != nil {
			metrics.Markings.WithLabelValues("validation_error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "face image is required"})
			return
		}
		defer file.Close()
		image, err := io.ReadAll(file)
		if err != nil || len(image) == 0 {
			metrics.Markings.WithLabelValues("validation_error").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "uploaded file is empty"})
			return
		}

		result, err := coord.Mark(c.Request.Context(), image, geofence.Point{Lat: lat, Lon: lon})
		if err != nil {
			outcome, status, msg := markFailure(err)
			metrics.Markings.WithLabelValues(outcome).Inc()
			c.JSON(status, gin.H{"error": outcome, "message": msg})
			return
		}

		metrics.Markings.WithLabelValues("recorded").Inc()
		c.JSON(http.StatusOK, gin.H{
			"message":  "attendance marked",
			"recorded": result.Recorded,
			"details":  result.Details,
		})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		identity := c.Query("identity")
		date := c.Query("date")
		limit, offset := 50, 0
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		if v := c.Query("offset"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				offset = parsed
			}
		}
		records, err := repo.ListRecords(c.Request.Context(), identity, date, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.GET("/identities/:id", func(c *gin.Context) {
		person, err := repo.Person(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if person == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "identity not enrolled"})
			return
		}
		c.JSON(http.StatusOK, person)
	})

	authGroup.PUT("/identities/:id", func(c *gin.Context) {
		var req struct {
			Name  *string `json:"name"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := repo.UpsertPerson(c.Request.Context(), c.Param("id"), req.Name, req.Phone); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Absentee sweep: everyone enrolled without a Present record for the
	// date gets an Absent entry. Re-running is a no-op.
	authGroup.POST("/attendance/sweep", func(c *gin.Context) {
		date := c.Query("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		marked, err := repo.MarkAbsentees(c.Request.Context(), date, time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date, "marked_absent": marked})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

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

// markFailure maps a coordinator failure to its metric label, HTTP status,
// and client-facing message. Clients retry on 500s, never on 4xx.
func markFailure(err error) (string, int, string) {
	switch {
	case errors.Is(err, attendance.ErrValidation):
		return "validation_error", http.StatusBadRequest, err.Error()
	case errors.Is(err, attendance.ErrGeofence):
		return "geofence_violation", http.StatusForbidden, "you are not on campus, attendance cannot be marked"
	case errors.Is(err, attendance.ErrNoFaceMatch):
		return "no_face_match", http.StatusUnauthorized, "no registered faces matched in the image"
	case errors.Is(err, attendance.ErrDuplicateWindow):
		return "duplicate_window", http.StatusForbidden, "you have already marked attendance, please try again after 1 hour"
	case errors.Is(err, attendance.ErrMatchingService):
		return "matching_service_error", http.StatusInternalServerError, "error during face search, please try again"
	case errors.Is(err, attendance.ErrPersistence):
		return "persistence_error", http.StatusInternalServerError, "error during attendance marking"
	default:
		return "internal_error", http.StatusInternalServerError, "error during attendance marking"
	}
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
