package main

import (
	"context"
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

	"github.com/AntrikshVats/HostelManagement/internal/analytics"
	"github.com/AntrikshVats/HostelManagement/internal/attendance"
	"github.com/AntrikshVats/HostelManagement/internal/auth"
	"github.com/AntrikshVats/HostelManagement/internal/config"
	"github.com/AntrikshVats/HostelManagement/internal/faceclient"
	"github.com/AntrikshVats/HostelManagement/internal/httpmiddleware"
	"github.com/AntrikshVats/HostelManagement/internal/identity"
	"github.com/AntrikshVats/HostelManagement/internal/store"
	"github.com/AntrikshVats/HostelManagement/internal/token"
	"github.com/AntrikshVats/HostelManagement/internal/violation"
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
			return err
		}
		log.Printf("warning: db not reachable: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	presence := store.NewPresenceCache(redisClient.Client, 0)
	face := faceclient.New(cfg.FaceServiceURL)

	loc := cfg.Location()
	curfewHour, curfewMinute := cfg.Curfew()

	identities := identity.NewRepository(db.Client)
	tokens := token.NewService(token.NewRepository(db.Client), cfg.TokenTTL)
	violations := violation.NewRepository(db.Client)
	detector := violation.NewDetector(violations, curfewHour, curfewMinute, loc)
	attRepo := attendance.NewRepository(db.Client, loc.String())
	att := attendance.NewService(attRepo, tokens, detector, presence, cfg.ScanCooldown, cfg.GateLocation, loc)
	analyzer := analytics.NewAnalyzer(analytics.NewRepository(db.Client, loc.String()), curfewHour, loc)

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
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := identities.RegisterDevice(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		pair, err := auth.Issue(req.DeviceID, auth.RoleDevice, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = identities.SaveRefreshToken(c.Request.Context(), req.DeviceID, pair.RefreshToken, pair.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.AccessExp.Unix(),
		})
	})

	// Email/password login for students and staff. Both account kinds share
	// one endpoint; the issued role decides what the token can reach.
	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var (
			who  identity.Identity
			hash string
			role string
		)
		student, studentHash, err := identities.GetStudentByEmail(c.Request.Context(), req.Email)
		switch {
		case err == nil:
			who, hash, role = *student, studentHash, auth.RoleStudent
		case errors.Is(err, identity.ErrNotFound):
			emp, empHash, empErr := identities.GetEmployeeByEmail(c.Request.Context(), req.Email)
			if errors.Is(empErr, identity.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			if empErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
				return
			}
			who, hash, role = *emp, empHash, emp.Role()
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}

		if !auth.CheckPassword(hash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		pair, err := auth.Issue(who.ID(), role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = identities.SaveRefreshToken(c.Request.Context(), who.ID(), pair.RefreshToken, pair.RefreshExp)

		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"expires_at":    pair.AccessExp.Unix(),
			"subject":       who.ID(),
			"name":          who.Name(),
			"role":          role,
		})
	})

	authGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer))

	// Issue a fresh single-use presence token for a student. The value goes
	// into the QR code the student shows at the gate.
	authGroup.POST("/attendance/qr", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if _, err := identities.GetStudent(c.Request.Context(), req.StudentID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}

		tok, err := tokens.Issue(c.Request.Context(), req.StudentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"token": tok.Value, "expires_at": tok.ExpiresAt})
	})

	authGroup.POST("/attendance/scan", func(c *gin.Context) {
		var req struct {
			Token string `json:"token" binding:"required"`
			Type  string `json:"type"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		explicit, err := parseDirection(req.Type)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		evt, err := att.ProcessScan(c.Request.Context(), req.Token, explicit)
		if err != nil {
			writeScanError(c, err)
			return
		}
		c.JSON(http.StatusCreated, scanResponse(evt))
	})

	// Face-based scan: the external matcher identifies the student, then the
	// event is recorded through the same path as a QR scan.
	authGroup.POST("/attendance/face-scan", func(c *gin.Context) {
		file, header, err := c.Request.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo field required"})
			return
		}
		defer file.Close()

		match, err := face.Match(c.Request.Context(), file, header.Filename)
		if err != nil {
			log.Printf("face match failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "face service unavailable"})
			return
		}
		if !match.Matched {
			c.JSON(http.StatusNotFound, gin.H{"error": "no matching student"})
			return
		}

		claims := auth.ClaimsFrom(c)
		var verifiedBy *string
		if claims.Subject != "" {
			verifiedBy = &claims.Subject
		}

		evt, err := att.ProcessVerifiedScan(c.Request.Context(), match.StudentID, nil, "Face Scan", verifiedBy)
		if err != nil {
			writeScanError(c, err)
			return
		}
		c.JSON(http.StatusCreated, scanResponse(evt))
	})

	authGroup.GET("/attendance/students/:id", func(c *gin.Context) {
		start, err := parseDateQuery(c, "start_date")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		end, err := parseDateQuery(c, "end_date")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		events, err := att.History(c.Request.Context(), c.Param("id"), start, end)
		if err != nil {
			if errors.Is(err, attendance.ErrInvalidRange) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	})

	authGroup.GET("/attendance/students/:id/stats", func(c *gin.Context) {
		now := time.Now().In(loc)
		year := intQuery(c, "year", now.Year())
		month := intQuery(c, "month", int(now.Month()))

		stats, err := att.MonthlyStats(c.Request.Context(), c.Param("id"), year, month)
		if err != nil {
			if errors.Is(err, attendance.ErrInvalidMonth) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	staff := authGroup.Group("", auth.RequireRole(auth.RoleWarden, auth.RoleAdmin))

	staff.GET("/attendance/daily/:date", func(c *gin.Context) {
		date, err := time.ParseInLocation("2006-01-02", c.Param("date"), loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		roster, err := att.DailyRoster(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": roster})
	})

	staff.GET("/attendance/status/:status", func(c *gin.Context) {
		dir, err := parseDirection(c.Param("status"))
		if err != nil || dir == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be IN or OUT"})
			return
		}
		students, err := attRepo.StudentsByStatus(c.Request.Context(), *dir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	staff.POST("/violations/sweep", func(c *gin.Context) {
		results, err := att.RunCurfewSweep(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"flagged": results})
	})

	staff.GET("/violations", func(c *gin.Context) {
		open, err := violations.ListUnresolved(c.Request.Context(), intQuery(c, "limit", 50))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"violations": open})
	})

	staff.POST("/violations/:id/resolve", func(c *gin.Context) {
		claims := auth.ClaimsFrom(c)
		if err := violations.Resolve(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "violation not found or already resolved"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"resolved": true})
	})

	staff.GET("/analytics/anomalies", func(c *gin.Context) {
		anomalies, err := analyzer.DetectAnomalies(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"anomalies": anomalies})
	})

	staff.GET("/analytics/frequent-absence", func(c *gin.Context) {
		res, err := analyzer.FrequentAbsentees(c.Request.Context(), intQuery(c, "days", 30), intQuery(c, "threshold", 10))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": res})
	})

	staff.GET("/analytics/late-out", func(c *gin.Context) {
		res, err := analyzer.LateOutOffenders(c.Request.Context(), intQuery(c, "days", 30), intQuery(c, "min_count", 3))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": res})
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func scanResponse(evt attendance.Event) gin.H {
	return gin.H{
		"event_id":   evt.ID,
		"student_id": evt.StudentID,
		"timestamp":  evt.Timestamp,
		"type":       evt.Direction,
		"location":   evt.Location,
	}
}

// writeScanError maps facade errors onto HTTP responses. All token failures
// collapse into one generic rejection.
func writeScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_or_expired_token"})
	case errors.Is(err, attendance.ErrScanTooSoon):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attendance record failed"})
	}
}

func parseDirection(s string) (*attendance.Direction, error) {
	switch s {
	case "":
		return nil, nil
	case string(attendance.DirectionIn):
		d := attendance.DirectionIn
		return &d, nil
	case string(attendance.DirectionOut):
		d := attendance.DirectionOut
		return &d, nil
	default:
		return nil, errors.New("type must be IN or OUT")
	}
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	val := c.Query(name)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, errors.New(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if v := c.Query(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
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
