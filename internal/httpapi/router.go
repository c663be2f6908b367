package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rollcall/internal/account"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/classroom"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/metrics"
)

// Config wires the router.
type Config struct {
	Accounts   *account.Service
	Classes    *classroom.Service
	Attendance *attendance.Service

	JWTSigningKey string
	JWTIssuer     string

	// SubmitLimiter throttles attendance submissions per client IP; nil disables it.
	SubmitLimiter httpmiddleware.Limiter
	CORSOrigins   []string
	// MaxUploadBytes bounds submission bodies, 10 MiB when zero.
	MaxUploadBytes int64

	HealthChecks []HealthCheck
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	Logger       zerolog.Logger
}

// NewRouter builds the gin engine with every route.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	h := &Handler{
		accounts:   cfg.Accounts,
		classes:    cfg.Classes,
		attendance: cfg.Attendance,
		checks:     cfg.HealthChecks,
		maxUpload:  cfg.MaxUploadBytes,
		log:        cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, "/healthz", "/metrics"))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.GinMiddleware())
	}

	r.GET("/healthz", h.Healthz)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authn := r.Group("/auth")
	authn.POST("/register", h.Register)
	authn.POST("/login", h.Login)
	authn.GET("/verify", h.Verify)
	authn.POST("/resend-verification", h.ResendVerification)

	r.GET("/sessions/:id", h.GetSession)
	r.GET("/sessions/:id/qr", h.SessionQR)

	submit := []gin.HandlerFunc{h.SubmitAttendance}
	if cfg.SubmitLimiter != nil {
		submit = append([]gin.HandlerFunc{httpmiddleware.RateLimit(cfg.SubmitLimiter, cfg.Logger)}, submit...)
	}
	r.POST("/attendance/submit", submit...)

	teacher := r.Group("/", auth.TeacherAuth(cfg.JWTSigningKey, cfg.JWTIssuer))
	teacher.GET("/auth/me", h.Me)

	teacher.POST("/classes", h.CreateClass)
	teacher.GET("/classes", h.ListClasses)
	teacher.GET("/classes/:id", h.GetClass)
	teacher.PUT("/classes/:id", h.UpdateClass)
	teacher.DELETE("/classes/:id", h.DeleteClass)
	teacher.GET("/classes/:id/students", h.ListStudents)
	teacher.POST("/classes/:id/students", h.RegisterStudent)
	teacher.GET("/classes/:id/report", h.ClassReport)
	teacher.GET("/classes/:id/sessions", h.ListSessions)

	teacher.POST("/sessions", h.CreateSession)
	teacher.POST("/sessions/:id/end", h.EndSession)
	teacher.GET("/sessions/:id/attendance", h.SessionAttendance)
	teacher.GET("/sessions/:id/summary", h.SessionSummary)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, Envelope{Message: "Route not found", Error: "not_found"})
	})
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		if len(origins) == 0 {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = origins
		}
	}
	return cors.New(cfg)
}
