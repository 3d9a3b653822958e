package v1

import (
	"fmt"
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type RouterDeps struct {
	Config       *config.Config
	Log          *zap.Logger
	Metrics      *metrics.Collector
	Gatherer     prometheus.Gatherer
	JWT          *auth.JWTManager
	Appointments *service.AppointmentService
	Auth         *service.AuthService
	Audit        *service.AuditService
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func() error
}

func NewRouter(d RouterDeps) (*gin.Engine, error) {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Client IPs feed rate limiting and audit records, so forwarding headers
	// count only when they come from a configured proxy.
	if err := r.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("SERVER_TRUSTED_PROXIES: %w", err)
	}
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(d.Log),
		middleware.Metrics(d.Metrics),
		cors.New(cors.Config{
			AllowOrigins:     d.Config.CORS.AllowedOrigins,
			AllowMethods:     d.Config.CORS.AllowedMethods,
			AllowHeaders:     d.Config.CORS.AllowedHeaders,
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           d.Config.CORS.MaxAge,
		}),
	)

	r.GET("/healthz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": d.Config.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.NewIPRateLimiter(
		rate.Limit(d.Config.RateLimit.RequestsPerSecond),
		d.Config.RateLimit.BurstSize,
	)))

	authH := NewAuthHandler(d.Auth)
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(middleware.NewIPRateLimiter(
		rate.Limit(float64(d.Config.RateLimit.AuthRequestsPerMinute)/60),
		max(1, d.Config.RateLimit.AuthRequestsPerMinute),
	)))
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.Refresh)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(d.JWT))

	apptH := NewAppointmentHandler(d.Appointments)
	appts := protected.Group("/appointments")
	appts.GET("", apptH.List)
	appts.GET("/doctors", apptH.Doctors)
	appts.GET("/availability/:doctorId", apptH.Availability)
	appts.GET("/patient/:patientId", apptH.ListForPatient)
	appts.GET("/schedule/:doctorId", apptH.DoctorSchedule)
	appts.GET("/:id", apptH.Get)
	appts.POST("", apptH.Create)
	appts.PUT("/:id", apptH.Update)
	appts.DELETE("/:id", apptH.Cancel)

	auditH := NewAuditHandler(d.Audit)
	protected.GET("/audits", middleware.RequireRoles(domain.RoleAdmin), auditH.List)

	return r, nil
}
