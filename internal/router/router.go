package router

import (
	"net/http"

	"claim-oracle/internal/handlers"
	"claim-oracle/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NetlifyMountPath legacy mount point of the claim routes
const NetlifyMountPath = "/.netlify/functions/server"

// AdminRoutes admin surface; the router mounts /admin only when set
type AdminRoutes struct {
	Auth       *handlers.AdminAuthHandler
	Handler    *handlers.AdminHandler
	JWTSecret  []byte
	AllowedIPs []string
}

// Options everything SetupRouter needs
type Options struct {
	Claims         *handlers.ClaimHandler
	Admin          *AdminRoutes
	CORS           middleware.CORSOptions
	IndexPath      string
	TrustedProxies []string // nil trusts no proxy headers
	Logger         *logrus.Logger
}

// SetupRouter builds the gin engine
func SetupRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.WithError(err).Warn("⚠️ Invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(opts.CORS, logger))

	// ============ Check ============
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", handlers.HealthCheckHandler)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Claim Routes ============
	index := handlers.IndexHandler(opts.IndexPath)
	r.GET("/", index)
	registerClaimRoutes(r.Group("/"), opts.Claims)

	netlify := r.Group(NetlifyMountPath)
	netlify.GET("/", handlers.IndexHandler(""))
	netlify.POST("", opts.Claims.AuthorizeHandler)
	registerClaimRoutes(netlify, opts.Claims)

	// ============ Admin Routes ============
	if opts.Admin != nil {
		localhostOnly := middleware.NewLocalhostOnly(logger, opts.Admin.AllowedIPs)
		adminAuth := middleware.NewAdminAuthMiddleware(opts.Admin.JWTSecret, logger)

		admin := r.Group("/admin", localhostOnly.Restrict())
		admin.POST("/login", opts.Admin.Auth.AdminLoginHandler)

		authed := admin.Group("", adminAuth.RequireAdminAuth())
		authed.GET("/status", opts.Admin.Handler.StatusHandler)
		authed.GET("/issuances", opts.Admin.Handler.IssuancesHandler)

		logger.WithField("allowed_ips", opts.Admin.AllowedIPs).Info("🔐 Admin API enabled")
	}

	// every other path falls back to the index page
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{
				"message": "Endpoint not found",
				"path":    c.Request.URL.Path,
			})
			return
		}
		index(c)
	})

	return r
}

func registerClaimRoutes(group *gin.RouterGroup, claims *handlers.ClaimHandler) {
	group.POST("/", claims.AuthorizeHandler)
	group.POST("/maxBN", claims.MaxBNHandler)
	group.POST("/maxBNReduced", claims.MaxBNReducedHandler)
	group.POST("/max", claims.MaxHandler)
}
