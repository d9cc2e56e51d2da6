package middleware

import (
	"net"
	"net/url"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines CORS configuration options for the view server.
type CORSConfig struct {
	// AllowOrigins lists extra origins accepted besides loopback ones.
	AllowOrigins  []string
	AllowLoopback bool
	AllowMethods  []string
	AllowHeaders  []string
	MaxAge        time.Duration
}

// DefaultCORSConfig only admits pages served from the local machine.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowLoopback: true,
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Accept-Encoding",
			"Origin",
			"Cache-Control",
		},
		MaxAge: 12 * time.Hour,
	}
}

// CORS creates a CORS middleware with the provided configuration.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if slices.Contains(cfg.AllowOrigins, origin) {
				return true
			}
			return cfg.AllowLoopback && IsLoopbackOrigin(origin)
		},
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: cfg.AllowHeaders,
		MaxAge:       cfg.MaxAge,
	})
}

// IsLoopbackOrigin reports whether origin names localhost or a loopback IP.
func IsLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
