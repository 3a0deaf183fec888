package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/auth"
	"zns-gateway/internal/metrics"
)

const (
	envKey       = "env"
	requestIDKey = "request_id"
)

// AuthRequired validates the bearer JWT and stores the caller's auth.Env.
// Browsers cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted as well.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && c.Query("access_token") != "" {
			authHeader = "Bearer " + c.Query("access_token")
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		env, err := auth.ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(envKey, env)
		c.Next()
	}
}

// PartnerRequired rejects tokens that carry no partner, used by the portal.
func PartnerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Env(c).PartnerID == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Portal access requires a partner token"})
			return
		}
		c.Next()
	}
}

// Env returns the authenticated caller. Unauthenticated routes get the zero Env.
func Env(c *gin.Context) auth.Env {
	if v, ok := c.Get(envKey); ok {
		if env, ok := v.(auth.Env); ok {
			return env
		}
	}
	return auth.Env{}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func Logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Debug("request handled")
		}
	}
}

func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestCount.WithLabelValues(path, c.Request.Method, status).Inc()
		metrics.RequestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
