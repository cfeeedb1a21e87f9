// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ============================================================================
// Authentication
// ============================================================================

const ctxAuthenticated = "sermonchat.authenticated"

// Auth marks requests as authenticated. With an empty token every request is
// authenticated. Otherwise a matching bearer token is required; a wrong
// token is always rejected, and a missing one is rejected only when required
// is set.
func Auth(token string, required bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Set(ctxAuthenticated, true)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				logger.Debug("Auth denied", zap.String("ip", c.ClientIP()), zap.String("reason", "missing_auth_header"))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
				return
			}
			c.Next()
			return
		}

		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !ValidateBearerToken(presented, token) {
			logger.Debug("Auth denied", zap.String("ip", c.ClientIP()), zap.String("reason", "invalid_token"))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			return
		}

		c.Set(ctxAuthenticated, true)
		c.Next()
	}
}

// isAuthenticated reports whether Auth accepted the caller.
func isAuthenticated(c *gin.Context) bool {
	return c.GetBool(ctxAuthenticated)
}

// ValidateBearerToken compares tokens in constant time. Empty tokens never
// match.
func ValidateBearerToken(token, expected string) bool {
	if token == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// ============================================================================
// Rate Limiting
// ============================================================================

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter allows rps requests per second per client with the given
// burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweepLocked drops idle clients at most once per TTL.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < idleLimiterTTL {
		return
	}
	rl.lastSweep = now
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(rl.clients, ip)
		}
	}
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// ============================================================================
// Logging and Recovery
// ============================================================================

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Handler panic",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// SecurityHeaders sets conservative response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
