package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"project_supportbot/internal/entities"
	"project_supportbot/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"

	// client limiters idle this long are dropped on the next sweep
	clientIdleTTL = 10 * time.Minute
	sweepEvery    = time.Minute
)

type Middleware struct {
	jwtSecret    []byte
	rateLimiters map[string]*clientLimiter
	lastSweep    time.Time
	now          func() time.Time
	mu           sync.Mutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMiddleware(secret string) *Middleware {
	return &Middleware{
		jwtSecret:    []byte(secret),
		rateLimiters: make(map[string]*clientLimiter),
		lastSweep:    time.Now(),
		now:          time.Now,
	}
}

func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.jwtSecret) == 0 {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access is not configured"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.jwtSecret, nil
		}, jwt.WithExpirationRequired())

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("username", claims["sub"])
			c.Set("role", claims["role"])
		}

		c.Next()
	}
}

// AdminRequired must follow AuthRequired
func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if r, ok := role.(string); !ok || r != entities.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// RateLimitPerClient limits requests per client IP.
// Limiters of clients that went quiet are swept at most once a minute.
func (m *Middleware) RateLimitPerClient(r rate.Limit, b int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		m.mu.Lock()
		now := m.now()
		if now.Sub(m.lastSweep) >= sweepEvery {
			m.sweepLocked(now)
		}
		cl, exists := m.rateLimiters[key]
		if !exists {
			cl = &clientLimiter{limiter: rate.NewLimiter(r, b)}
			m.rateLimiters[key] = cl
		}
		cl.lastSeen = now
		allowed := cl.limiter.AllowN(now, 1)
		m.mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// TrackedClients reports how many client limiters are held
func (m *Middleware) TrackedClients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rateLimiters)
}

func (m *Middleware) sweepLocked(now time.Time) {
	for key, cl := range m.rateLimiters {
		if now.Sub(cl.lastSeen) > clientIdleTTL {
			delete(m.rateLimiters, key)
		}
	}
	m.lastSweep = now
}

// CORSMiddleware allows Cross-Origin requests
func (m *Middleware) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID tags each request with an ID and a logger carrying it
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Writer.Header().Set("Content-Security-Policy", "default-src 'self'")

		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
