package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/middleware"
)

const (
	ctxKeyRequestID = "request_id"
	ctxKeyIdentity  = "identity"
)

func recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Str("error", fmt.Sprintf("%v", err)).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, detail("Internal server error"))
			}
		}()
		c.Next()
	}
}

// requestContext propagates the request id and client IP into the request
// context so audit events carry them.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(middleware.RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(middleware.RequestIDHeader, id)

		ctx := astaauth.WithRequestID(c.Request.Context(), id)
		ctx = astaauth.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Str("request_id", c.GetString(ctxKeyRequestID)).
			Msg("request completed")
	}
}

// requireAuth admits only requests the gate allows. The rejection reason
// goes to the log; the client always sees the same 401.
func requireAuth(svc Service, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := svc.Check(c.Request.Context(), c.GetHeader("Authorization"))
		if res.Allowed() {
			c.Set(ctxKeyIdentity, res.Identity)
			c.Request = c.Request.WithContext(astaauth.WithIdentity(c.Request.Context(), res.Identity))
			c.Next()
			return
		}

		status := middleware.StatusFor(res.Outcome)
		switch status {
		case http.StatusUnauthorized:
			log.Debug().Str("reason", res.Kind.String()).Str("request_id", c.GetString(ctxKeyRequestID)).Msg("gate rejected request")
			c.Header("WWW-Authenticate", middleware.Challenge)
			c.AbortWithStatusJSON(status, detail("Could not validate credentials"))
		case http.StatusServiceUnavailable:
			log.Error().Err(res.Err).Msg("gate: credential store unavailable")
			c.AbortWithStatusJSON(status, detail("Service unavailable"))
		default:
			log.Error().Err(res.Err).Msg("gate failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, detail("Internal server error"))
		}
	}
}

func identityFrom(c *gin.Context) (*astaauth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*astaauth.Identity)
	return id, ok && id != nil
}
