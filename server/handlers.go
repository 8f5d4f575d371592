package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/metrics/export/prometheus"
	"github.com/projectatlas/astaauth/middleware"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type handlers struct {
	svc Service
	log zerolog.Logger
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/", h.root)
	r.POST("/login", h.login)
	r.GET("/metrics", gin.WrapH(prometheus.NewExporter(h.svc).Handler()))

	users := r.Group("/users")
	users.POST("", h.createUser)

	authed := users.Group("", requireAuth(h.svc, h.log))
	authed.GET("", h.listUsers)
	authed.GET("/me", h.me)
}

func detail(msg any) gin.H {
	return gin.H{"detail": msg}
}

func (h *handlers) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the ASTA Core API"})
}

func (h *handlers) login(c *gin.Context) {
	var req astaauth.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("Malformed request body"))
		return
	}

	tok, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, astaauth.ErrUnauthenticated) {
			c.Header("WWW-Authenticate", middleware.Challenge)
			c.JSON(http.StatusUnauthorized, detail("Incorrect email or password"))
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tok)
}

func (h *handlers) createUser(c *gin.Context) {
	var req astaauth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("Malformed request body"))
		return
	}

	identity, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, identity)
}

func (h *handlers) listUsers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultListLimit)
	if !ok || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusUnprocessableEntity, detail("limit must be between 1 and 1000"))
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok || offset < 0 {
		c.JSON(http.StatusUnprocessableEntity, detail("offset must be >= 0"))
		return
	}

	users, err := h.svc.ListIdentities(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *handlers) me(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, detail("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, identity)
}

// respondError is the only place engine errors become HTTP statuses.
func (h *handlers) respondError(c *gin.Context, err error) {
	var verr *astaauth.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, detail(validationDetail(verr)))
	case errors.Is(err, astaauth.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, detail("A user with this email already exists."))
	case errors.Is(err, astaauth.ErrRegistrationDisabled):
		c.JSON(http.StatusForbidden, detail("Registration is disabled"))
	case errors.Is(err, astaauth.ErrUnauthenticated):
		c.Header("WWW-Authenticate", middleware.Challenge)
		c.JSON(http.StatusUnauthorized, detail("Could not validate credentials"))
	case errors.Is(err, astaauth.ErrServiceUnavailable):
		h.log.Error().Err(err).Str("request_id", c.GetString(ctxKeyRequestID)).Msg("credential store unavailable")
		c.JSON(http.StatusServiceUnavailable, detail("Service unavailable"))
	default:
		h.log.Error().Err(err).Str("request_id", c.GetString(ctxKeyRequestID)).Msg("request failed")
		c.JSON(http.StatusInternalServerError, detail("Internal server error"))
	}
}

type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func validationDetail(verr *astaauth.ValidationError) []fieldError {
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make([]fieldError, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldError{
			Loc:  []string{"body", f},
			Msg:  "failed on the '" + verr.Fields[f] + "' rule",
			Type: "value_error." + verr.Fields[f],
		})
	}
	return out
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
