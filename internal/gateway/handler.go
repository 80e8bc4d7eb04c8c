package gateway

import (
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"staybook/internal/domain/property"
	"staybook/internal/middleware"
	"staybook/internal/notify"
	"staybook/internal/pkg/response"
)

// Deps are the backend collaborators every session is built on.
type Deps struct {
	Subscriber notify.Subscriber
	Source     notify.NotificationSource
	Bookings   notify.BookingActions
	Searcher   property.Searcher
	Likes      property.Liker
	Views      property.ViewCounter
}

type Options struct {
	AllowAnyOrigin bool
	AllowedOrigins []string
	RatePerSecond  float64
	Burst          int
}

// Handler upgrades /ws requests into gateway sessions.
type Handler struct {
	tokens   middleware.TokenValidator
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewHandler(tokens middleware.TokenValidator, deps Deps, opts Options) *Handler {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	h := &Handler{tokens: tokens, deps: deps, opts: opts}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.opts.AllowAnyOrigin {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	log.Printf("gateway_origin_rejected origin=%s", origin)
	return false
}

// ServeWS handles GET /ws?token=JWT. The token is optional; a session
// without one starts anonymous and may send an auth frame later.
func (h *Handler) ServeWS(c *gin.Context) {
	var claimsUserID int64
	var claimsRole string
	if token := c.Query("token"); token != "" {
		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
		claimsUserID, claimsRole = claims.UserID, claims.Role
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("gateway_upgrade_error error=%v", err)
		return
	}

	s := newSession(conn, h.tokens, h.deps, rate.NewLimiter(rate.Limit(h.opts.RatePerSecond), h.opts.Burst))
	h.active.Add(1)
	log.Printf("gateway_connected user_id=%d remote=%s", claimsUserID, c.ClientIP())
	defer func() {
		h.active.Add(-1)
		log.Printf("gateway_disconnected user_id=%d", s.userID())
	}()

	s.run(claimsUserID, claimsRole)
}

// Sessions returns the number of open sessions.
func (h *Handler) Sessions() int {
	return int(h.active.Load())
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.ServeWS)
}
