package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"weddinghub/internal/domain/booking"
	"weddinghub/internal/pkg/jwt"
	"weddinghub/internal/pkg/response"
)

type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
	upgrader   websocket.Upgrader
}

// NewHandler accepts websocket upgrades from the listed origins. Requests
// without an Origin header (non-browser clients) are always accepted.
func NewHandler(hub *Hub, jwtService *jwt.Service, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket serves GET /ws/bookings?token=JWT. Browsers cannot set
// headers on websocket requests, so the token travels in the query.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "AUTH_MISSING", "token query parameter is required")
		return
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}
	actor, err := booking.ActorFromRole(claims.Role, claims.UserID)
	if err != nil {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Role is not allowed to follow bookings")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.hub.loggerf("level=warn msg=websocket upgrade failed actor=%s err=%v", actor, err)
		return
	}
	h.hub.Serve(conn, actor)
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/bookings", h.HandleWebSocket)
}
