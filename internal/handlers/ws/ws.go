package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kilcode/kilcode/internal/domain"
	"github.com/kilcode/kilcode/internal/notify"
	"github.com/kilcode/kilcode/pkg/auth"
	"github.com/kilcode/kilcode/pkg/utils"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// deadlineConn bounds every write so one stuck socket cannot hold a
// broadcast hostage.
type deadlineConn struct {
	*websocket.Conn
}

func (c deadlineConn) WriteJSON(v any) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

type WSHandler struct {
	registry   *notify.Registry
	jwtService auth.JWTServiceInterface
}

func New(registry *notify.Registry, jwtService auth.JWTServiceInterface) *WSHandler {
	return &WSHandler{
		registry:   registry,
		jwtService: jwtService,
	}
}

func (h *WSHandler) claimsFromRequest(r *http.Request) (*auth.Claims, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return nil, false
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// AdminSocket upgrades an admin session scoped to one country. The token
// country must match the path country; the fence is enforced at connect,
// not per message.
func (h *WSHandler) AdminSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claimsFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	country := strings.ToUpper(chi.URLParam(r, "country"))
	if claims.Role != auth.RoleAdmin || claims.Country != country {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if country != domain.CountryNigeria && country != domain.CountryGhana {
		utils.RespondWithError(w, http.StatusNotFound, "Unknown country")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	wrapped := deadlineConn{conn}
	h.registry.RegisterAdmin(country, wrapped)
	zap.L().Info("admin socket connected",
		zap.Int("adminID", claims.UserID),
		zap.String("country", country),
	)

	go h.readLoop(conn, func() {
		h.registry.UnregisterAdmin(country, wrapped)
	})
}

// UserSocket upgrades the single live session of a user. A new connection
// replaces the previous one. A requested country that differs from the
// token country is rejected before the upgrade, same fence as AdminSocket.
func (h *WSHandler) UserSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claimsFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if country := strings.ToUpper(r.URL.Query().Get("country")); country != "" && country != claims.Country {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}

	wrapped := deadlineConn{conn}
	h.registry.RegisterUser(claims.UserID, wrapped)
	zap.L().Info("user socket connected", zap.Int("userID", claims.UserID))

	go h.readLoop(conn, func() {
		h.registry.UnregisterUser(claims.UserID, wrapped)
	})
}

// readLoop drains client frames until the peer goes away. The server never
// acts on inbound data; reading only detects the close.
func (h *WSHandler) readLoop(conn *websocket.Conn, onClose func()) {
	defer func() {
		onClose()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
