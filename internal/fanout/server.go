package fanout

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/telehealth/core/internal/auth"
)

// Server exposes the Hub as an HTTP handler at /ws:
// authenticate, upgrade, register, block until the connection closes.
type Server struct {
	hub           *Hub
	authenticator auth.Authenticator
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// NewServer builds a Server. authenticator may be nil only when the
// caller's auth.Config mode is auth.AuthModeNone; every other mode
// rejects connections without a valid token.
func NewServer(hub *Hub, authenticator auth.Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:           hub,
		authenticator: authenticator,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler for the /ws endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.authenticator != nil {
		if _, err := s.authenticator.Authenticate(r); err != nil {
			authErr, ok := err.(*auth.AuthError)
			status := http.StatusUnauthorized
			if ok {
				status = authErr.StatusCode
			}
			http.Error(w, "unauthorized", status)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("fanout: websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(ws)
}
