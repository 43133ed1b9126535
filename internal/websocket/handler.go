package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/specto/internal/logging"
)

// Handler serves the reload wire protocol: the client sends one text
// message, then receives at most one "reload" message, after which the
// server closes the connection.
type Handler struct {
	hub            *Hub
	originPatterns []string
	readyTimeout   time.Duration
	pingInterval   time.Duration
	logger         logging.Logger
}

// NewHandler creates a reload handler. originPatterns is passed to
// websocket.Accept; an empty list allows only same-host origins.
func NewHandler(hub *Hub, originPatterns []string, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{
		hub:            hub,
		originPatterns: originPatterns,
		readyTimeout:   readyTimeout,
		pingInterval:   pingInterval,
		logger:         logger.WithComponent("reload"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		// Accept has already written the HTTP error response.
		h.logger.Warn(r.Context(), err, "Reload connection rejected", "remote", r.RemoteAddr)
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(readLimit)

	readyCtx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
	_, _, err = conn.Read(readyCtx)
	cancel()
	if err != nil {
		h.logger.Debug(r.Context(), "Reload handshake abandoned", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	waiter := h.hub.Register()
	defer waiter.Cancel()

	// Nothing else is expected from the client; CloseRead notices when it goes away.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case signal, ok := <-waiter.C():
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, []byte(ReloadMessage))
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "Reload not delivered", "remote", r.RemoteAddr, "error", err.Error())
				return
			}
			h.logger.Debug(ctx, "Reload delivered", "remote", r.RemoteAddr, "cycle", signal.Cycle)
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return

		case <-ctx.Done():
			h.logger.Debug(r.Context(), "Reload listener disconnected", "remote", r.RemoteAddr)
			return

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
