package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/diltdicker/redot-signalling-server/internal/signaling"
)

// NewRouter builds the HTTP surface: the WebSocket upgrade endpoint plus
// the health and stats probes, grounded on DoyleJ11's chi-based
// SetupRoutes and dragonfox-mediasync-server's /health and /stats
// handlers.
func NewRouter(hub *signaling.Hub, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", wsHandler(hub, logger))
	r.Get("/healthz", healthzHandler)
	r.Get("/stats", statsHandler(hub))
	return r
}

func wsHandler(hub *signaling.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		newWSConn(conn, hub, logger).start()
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peers, lobbies := hub.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"peers": peers, "lobbies": lobbies})
	}
}
