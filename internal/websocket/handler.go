package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/questtracker/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a hub
// client for the caller's family.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "user_id", ac.UserID, "error", err)
			return
		}

		client := NewClient(hub, conn, ac.FamilyID, ac.UserID)
		client.Run(r.Context())
	}
}
