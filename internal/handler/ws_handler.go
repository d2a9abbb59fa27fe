/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

Authentication happens in-band: the first frame a client sends is expected to be "auth".
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/limiter"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that upgrades /ws requests and serves the
// connection until it closes.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !deps.ConnectLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Debug("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		deps.Hub.ServeConn(conn, deps.Config.JWTSecret)
	}
}
