package ws

import (
	"context"
	"net/http"
	"slices"

	"github.com/vedran77/dreamnest/internal/session"
	"nhooyr.io/websocket"
)

// Authenticator resolves a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// The token comes from ?token=xxx (browsers can't set headers on the
// upgrade) or from the web session cookie.
func ServeWS(hub *Hub, auth Authenticator, allowedOrigins []string) http.HandlerFunc {
	tokenOpts := &websocket.AcceptOptions{}
	if slices.Contains(allowedOrigins, "*") {
		tokenOpts.InsecureSkipVerify = true
	} else {
		tokenOpts.OriginPatterns = allowedOrigins
	}

	// The browser attaches the cookie on its own, so a cookie upgrade is only
	// accepted from the same host or an explicitly listed origin.
	cookieOpts := &websocket.AcceptOptions{
		OriginPatterns: slices.DeleteFunc(slices.Clone(allowedOrigins), func(o string) bool { return o == "*" }),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		opts := tokenOpts
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			if c, err := r.Cookie(session.CookieName); err == nil {
				tokenStr = c.Value
				opts = cookieOpts
			}
		}
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		sess, err := auth.Authenticate(r.Context(), tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			hub.log.WithError(err).Warn("ws: accept")
			return
		}

		client := NewClient(hub, conn, sess.UserID)
		if !hub.Register(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			client.WritePump(ctx)
			cancel()
		}()
		client.ReadPump(ctx)
	}
}
