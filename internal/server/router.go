// Package server assembles the HTTP routes for the API, the web pages and
// the WebSocket endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vedran77/dreamnest/internal/config"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/transport/http/handlers"
	"github.com/vedran77/dreamnest/internal/transport/http/middleware"
	"github.com/vedran77/dreamnest/internal/transport/web"
	"github.com/vedran77/dreamnest/internal/transport/ws"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Config       *config.Config
	AuthService  *service.AuthService
	DreamService *service.DreamService
	Hub          *ws.Hub
	LoginLimiter *middleware.RateLimiter
	DB           Pinger
	Metrics      *metrics.Metrics
	Log          *logrus.Logger
}

// NewRouter registers every enabled route and wraps the mux in the shared
// middleware chain.
func NewRouter(d Deps) (http.Handler, error) {
	dreams := d.DreamService
	if !d.Config.EnableDreams {
		dreams = nil
	}
	pages, err := web.New(d.AuthService, dreams, d.Config.IsProduction(), d.Metrics, d.Log)
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(d.AuthService, d.Metrics, d.Log)
	dreamHandler := handlers.NewDreamHandler(d.DreamService, d.Metrics, d.Log)

	auth := middleware.Auth(d.AuthService, d.Log)
	limit := d.LoginLimiter.Handler
	page := pages.WithSession

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", health(d.DB, d.Log))
	mux.Handle("GET /metrics", d.Metrics.Handler())
	mux.Handle("GET /static/", web.Static())
	mux.Handle("GET /{$}", page(http.HandlerFunc(pages.Home)))
	mux.Handle("POST /logout", page(http.HandlerFunc(pages.Logout)))

	if d.Config.EnableAuth {
		mux.HandleFunc("POST /api/auth/register", authHandler.Register)
		mux.Handle("POST /api/auth/login", limit(http.HandlerFunc(authHandler.Login)))
		mux.Handle("POST /api/auth/refresh", auth(http.HandlerFunc(authHandler.Refresh)))
		mux.Handle("POST /api/auth/logout", auth(http.HandlerFunc(authHandler.Logout)))
		mux.Handle("GET /api/auth/me", auth(http.HandlerFunc(authHandler.Me)))

		mux.Handle("GET /login", page(pages.GuestOnly(pages.LoginPage)))
		mux.Handle("POST /login", limit(page(pages.GuestOnly(pages.Login))))
		for _, path := range []string{"/register", "/signup"} {
			mux.Handle("GET "+path, page(pages.GuestOnly(pages.RegisterPage)))
			mux.Handle("POST "+path, page(pages.GuestOnly(pages.Register)))
		}
	}

	if d.Config.EnableDreams {
		mux.Handle("POST /api/dreams", auth(http.HandlerFunc(dreamHandler.Create)))
		mux.Handle("GET /api/dreams", auth(http.HandlerFunc(dreamHandler.List)))
		mux.Handle("DELETE /api/dreams/{id}", auth(http.HandlerFunc(dreamHandler.Delete)))

		mux.Handle("GET /dreams", page(web.RequireSession(pages.DreamsPage)))
		mux.Handle("POST /dreams", page(web.RequireSession(pages.CreateDream)))
		mux.Handle("POST /dreams/{id}/delete", page(web.RequireSession(pages.DeleteDream)))

		mux.Handle("GET /ws", ws.ServeWS(d.Hub, d.AuthService, d.Config.CORSAllowedOrigins))
	}

	var h http.Handler = mux
	h = middleware.CORS(d.Config.CORSAllowedOrigins)(h)
	h = middleware.Metrics(d.Metrics)(h)
	h = middleware.RequestLog(d.Log)(h)
	return h, nil
}

func health(db Pinger, log *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(ctx); err != nil {
			logging.FromContext(r.Context(), log).WithError(err).Warn("health: database ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
