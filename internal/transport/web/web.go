// Package web serves the server-rendered DreamNest pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vedran77/dreamnest/internal/domain"
	"github.com/vedran77/dreamnest/internal/logging"
	"github.com/vedran77/dreamnest/internal/metrics"
	"github.com/vedran77/dreamnest/internal/service"
	"github.com/vedran77/dreamnest/internal/session"
	"github.com/vedran77/dreamnest/pkg/validator"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageNames = []string{"home", "login", "register", "dreams"}

type Handler struct {
	auth   *service.AuthService
	dreams *service.DreamService

	pages        map[string]*template.Template
	landing      string
	secureCookie bool
	metrics      *metrics.Metrics
	log          *logrus.Logger
}

// New parses the embedded templates. dreams may be nil when the dream
// pages are disabled; signed-in visitors then land on the home page.
func New(auth *service.AuthService, dreams *service.DreamService, secureCookie bool, m *metrics.Metrics, log *logrus.Logger) (*Handler, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = t
	}

	landing := "/dreams"
	if dreams == nil {
		landing = "/"
	}

	return &Handler{
		auth:         auth,
		dreams:       dreams,
		pages:        pages,
		landing:      landing,
		secureCookie: secureCookie,
		metrics:      m,
		log:          log,
	}, nil
}

type pageData struct {
	Title         string
	Session       *session.Session
	DreamsEnabled bool
	Error         string
	Fields        validator.ValidationErrors
	Form          map[string]string
	Dreams        []domain.Dream
	MaxLength     int
}

// Static serves the embedded stylesheet under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// WithSession resolves the session cookie into the request context. A bad
// or revoked cookie is cleared and the request continues anonymously.
func (h *Handler) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(session.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := h.auth.Authenticate(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidToken) && !errors.Is(err, service.ErrTokenRevoked) {
				logging.FromContext(r.Context(), h.log).WithError(err).Error("web: authenticate cookie")
			}
			h.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

// RequireSession redirects anonymous visitors to the login page.
func RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// GuestOnly sends visitors who are already signed in to their landing page.
func (h *Handler) GuestOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()) != nil {
			http.Redirect(w, r, h.landing, http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	data.Session = session.FromContext(r.Context())
	data.DreamsEnabled = h.dreams != nil

	// Render into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.FromContext(r.Context(), h.log).WithError(err).Errorf("web: render %s", name)
		http.Error(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handler) setCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, what string, err error) {
	logging.FromContext(r.Context(), h.log).WithError(err).Error("web: " + what)
	http.Error(w, "Something went wrong", http.StatusInternalServerError)
}

// logout revokes the session token; it is best effort since the cookie is
// dropped either way.
func (h *Handler) logout(ctx context.Context, sess *session.Session) {
	if sess == nil {
		return
	}
	if err := h.auth.Logout(ctx, sess); err != nil {
		logging.FromContext(ctx, h.log).WithError(err).Warn("web: logout")
	}
}
