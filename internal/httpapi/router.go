// Package httpapi exposes the authentication service over HTTP for a
// reverse proxy's forward-auth subrequests and for direct browser use.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/httpx"
	"github.com/gatehouse/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cookieName      string
	sessionLifetime time.Duration
	buildVersion    string
	startTime       time.Time
	logger          *slog.Logger

	store               store.UserStore
	AuthService         *service.AuthService
	RegistrationService *service.RegistrationService
}

func NewRouter(
	cookieName string,
	sessionLifetime time.Duration,
	buildVersion string,
	st store.UserStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:             http.NewServeMux(),
		cookieName:      cookieName,
		sessionLifetime: sessionLifetime,
		buildVersion:    buildVersion,
		startTime:       time.Now(),
		store:           st,
		logger:          logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSession()
	r.registerRegistration()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		CookieName:  r.cookieName,
	}

	// The proxy issues one subrequest per protected request, so the
	// decision endpoint gets the lenient limit.
	decide := httpx.Chain(h,
		httpx.RateLimitByIP(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /auth", decide)
	r.Mux.Handle("GET /auth/{privileges...}", decide)
}

func (r *Router) registerSession() {
	loginHandler := &LoginHandler{
		AuthService:    r.AuthService,
		CookieName:     r.cookieName,
		CookieLifetime: r.sessionLifetime,
	}

	// POST /login - strict rate limit by IP + user form field to slow
	// credential stuffing without letting one attacker lock out an IP's
	// legitimate users.
	r.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "user"),
		),
	)

	// GET /login - session status probe
	r.Mux.Handle("GET /login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	logoutHandler := &LogoutHandler{
		AuthService: r.AuthService,
		CookieName:  r.cookieName,
	}
	r.Mux.Handle("GET /logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	passwordHandler := &ChangePasswordHandler{
		AuthService: r.AuthService,
		CookieName:  r.cookieName,
	}
	r.Mux.Handle("POST /changepassword",
		httpx.Chain(passwordHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRegistration() {
	h := &RegisterHandler{RegistrationService: r.RegistrationService}

	// POST /register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /register",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems
	// may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
