package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/clawmart/clawmart/internal/agent"
	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/internal/billing"
	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/gateway"
	"github.com/clawmart/clawmart/internal/message"
	"github.com/clawmart/clawmart/internal/metrics"
	"github.com/clawmart/clawmart/internal/pushnotification"
	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/internal/template"
	"github.com/clawmart/clawmart/internal/transaction"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/internal/workforce"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/clog"
	"github.com/clawmart/clawmart/pkg/ratelimit"
)

// Handlers groups the HTTP surface of every domain package.
type Handlers struct {
	User        *user.Handler
	Skill       *skill.Handler
	Gateway     *gateway.Handler
	Transaction *transaction.Handler
	Workforce   *workforce.Handler
	Agent       *agent.Handler
	Message     *message.Handler
	Template    *template.Handler
	Billing     *billing.Handler
	Push        *pushnotification.Handler
}

type Server struct {
	server   *http.Server
	env      *config.Env
	verifier auth.Verifier
	limiter  *ratelimit.Limiter
	seeder   *Seeder
	handlers Handlers
}

func NewServer(env *config.Env, verifier auth.Verifier, limiter *ratelimit.Limiter, seeder *Seeder, handlers Handlers) *Server {
	return &Server{
		env:      env,
		verifier: verifier,
		limiter:  limiter,
		seeder:   seeder,
		handlers: handlers,
	}
}

// callerKey throttles signed-in callers by identity and everyone else by address.
func callerKey(r *http.Request) string {
	if sub := auth.Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	return "ip:" + ratelimit.RemoteIP(r)
}

// Router builds the API router without binding a listener.
func (s *Server) Router() http.Handler {
	h := s.handlers
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.RequestID,
			clog.SlogChiMiddleware(),
			metrics.Middleware,
			cerr.NewJSONResponseChiMiddleware(),
			auth.Optional(s.verifier),
		)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})

		r.Group(func(r chi.Router) {
			var invoke []func(http.Handler) http.Handler
			if s.limiter != nil {
				invoke = append(invoke, s.limiter.Middleware(callerKey))
			}
			h.Gateway.MountPublic(r, invoke...)
			h.Skill.MountPublic(r)
			h.Billing.MountWebhooks(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Required)
			h.User.MountPrivate(r)
			h.Skill.MountPrivate(r)
			h.Transaction.MountPrivate(r)
			h.Workforce.MountPrivate(r)
			h.Agent.MountPrivate(r)
			h.Message.MountPrivate(r)
			h.Template.MountPrivate(r)
			h.Billing.MountPrivate(r)
			h.Push.MountPrivate(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.APIKey(s.env.AdminAPIKey))
			h.Skill.MountAdmin(r)
			h.User.MountAdmin(r)
			r.Post("/seed", cerr.HandlerFunc(func(r *http.Request) (any, error) {
				return s.seeder.Seed(r.Context())
			}))
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker()))
	return mux
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of every
// request, so cancelling it aborts in-flight upstream calls on shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins: s.env.AllowedOrigins(),
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{gateway.PaymentRequiredHeader, gateway.PaymentResponseHeader},
			AllowCredentials: true,
		}).Handler(s.Router()), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
