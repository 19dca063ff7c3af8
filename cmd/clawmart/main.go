package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"

	server "github.com/clawmart/clawmart/internal"
	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/internal/billing"
	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/metrics"
	"github.com/clawmart/clawmart/pkg/clog"
	"github.com/clawmart/clawmart/pkg/panicerr"
	"github.com/clawmart/clawmart/pkg/ratelimit"
	"github.com/clawmart/clawmart/pkg/storage"
)

var (
	app = kingpin.New("clawmart", "Skill marketplace with x402 payment-gated invocation")

	serveCmd = app.Command("serve", "Run the HTTP API").Default()
	seedCmd  = app.Command("seed", "Install workforce templates and demo skills, then exit")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	setupLogger(env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case seedCmd.FullCommand():
		err = seed(ctx, env)
	case serveCmd.FullCommand():
		err = serve(ctx, env)
	}
	if err != nil {
		slog.Error("clawmart exited with error", "command", command, "error", err)
		os.Exit(1)
	}
}

func setupLogger(env *config.Env) {
	format := "json"
	if env.IsLocal() {
		format = "text"
	}
	handler, err := clog.NewHandler(os.Stderr, format, env.SlogLevel(), env.IsLocal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(handler))
}

func openStorage(ctx context.Context, env *config.Env) (storage.Storage, error) {
	switch env.StorageEnv.Type {
	case "memory":
		slog.Warn("using in-memory storage; data is lost on exit")
		return storage.NewMemoryStorage(), nil
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region, env.S3Endpoint)
	case "postgres":
		db, err := storage.OpenPostgres(ctx, env.PostgresDSN)
		if err != nil {
			return nil, err
		}
		pg := storage.NewPostgresStorage(db, env.PostgresTable)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return storage.NewLocalStorage(env.BaseDir)
	}
}

func newVerifier(ctx context.Context, env *config.Env) (auth.Verifier, error) {
	switch {
	case env.OIDCIssuerURL != "":
		return auth.NewOIDCVerifier(ctx, env.OIDCIssuerURL, env.OIDCClientID)
	case env.JWTSecret != "":
		return auth.NewHMACVerifier(env.JWTSecret), nil
	}
	slog.Warn("no session verifier configured; every caller is anonymous")
	return nil, nil
}

func newApp(ctx context.Context, env *config.Env) (*server.App, error) {
	store, err := openStorage(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	verifier, err := newVerifier(ctx, env)
	if err != nil {
		return nil, err
	}

	deps := server.Deps{
		Storage:    store,
		Verifier:   verifier,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	if env.RedisAddr != "" {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		})
	}
	if env.StripeSecretKey != "" {
		deps.Sessions = checkoutSessions(env.StripeSecretKey)
	}
	return server.NewApp(env, deps)
}

func checkoutSessions(key string) billing.Sessions {
	return &checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key}
}

func seed(ctx context.Context, env *config.Env) error {
	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}
	_, err = a.Seeder.Seed(ctx)
	return err
}

func serve(ctx context.Context, env *config.Env) error {
	a, err := newApp(ctx, env)
	if err != nil {
		return err
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext("http", func(ctx context.Context) error {
		return runHTTP(ctx, a.Server)
	}))
	p.Go(panicerr.SafeContext("push-dispatcher", a.Dispatcher.Start))
	p.Go(panicerr.SafeContext("event-metrics", func(ctx context.Context) error {
		return metrics.CountEvents(ctx, a.Bus)
	}))
	if a.Limiter != nil {
		p.Go(panicerr.SafeContext("ratelimit-sweeper", func(ctx context.Context) error {
			return sweep(ctx, a.Limiter)
		}))
	}

	err = p.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runHTTP serves until ctx is done, then drains connections.
func runHTTP(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func sweep(ctx context.Context, l *ratelimit.Limiter) error {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := l.Sweep(); n > 0 {
				slog.Debug("rate limiter swept idle callers", "removed", n)
			}
		}
	}
}
