package internal

import (
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"

	"github.com/clawmart/clawmart/internal/agent"
	agentrepo "github.com/clawmart/clawmart/internal/agent/repositoryimpl"
	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/internal/billing"
	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/gateway"
	"github.com/clawmart/clawmart/internal/message"
	messagerepo "github.com/clawmart/clawmart/internal/message/repositoryimpl"
	"github.com/clawmart/clawmart/internal/pushnotification"
	pushsubrepo "github.com/clawmart/clawmart/internal/pushsubscription/repositoryimpl"
	reviewrepo "github.com/clawmart/clawmart/internal/review/repositoryimpl"
	"github.com/clawmart/clawmart/internal/skill"
	skillrepo "github.com/clawmart/clawmart/internal/skill/repositoryimpl"
	"github.com/clawmart/clawmart/internal/template"
	templaterepo "github.com/clawmart/clawmart/internal/template/repositoryimpl"
	"github.com/clawmart/clawmart/internal/transaction"
	transactionrepo "github.com/clawmart/clawmart/internal/transaction/repositoryimpl"
	"github.com/clawmart/clawmart/internal/user"
	userrepo "github.com/clawmart/clawmart/internal/user/repositoryimpl"
	"github.com/clawmart/clawmart/internal/workforce"
	workforcerepo "github.com/clawmart/clawmart/internal/workforce/repositoryimpl"
	"github.com/clawmart/clawmart/pkg/ratelimit"
	"github.com/clawmart/clawmart/pkg/storage"
)

// Deps are the process-level collaborators chosen by the caller.
type Deps struct {
	Storage  storage.Storage
	Verifier auth.Verifier
	// Redis enables the public listing cache when set.
	Redis *redis.Client
	// HTTPClient is used for the payment facilitator and remote skills.
	HTTPClient *http.Client
	// Sessions creates checkout sessions; nil disables checkout.
	Sessions billing.Sessions
	// PushClient overrides the web push transport.
	PushClient webpush.HTTPClient
}

// App is the fully wired service.
type App struct {
	Server     *Server
	Seeder     *Seeder
	Bus        *eventbus.Bus
	Dispatcher *pushnotification.Dispatcher
	Limiter    *ratelimit.Limiter
}

func NewApp(env *config.Env, deps Deps) (*App, error) {
	store := deps.Storage
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	bus := eventbus.New()

	userRepo := userrepo.NewYAMLRepository(store)
	skillRepo := skillrepo.NewYAMLRepository(store)
	reviewRepo := reviewrepo.NewYAMLRepository(store)
	transactionRepo := transactionrepo.NewYAMLRepository(store)
	templateRepo := templaterepo.NewYAMLRepository(store)
	workforceRepo := workforcerepo.NewYAMLRepository(store)
	agentRepo := agentrepo.NewYAMLRepository(store)
	messageRepo := messagerepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	ownership, err := workforce.NewOwnershipGraph(workforceRepo, agentRepo, messageRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to declare ownership graph: %w", err)
	}

	userServer := user.NewServer(userRepo, bus)
	skillServer := skill.NewServer(skillRepo, reviewRepo, userServer, bus)
	transactionServer := transaction.NewServer(transactionRepo, userServer, bus)
	templateServer := template.NewServer(templateRepo)
	workforceServer := workforce.NewServer(workforceRepo, agentRepo, messageRepo, templateServer, userServer, ownership, bus)
	agentServer := agent.NewServer(agentRepo, workforceServer, ownership)
	messageServer := message.NewServer(messageRepo, agentServer, workforceServer)

	var verifier gateway.Verifier = gateway.HeaderVerifier{}
	if env.FacilitatorURL != "" {
		verifier = gateway.NewFacilitatorVerifier(env.FacilitatorURL, client)
	}
	var cache gateway.ListingCache
	if deps.Redis != nil {
		cache = gateway.NewRedisCache(deps.Redis, env.ListingCacheTTL)
	}
	gatewayServer := gateway.NewServer(skillServer, transactionServer, userServer, gateway.Options{
		Payment:  env.PaymentEnv,
		BaseURL:  env.PublicBaseURL,
		Verifier: verifier,
		Executor: gateway.Router{Local: gateway.ExampleExecutor{}, Remote: gateway.NewHTTPExecutor(client)},
		Cache:    cache,
	})

	billingServer, err := billing.NewServer(deps.Sessions, userServer, env.BillingEnv)
	if err != nil {
		return nil, err
	}

	pushSender := pushnotification.NewSender(env.VAPIDEnv, pushSubRepo, deps.PushClient)
	pushServer := pushnotification.NewServer(env.VAPIDEnv, pushSubRepo, userServer, pushSender)

	var limiter *ratelimit.Limiter
	if env.InvokeRatePerSecond > 0 {
		limiter = ratelimit.New(env.InvokeRatePerSecond, env.InvokeBurst)
	}

	seeder := NewSeeder(userServer, skillServer, templateServer)
	srv := NewServer(env, deps.Verifier, limiter, seeder, Handlers{
		User:        user.NewHandler(userServer),
		Skill:       skill.NewHandler(skillServer),
		Gateway:     gateway.NewHandler(gatewayServer),
		Transaction: transaction.NewHandler(transactionServer),
		Workforce:   workforce.NewHandler(workforceServer),
		Agent:       agent.NewHandler(agentServer),
		Message:     message.NewHandler(messageServer),
		Template:    template.NewHandler(templateServer),
		Billing:     billing.NewHandler(billingServer),
		Push:        pushnotification.NewHandler(pushServer),
	})

	return &App{
		Server:     srv,
		Seeder:     seeder,
		Bus:        bus,
		Dispatcher: pushnotification.NewDispatcher(bus, pushSender),
		Limiter:    limiter,
	}, nil
}
