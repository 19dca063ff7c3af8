package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env                string `envconfig:"ENV" default:"local"`
	HTTPHost           string `envconfig:"HTTP_HOST" default:""`
	HTTPPort           string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"debug"`
	AdminAPIKey        string `envconfig:"ADMIN_API_KEY"`
	PublicBaseURL      string `envconfig:"PUBLIC_BASE_URL" default:"https://clawmart.co"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".clawmart/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket   string `envconfig:"S3_BUCKET"`
	S3Prefix   string `envconfig:"S3_PREFIX" default:"clawmart/"`
	S3Region   string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint string `envconfig:"S3_ENDPOINT"`
	// Postgres settings (used when Type == "postgres")
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	PostgresTable string `envconfig:"POSTGRES_TABLE" default:"clawmart_objects"`
}

type AuthEnv struct {
	JWTSecret     string `envconfig:"JWT_SECRET"`
	OIDCIssuerURL string `envconfig:"OIDC_ISSUER_URL"`
	OIDCClientID  string `envconfig:"OIDC_CLIENT_ID"`
}

type PaymentEnv struct {
	FacilitatorURL string `envconfig:"X402_FACILITATOR_URL"`
	PayTo          string `envconfig:"X402_PAY_TO" default:"0x0000000000000000000000000000000000000000"`
	Network        string `envconfig:"X402_NETWORK" default:"eip155:8453"`
	Asset          string `envconfig:"X402_ASSET" default:"USDC"`
	ChainLabel     string `envconfig:"X402_CHAIN_LABEL" default:"Base"`
}

type BillingEnv struct {
	StripeSecretKey         string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret     string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeProPriceID        string `envconfig:"STRIPE_PRO_PRICE_ID"`
	StripeEnterprisePriceID string `envconfig:"STRIPE_ENTERPRISE_PRICE_ID"`
	AppURL                  string `envconfig:"APP_URL" default:"http://localhost:3000"`
	ClerkWebhookSecret      string `envconfig:"CLERK_WEBHOOK_SECRET"`
}

type CacheEnv struct {
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	ListingCacheTTL time.Duration `envconfig:"LISTING_CACHE_TTL" default:"30s"`
}

type RateLimitEnv struct {
	InvokeRatePerSecond float64 `envconfig:"INVOKE_RATE_PER_SECOND" default:"5"`
	InvokeBurst         int     `envconfig:"INVOKE_BURST" default:"10"`
}

type VAPIDEnv struct {
	PublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Contact    string `envconfig:"VAPID_CONTACT" default:"support@clawmart.co"`
}

type Env struct {
	BaseEnv
	StorageEnv
	AuthEnv
	PaymentEnv
	BillingEnv
	CacheEnv
	RateLimitEnv
	VAPIDEnv
}

const namespace = "CLAWMART"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks cross-field requirements envconfig tags cannot express.
func (e *Env) Validate() error {
	switch e.StorageEnv.Type {
	case "local", "memory":
	case "s3":
		if e.S3Bucket == "" {
			return fmt.Errorf("%s_S3_BUCKET is required when STORAGE_TYPE=s3", namespace)
		}
	case "postgres":
		if e.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required when STORAGE_TYPE=postgres", namespace)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", e.StorageEnv.Type)
	}
	if e.OIDCIssuerURL != "" && e.OIDCClientID == "" {
		return fmt.Errorf("%s_OIDC_CLIENT_ID is required with OIDC_ISSUER_URL", namespace)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) IsLocal() bool {
	return e.Env == "local"
}

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}

func (e *BaseEnv) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(e.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (e *VAPIDEnv) Enabled() bool {
	return e.PublicKey != "" && e.PrivateKey != ""
}
