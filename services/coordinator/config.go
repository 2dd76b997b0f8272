package coordinator

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the coordinator service.
type Config struct {
	Addr                string        `env:"ADDR,default=:8080"`
	DBDSN               string        `env:"DB_DSN,required"`
	NATSURL             string        `env:"NATS_URL"`
	JWTSigningKey       string        `env:"JWT_SIGNING_KEY,required"`
	OTLPEndpoint        string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins      []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	RateLimit           int           `env:"RATE_LIMIT,default=120"`
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	TokenTTL            time.Duration `env:"TOKEN_TTL,default=24h"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS,default=3"`
	DispatchBackoff     time.Duration `env:"DISPATCH_BACKOFF,default=100ms"`
	NotifyTemplatesPath string        `env:"NOTIFY_TEMPLATES_PATH"`
}

// LoadConfig returns a Config populated from environment variables.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
