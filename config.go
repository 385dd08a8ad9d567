package gateway

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// Config holds process level settings. Everything has a workable default
// except the database connection string: the provider's storage cannot exist
// without it, so its absence is a startup failure, not a per request error.
type Config struct {
	DBURL string `env:"DB_URL,required"`

	Addr     string `env:"GATEWAY_ADDR" envDefault:":3000"`
	BasePath string `env:"GATEWAY_BASE_PATH" envDefault:"/api"`
	Debug    bool   `env:"GATEWAY_DEBUG"`

	// SigningKey signs verification tokens. When empty the provider picks an
	// ephemeral key at startup, which invalidates pending verifications on
	// restart.
	SigningKey string `env:"GATEWAY_SIGNING_KEY"`

	CORSOrigins []string `env:"GATEWAY_CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:4000,http://localhost:3002"`

	SessionTTL     time.Duration `env:"GATEWAY_SESSION_TTL" envDefault:"168h"`
	VerifyTokenTTL time.Duration `env:"GATEWAY_VERIFY_TOKEN_TTL" envDefault:"1h"`
	VerifyRedirect string        `env:"GATEWAY_VERIFY_REDIRECT" envDefault:"/api/v1"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to load gateway configuration")
	}
	return cfg, nil
}
