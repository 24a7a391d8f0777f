package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env   string `env:"APP_ENV" envDefault:"development"`
	Debug bool   `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port        int      `env:"PORT" envDefault:"8080"`
		PublicURL   string   `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
		FrontendURL []string `env:"FRONTEND_URL" envSeparator:"," envDefault:"http://localhost:3000"`
	}

	Database struct {
		URL              string `env:"DATABASE_URL"`
		PoolMax          int    `env:"DB_POOL_MAX" envDefault:"20"`
		IdleTimeoutMs    int    `env:"DB_IDLE_TIMEOUT_MS" envDefault:"30000"`
		ConnectTimeoutMs int    `env:"DB_CONNECT_TIMEOUT_MS" envDefault:"5000"`
	}

	Redis struct {
		URL string `env:"REDIS_URL"`
	}

	LNbits struct {
		URL           string `env:"LNBITS_URL"`
		APIKey        string `env:"LNBITS_API_KEY"`
		AdminKey      string `env:"LNBITS_ADMIN_KEY"`
		WebhookSecret string `env:"LNBITS_WEBHOOK_SECRET"`
		WebhookURL    string `env:"LNBITS_WEBHOOK_URL"`
		APITimeoutMs  int    `env:"LIGHTNING_API_TIMEOUT" envDefault:"10000"`
	}

	Price struct {
		APIURL        string  `env:"PRICE_API_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd"`
		FallbackUSD   float64 `env:"BTC_FALLBACK_PRICE" envDefault:"100000"`
		CacheSeconds  int     `env:"PRICE_CACHE_SECONDS" envDefault:"60"`
		FetchTimeoutS int     `env:"PRICE_FETCH_TIMEOUT_SECONDS" envDefault:"5"`
	}

	Tournament struct {
		BuyInSats        int64   `env:"BUY_IN_SATS" envDefault:"1000"`
		AttemptCostUSD   float64 `env:"ATTEMPT_COST_USD"`
		MaxAttempts      int     `env:"MAX_ATTEMPTS" envDefault:"3"`
		HouseFeePercent  float64 `env:"HOUSE_FEE_PERCENT" envDefault:"2"`
		SchedulerEnabled bool    `env:"SCHEDULER_ENABLED" envDefault:"true"`
	}

	Game struct {
		RequireAttemptID bool `env:"REQUIRE_ATTEMPT_ID" envDefault:"true"`
	}

	Admin struct {
		BootstrapSecret string `env:"ADMIN_BOOTSTRAP_SECRET"`
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) LightningTimeout() time.Duration {
	return time.Duration(c.LNbits.APITimeoutMs) * time.Millisecond
}

// Load reads .env (when present) and parses the environment into Config.
// Running a money-handling deployment without a webhook secret is not a
// degraded mode, it is a misconfiguration, so production startup refuses.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env файл опционален; в production переменные устанавливаются напрямую
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.IsProduction() {
		var missing []string
		if cfg.LNbits.WebhookSecret == "" {
			missing = append(missing, "LNBITS_WEBHOOK_SECRET")
		}
		if cfg.Redis.URL == "" {
			missing = append(missing, "REDIS_URL")
		}
		if cfg.LNbits.APIKey == "" {
			missing = append(missing, "LNBITS_API_KEY")
		}
		if cfg.Database.URL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing required production settings: %v", missing)
		}
	}

	if cfg.Tournament.AttemptCostUSD <= 0 {
		if cfg.IsProduction() {
			cfg.Tournament.AttemptCostUSD = 5.00
		} else {
			cfg.Tournament.AttemptCostUSD = 0.01
		}
	}

	return cfg, nil
}
