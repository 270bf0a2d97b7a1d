// Package config centralises runtime configuration for exchange clients.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Supported exchange integration keys.
const (
	ExchangeExmo        = "exmo"
	ExchangeBitcoincoid = "bitcoincoid"
	ExchangeBTCTradeUA  = "btctradeua"
	ExchangeCoinex      = "coinex"
	ExchangeLbank       = "lbank"
	ExchangeZB          = "zb"
	ExchangeBitz        = "bitz"
)

// ExchangeNames lists every supported integration key.
func ExchangeNames() []string {
	return []string{
		ExchangeExmo,
		ExchangeBitcoincoid,
		ExchangeBTCTradeUA,
		ExchangeCoinex,
		ExchangeLbank,
		ExchangeZB,
		ExchangeBitz,
	}
}

// Credentials captures API credentials used for authenticated requests.
// Password carries the trade password required by some venues.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	UID       string `yaml:"uid"`
	Password  string `yaml:"password"`
}

// Configured reports whether both key and secret are present.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// ExchangeSettings aggregates transport and credential configuration for one
// venue. PublicURL overrides the endpoint for unauthenticated calls on venues
// that split their API surfaces; when empty, BaseURL serves both.
type ExchangeSettings struct {
	BaseURL     string        `yaml:"base_url"`
	PublicURL   string        `yaml:"public_url"`
	Credentials Credentials   `yaml:"credentials"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	RateLimit   time.Duration `yaml:"rate_limit"`
}

// UnmarshalYAML accepts Go duration strings such as "15s" for the timeout
// fields.
func (es *ExchangeSettings) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		BaseURL     string      `yaml:"base_url"`
		PublicURL   string      `yaml:"public_url"`
		Credentials Credentials `yaml:"credentials"`
		HTTPTimeout string      `yaml:"http_timeout"`
		RateLimit   string      `yaml:"rate_limit"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.BaseURL != "" {
		es.BaseURL = raw.BaseURL
	}
	if raw.PublicURL != "" {
		es.PublicURL = raw.PublicURL
	}
	if raw.Credentials != (Credentials{}) {
		es.Credentials = raw.Credentials
	}
	if raw.HTTPTimeout != "" {
		dur, err := time.ParseDuration(raw.HTTPTimeout)
		if err != nil {
			return fmt.Errorf("http_timeout: %w", err)
		}
		es.HTTPTimeout = dur
	}
	if raw.RateLimit != "" {
		dur, err := time.ParseDuration(raw.RateLimit)
		if err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
		es.RateLimit = dur
	}
	return nil
}

// Settings is the configuration tree loaded from defaults and overrides.
type Settings struct {
	Environment Environment                 `yaml:"environment"`
	Exchanges   map[string]ExchangeSettings `yaml:"exchanges"`
}

// Default returns the default configuration.
func Default() Settings {
	exchanges := make(map[string]ExchangeSettings, 7)
	for _, name := range ExchangeNames() {
		exchanges[name] = ExchangeSettings{
			HTTPTimeout: 10 * time.Second,
			RateLimit:   2 * time.Second,
		}
	}
	return Settings{
		Environment: EnvProd,
		Exchanges:   exchanges,
	}
}

// LoadFile reads a YAML configuration file and merges it over the defaults.
func LoadFile(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Settings{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Exchanges == nil {
		cfg.Exchanges = make(map[string]ExchangeSettings)
	}
	defaults := Default()
	for name, es := range cfg.Exchanges {
		def := defaults.Exchanges[name]
		if es.HTTPTimeout == 0 {
			es.HTTPTimeout = def.HTTPTimeout
		}
		if es.RateLimit == 0 {
			es.RateLimit = def.RateLimit
		}
		cfg.Exchanges[name] = es
	}
	return cfg, nil
}

// FromEnv loads configuration from environment variables, overriding
// defaults. Variables follow the <EXCHANGE>_API_KEY naming scheme, e.g.
// EXMO_API_KEY or ZB_BASE_URL. A .env file in the working directory is
// loaded first when present.
func FromEnv() Settings {
	_ = godotenv.Load()

	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("EXBRIDGE_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	for _, name := range ExchangeNames() {
		prefix := strings.ToUpper(name)
		es := cfg.Exchanges[name]
		if v := strings.TrimSpace(os.Getenv(prefix + "_BASE_URL")); v != "" {
			es.BaseURL = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_PUBLIC_URL")); v != "" {
			es.PublicURL = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_KEY")); v != "" {
			es.Credentials.APIKey = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_API_SECRET")); v != "" {
			es.Credentials.APISecret = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_UID")); v != "" {
			es.Credentials.UID = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_PASSWORD")); v != "" {
			es.Credentials.Password = v
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_HTTP_TIMEOUT")); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				es.HTTPTimeout = dur
			}
		}
		if v := strings.TrimSpace(os.Getenv(prefix + "_RATE_LIMIT")); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				es.RateLimit = dur
			}
		}
		cfg.Exchanges[name] = es
	}
	return cfg
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Exchange returns the exchange-specific configuration if present.
func (s Settings) Exchange(name string) (ExchangeSettings, bool) {
	cfg, ok := s.Exchanges[normalizeExchangeName(name)]
	return cfg, ok
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithExchangeBaseURL overrides the REST base URL for the given exchange.
func WithExchangeBaseURL(exchange, baseURL string) Option {
	baseURL = strings.TrimSpace(baseURL)
	return mutateExchangeOption(exchange, func(es *ExchangeSettings) {
		if baseURL != "" {
			es.BaseURL = baseURL
		}
	})
}

// WithExchangeCredentials overrides the API credentials for the given exchange.
func WithExchangeCredentials(exchange string, creds Credentials) Option {
	return mutateExchangeOption(exchange, func(es *ExchangeSettings) {
		if creds.APIKey != "" {
			es.Credentials.APIKey = creds.APIKey
		}
		if creds.APISecret != "" {
			es.Credentials.APISecret = creds.APISecret
		}
		if creds.UID != "" {
			es.Credentials.UID = creds.UID
		}
		if creds.Password != "" {
			es.Credentials.Password = creds.Password
		}
	})
}

// WithExchangeHTTPTimeout overrides the HTTP timeout for the given exchange.
func WithExchangeHTTPTimeout(exchange string, timeout time.Duration) Option {
	return mutateExchangeOption(exchange, func(es *ExchangeSettings) {
		if timeout > 0 {
			es.HTTPTimeout = timeout
		}
	})
}

// WithExchangeRateLimit overrides the minimum request spacing for the given
// exchange.
func WithExchangeRateLimit(exchange string, interval time.Duration) Option {
	return mutateExchangeOption(exchange, func(es *ExchangeSettings) {
		if interval > 0 {
			es.RateLimit = interval
		}
	})
}

func mutateExchangeOption(exchange string, fn func(*ExchangeSettings)) Option {
	key := normalizeExchangeName(exchange)
	if key == "" || fn == nil {
		return func(*Settings) {}
	}
	return func(s *Settings) {
		if s.Exchanges == nil {
			s.Exchanges = make(map[string]ExchangeSettings)
		}
		cfg := s.Exchanges[key]
		fn(&cfg)
		s.Exchanges[key] = cfg
	}
}

func (s Settings) clone() Settings {
	out := Settings{
		Environment: s.Environment,
		Exchanges:   make(map[string]ExchangeSettings, len(s.Exchanges)),
	}
	for k, v := range s.Exchanges {
		out.Exchanges[k] = v
	}
	return out
}

func normalizeExchangeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
