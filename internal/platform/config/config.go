package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultGatewayTimeout  = 15 * time.Second
	defaultPollInterval    = 15 * time.Second
	defaultDebounceWindow  = 300 * time.Millisecond
	defaultSessionTTL      = 30 * 24 * time.Hour
	defaultSessionCookie   = "storefront_session"
	defaultChannelCatalog  = "channels.yaml"
	defaultManagerTTL      = 2 * time.Hour
	defaultCountryCacheTTL = time.Hour
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Commerce    CommerceConfig
	Redis       RedisConfig
	Session     SessionConfig
	Payments    PaymentsConfig
	Destination DestinationConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CommerceConfig points at the upstream commerce GraphQL API.
type CommerceConfig struct {
	Endpoint        string
	Timeout         time.Duration
	ChannelToken    string
	CountryCacheTTL time.Duration
}

// RedisConfig holds connection parameters for the session store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig controls the session cookie and token retention.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	ManagerTTL time.Duration
}

// PaymentsConfig configures payment dispatch and settlement polling.
type PaymentsConfig struct {
	MethodCode         string
	ChannelCatalogPath string
	PollInterval       time.Duration
}

// DestinationConfig controls destination typeahead behaviour.
type DestinationConfig struct {
	DebounceWindow time.Duration
	MinQueryLength int
	ResultLimit    int
}

// Load builds the configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:         envOrDefault("PORT", defaultPort),
			ReadTimeout:  durationEnv("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationEnv("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationEnv("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Commerce: CommerceConfig{
			Endpoint:        strings.TrimSpace(os.Getenv("COMMERCE_API_URL")),
			Timeout:         durationEnv("COMMERCE_API_TIMEOUT", defaultGatewayTimeout),
			ChannelToken:    strings.TrimSpace(os.Getenv("COMMERCE_CHANNEL_TOKEN")),
			CountryCacheTTL: durationEnv("COUNTRY_CACHE_TTL", defaultCountryCacheTTL),
		},
		Redis: RedisConfig{
			Addr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intEnv("REDIS_DB", 0),
		},
		Session: SessionConfig{
			CookieName: envOrDefault("SESSION_COOKIE_NAME", defaultSessionCookie),
			TTL:        durationEnv("SESSION_TTL", defaultSessionTTL),
			Secure:     boolEnv("SESSION_COOKIE_SECURE", false),
			ManagerTTL: durationEnv("CHECKOUT_MANAGER_TTL", defaultManagerTTL),
		},
		Payments: PaymentsConfig{
			MethodCode:         envOrDefault("PAYMENT_METHOD_CODE", "midtrans"),
			ChannelCatalogPath: envOrDefault("PAYMENT_CHANNEL_CATALOG", defaultChannelCatalog),
			PollInterval:       durationEnv("SETTLEMENT_POLL_INTERVAL", defaultPollInterval),
		},
		Destination: DestinationConfig{
			DebounceWindow: durationEnv("DESTINATION_DEBOUNCE", defaultDebounceWindow),
			MinQueryLength: intEnv("DESTINATION_MIN_QUERY", 3),
			ResultLimit:    intEnv("DESTINATION_RESULT_LIMIT", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Commerce.Endpoint == "" {
		return errors.New("config: COMMERCE_API_URL is required")
	}
	if c.Commerce.Timeout <= 0 {
		return errors.New("config: commerce timeout must be positive")
	}
	if c.Payments.PollInterval <= 0 {
		return errors.New("config: settlement poll interval must be positive")
	}
	if c.Destination.MinQueryLength < 1 {
		return errors.New("config: destination minimum query length must be at least 1")
	}
	return nil
}

// ChannelCatalog lists the payment channels and their accepted codes. It is
// loaded from a YAML file so channel availability can change without a
// rebuild.
type ChannelCatalog struct {
	Banks   []ChannelEntry `yaml:"banks"`
	Stores  []ChannelEntry `yaml:"stores"`
	Wallets []ChannelEntry `yaml:"wallets"`
	QR      []ChannelEntry `yaml:"qr"`
}

// ChannelEntry names a single code accepted by a payment channel.
type ChannelEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// HasBank reports whether the bank code is present in the catalog.
func (c ChannelCatalog) HasBank(code string) bool { return hasEntry(c.Banks, code) }

// HasStore reports whether the convenience-store code is present in the catalog.
func (c ChannelCatalog) HasStore(code string) bool { return hasEntry(c.Stores, code) }

// HasWallet reports whether the e-wallet code is present in the catalog.
func (c ChannelCatalog) HasWallet(code string) bool { return hasEntry(c.Wallets, code) }

func hasEntry(entries []ChannelEntry, code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, e := range entries {
		if strings.ToLower(strings.TrimSpace(e.Code)) == code {
			return true
		}
	}
	return false
}

// LoadChannelCatalog reads and parses the channel catalog YAML file.
func LoadChannelCatalog(path string) (ChannelCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ChannelCatalog{}, fmt.Errorf("config: read channel catalog: %w", err)
	}
	var catalog ChannelCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return ChannelCatalog{}, fmt.Errorf("config: parse channel catalog: %w", err)
	}
	return catalog, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
