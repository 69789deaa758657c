package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
	CacheTypeTiered = "tiered"
)

// Environment variables that override file values.
const (
	EnvAPIURL            = "EDX_API_URL"
	EnvOAuthURL          = "EDX_OAUTH_URL"
	EnvOAuthClientID     = "EDX_OAUTH_CLIENT_ID"
	EnvOAuthClientSecret = "EDX_OAUTH_CLIENT_SECRET"
	EnvClientName        = "EDX_REST_API_CLIENT_NAME"
	EnvRedisURL          = "EDX_REDIS_URL"
	EnvLogLevel          = "EDX_LOG_LEVEL"
)

// Defaults applied by Load when a value is not set.
const (
	DefaultConnectTimeout  = 3050 * time.Millisecond
	DefaultReadTimeout     = 5 * time.Second
	DefaultCacheMaxEntries = 10000
	DefaultTokenType       = "bearer"
	DefaultRedisKeyPrefix  = "edx_rest_api_client:"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("config: invalid configuration")

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Config is the full client configuration.
type Config struct {
	// URL is the API base URL.
	URL string `yaml:"url" json:"url"`

	// OAuth holds the client-credentials settings. Optional for the
	// legacy client, required for the OAuth session.
	OAuth OAuthConfig `yaml:"oauth" json:"oauth"`

	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`
	Cache    CacheConfig   `yaml:"cache" json:"cache"`
	Log      LogConfig     `yaml:"log" json:"log"`

	// ClientName is the last component of the User-Agent header.
	// Empty means "resolve from the environment or hostname".
	ClientName string `yaml:"clientName,omitempty" json:"clientName,omitempty"`
}

// OAuthConfig configures the token endpoint and client identity.
type OAuthConfig struct {
	// URL is the authorization server base URL. It is normalized to
	// <base>/oauth2/access_token. Defaults to the API URL when empty.
	URL          string `yaml:"url,omitempty" json:"url,omitempty"`
	ClientID     string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty" json:"clientSecret,omitempty"`
	TokenType    string `yaml:"tokenType,omitempty" json:"tokenType,omitempty"`
}

// Enabled reports whether both halves of the client credentials are set.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// TimeoutConfig holds network timeouts shared by token fetches and API calls.
type TimeoutConfig struct {
	Connect Duration `yaml:"connect,omitempty" json:"connect,omitempty"`
	Read    Duration `yaml:"read,omitempty" json:"read,omitempty"`
}

// CacheConfig selects and configures the token cache backend.
type CacheConfig struct {
	// Type is "memory", "redis" or "tiered".
	Type string `yaml:"type" json:"type"`

	// MaxEntries bounds the in-memory tier.
	MaxEntries int `yaml:"maxEntries,omitempty" json:"maxEntries,omitempty"`

	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the distributed cache tier.
type RedisConfig struct {
	// URL format: redis://[user:password@]host:port[/db]
	URL          string   `yaml:"url" json:"url"`
	KeyPrefix    string   `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
	PoolSize     int      `yaml:"poolSize,omitempty" json:"poolSize,omitempty"`
	DialTimeout  Duration `yaml:"dialTimeout,omitempty" json:"dialTimeout,omitempty"`
	ReadTimeout  Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`
	// Format is json or console.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present. path may be empty, in which case only the environment
// is consulted. Defaults are applied and the result is validated.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
		if err != nil {
			return nil, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()

		cfg, err = Parse(f)
		if err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML from r after substituting ${VAR} references.
// It neither applies defaults nor validates.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills in unset values.
func (c *Config) ApplyDefaults() {
	if c.OAuth.URL == "" {
		c.OAuth.URL = c.URL
	}
	if c.OAuth.TokenType == "" {
		c.OAuth.TokenType = DefaultTokenType
	}
	if c.Timeouts.Connect == 0 {
		c.Timeouts.Connect = Duration(DefaultConnectTimeout)
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = Duration(DefaultReadTimeout)
	}
	if c.Cache.Type == "" {
		c.Cache.Type = CacheTypeMemory
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalid)
	}
	if (c.OAuth.ClientID == "") != (c.OAuth.ClientSecret == "") {
		return fmt.Errorf("%w: oauth clientId and clientSecret must be set together", ErrInvalid)
	}
	switch c.OAuth.TokenType {
	case "", "bearer", "jwt":
	default:
		return fmt.Errorf("%w: unsupported oauth tokenType %q", ErrInvalid, c.OAuth.TokenType)
	}
	switch c.Cache.Type {
	case "", CacheTypeMemory:
	case CacheTypeRedis, CacheTypeTiered:
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("%w: cache.redis.url is required for cache type %q", ErrInvalid, c.Cache.Type)
		}
	default:
		return fmt.Errorf("%w: unknown cache type %q", ErrInvalid, c.Cache.Type)
	}
	if c.Timeouts.Connect < 0 || c.Timeouts.Read < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalid)
	}
	return nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.URL, EnvAPIURL)
	setFromEnv(&c.OAuth.URL, EnvOAuthURL)
	setFromEnv(&c.OAuth.ClientID, EnvOAuthClientID)
	setFromEnv(&c.OAuth.ClientSecret, EnvOAuthClientSecret)
	setFromEnv(&c.ClientName, EnvClientName)
	setFromEnv(&c.Cache.Redis.URL, EnvRedisURL)
	setFromEnv(&c.Log.Level, EnvLogLevel)

	if v := os.Getenv("EDX_CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.MaxEntries = n
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(parts[1]); ok {
			return v
		}
		return parts[2]
	})
}
