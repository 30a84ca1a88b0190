package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Keycloak  KeycloakConfig  `mapstructure:"keycloak"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Operaton  OperatonConfig  `mapstructure:"operaton"`
	BRP       BRPConfig       `mapstructure:"brp"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Vault     VaultConfig     `mapstructure:"vault"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Tenant    TenantConfig    `mapstructure:"tenant"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	GRPCPort     int      `mapstructure:"grpc_port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int      `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int      `mapstructure:"idle_timeout"`  // in seconds
	CORSOrigins  []string `mapstructure:"cors_origins"`
	TrustProxy   bool     `mapstructure:"trust_proxy"`
}

// Address returns the host:port the HTTP server listens on.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// JWKSURL is the realm's key-publication endpoint.
func (c KeycloakConfig) JWKSURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", strings.TrimRight(c.URL, "/"), c.Realm)
}

// WellKnownURL is the realm's discovery document, used as a health probe.
func (c KeycloakConfig) WellKnownURL() string {
	return fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration", strings.TrimRight(c.URL, "/"), c.Realm)
}

type JWTConfig struct {
	Issuer            string `mapstructure:"issuer"`
	Audience          string `mapstructure:"audience"`
	Algorithm         string `mapstructure:"algorithm"`
	ClockSkew         int    `mapstructure:"clock_skew"` // in seconds
	CacheTTL          int    `mapstructure:"cache_ttl"`  // in seconds
	RequestsPerMinute int    `mapstructure:"jwks_requests_per_minute"`
}

func (c JWTConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func (c JWTConfig) ClockSkewDuration() time.Duration {
	return time.Duration(c.ClockSkew) * time.Second
}

type OperatonConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

func (c OperatonConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type BRPConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

func (c BRPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// DatabaseConfig configures the durable audit store. An empty URL disables it.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in minutes
}

// RedisConfig configures the distributed rate limiter. An empty URL selects the in-process limiter.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// KafkaConfig configures the audit event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// VaultConfig configures secret resolution. An empty address disables it.
type VaultConfig struct {
	Address      string `mapstructure:"address"`
	Token        string `mapstructure:"token"`
	MountPath    string `mapstructure:"mount_path"`
	OperatonPath string `mapstructure:"operaton_path"`
	KeycloakPath string `mapstructure:"keycloak_path"`
}

type RateLimitConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	WindowMS    int  `mapstructure:"window_ms"`
	MaxRequests int  `mapstructure:"max_requests"`
	PerTenant   bool `mapstructure:"per_tenant"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMS) * time.Millisecond
}

type AuditConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	IncludeIP     bool   `mapstructure:"include_ip"`
	RetentionDays int    `mapstructure:"retention_days"`
	Capacity      int    `mapstructure:"capacity"`
	PruneInterval int    `mapstructure:"prune_interval"` // in seconds
	QueueSize     int    `mapstructure:"queue_size"`
	SigningKey    string `mapstructure:"signing_key"` // HMAC key for streamed events; empty disables signing
}

type SecurityConfig struct {
	HeadersEnabled bool `mapstructure:"headers_enabled"`
}

type TenantConfig struct {
	IsolationEnabled bool `mapstructure:"isolation_enabled"`
}

type FeaturesConfig struct {
	Metrics bool `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// IsProduction reports whether the service runs with production posture.
func (c *Config) IsProduction() bool {
	return c.Env == constants.EnvProduction
}

var asymmetricAlgorithms = map[string]bool{
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"ES256": true, "ES384": true, "ES512": true,
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Keycloak.URL == "" || c.Keycloak.Realm == "" {
		problems = append(problems, "keycloak.url and keycloak.realm are required")
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		problems = append(problems, "jwt.issuer and jwt.audience are required")
	}
	if !asymmetricAlgorithms[c.JWT.Algorithm] {
		problems = append(problems, fmt.Sprintf("jwt.algorithm %q is not an asymmetric signing algorithm", c.JWT.Algorithm))
	}
	if c.JWT.CacheTTL <= 0 {
		problems = append(problems, "jwt.cache_ttl must be positive")
	}
	if c.Operaton.BaseURL == "" {
		problems = append(problems, "operaton.base_url is required")
	}
	if c.Operaton.TimeoutMS <= 0 || c.BRP.TimeoutMS <= 0 {
		problems = append(problems, "gateway timeouts must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.WindowMS <= 0 || c.RateLimit.MaxRequests <= 0) {
		problems = append(problems, "rate_limit.window_ms and rate_limit.max_requests must be positive")
	}
	if c.IsProduction() {
		if !c.Tenant.IsolationEnabled {
			problems = append(problems, "tenant isolation cannot be disabled in production")
		}
		if c.Keycloak.ClientSecret == "" && c.Vault.KeycloakPath == "" {
			problems = append(problems, "KEYCLOAK_CLIENT_SECRET is required in production")
		}
	}

	if len(problems) > 0 {
		return errors.ErrInvalidConfig(strings.Join(problems, "; "))
	}
	return nil
}
