package config

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

// envBindings maps configuration keys to the environment variable names the
// deployment manifests already use.
var envBindings = map[string][]string{
	"env":                          {"NODE_ENV", "APP_ENV"},
	"server.host":                  {"HOST"},
	"server.port":                  {"PORT"},
	"server.grpc_port":             {"GRPC_PORT"},
	"server.cors_origins":          {"CORS_ORIGIN"},
	"server.trust_proxy":           {"TRUST_PROXY"},
	"keycloak.url":                 {"KEYCLOAK_URL"},
	"keycloak.realm":               {"KEYCLOAK_REALM"},
	"keycloak.client_id":           {"KEYCLOAK_CLIENT_ID"},
	"keycloak.client_secret":       {"KEYCLOAK_CLIENT_SECRET"},
	"jwt.issuer":                   {"JWT_ISSUER"},
	"jwt.audience":                 {"JWT_AUDIENCE"},
	"jwt.algorithm":                {"JWT_ALGORITHM"},
	"jwt.clock_skew":               {"JWT_CLOCK_SKEW"},
	"jwt.cache_ttl":                {"TOKEN_CACHE_TTL"},
	"jwt.jwks_requests_per_minute": {"JWKS_REQUESTS_PER_MINUTE"},
	"operaton.base_url":            {"OPERATON_BASE_URL"},
	"operaton.timeout_ms":          {"OPERATON_TIMEOUT"},
	"operaton.username":            {"OPERATON_USERNAME"},
	"operaton.password":            {"OPERATON_PASSWORD"},
	"brp.base_url":                 {"BRP_API_URL"},
	"brp.timeout_ms":               {"BRP_API_TIMEOUT"},
	"database.url":                 {"DATABASE_URL"},
	"database.max_open_conns":      {"DATABASE_POOL_MAX"},
	"database.max_idle_conns":      {"DATABASE_POOL_MIN"},
	"redis.url":                    {"REDIS_URL"},
	"kafka.brokers":                {"KAFKA_BROKERS"},
	"kafka.audit_topic":            {"KAFKA_AUDIT_TOPIC"},
	"vault.address":                {"VAULT_ADDR"},
	"vault.token":                  {"VAULT_TOKEN"},
	"vault.mount_path":             {"VAULT_MOUNT_PATH"},
	"vault.operaton_path":          {"VAULT_OPERATON_PATH"},
	"vault.keycloak_path":          {"VAULT_KEYCLOAK_PATH"},
	"rate_limit.enabled":           {"RATE_LIMIT_ENABLED"},
	"rate_limit.window_ms":         {"RATE_LIMIT_WINDOW_MS"},
	"rate_limit.max_requests":      {"RATE_LIMIT_MAX_REQUESTS"},
	"rate_limit.per_tenant":        {"RATE_LIMIT_PER_TENANT"},
	"audit.enabled":                {"AUDIT_LOG_ENABLED"},
	"audit.include_ip":             {"AUDIT_LOG_INCLUDE_IP"},
	"audit.retention_days":         {"AUDIT_LOG_RETENTION_DAYS"},
	"audit.signing_key":            {"AUDIT_LOG_SIGNING_KEY"},
	"security.headers_enabled":     {"HELMET_ENABLED"},
	"tenant.isolation_enabled":     {"ENABLE_TENANT_ISOLATION"},
	"features.metrics":             {"ENABLE_METRICS"},
	"log.level":                    {"LOG_LEVEL"},
	"log.format":                   {"LOG_FORMAT"},
	"tracing.enabled":              {"TRACING_ENABLED"},
	"tracing.jaeger_endpoint":      {"JAEGER_ENDPOINT"},
	"tracing.sampling_rate":        {"TRACING_SAMPLING_RATE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", constants.EnvDevelopment)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3002)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("keycloak.url", "http://localhost:8080")
	v.SetDefault("keycloak.realm", "ronl")
	v.SetDefault("keycloak.client_id", "ronl-business-api")

	v.SetDefault("jwt.issuer", "http://localhost:8080/realms/ronl")
	v.SetDefault("jwt.audience", "ronl-business-api")
	v.SetDefault("jwt.algorithm", "RS256")
	v.SetDefault("jwt.clock_skew", 30)
	v.SetDefault("jwt.cache_ttl", 300)
	v.SetDefault("jwt.jwks_requests_per_minute", constants.DefaultJWKSRequestsPerMinute)

	v.SetDefault("operaton.base_url", "https://operaton.open-regels.nl/engine-rest")
	v.SetDefault("operaton.timeout_ms", 30000)

	v.SetDefault("brp.base_url", "https://brp-api-mock.open-regels.nl/haalcentraal/api/brp")
	v.SetDefault("brp.timeout_ms", int(constants.DefaultBRPTimeout.Milliseconds()))

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 30)

	v.SetDefault("kafka.audit_topic", "ronl.audit")
	v.SetDefault("kafka.batch_timeout", "1s")
	v.SetDefault("kafka.write_timeout", "10s")
	v.SetDefault("kafka.required_acks", 1)

	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window_ms", 60000)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.per_tenant", true)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.include_ip", true)
	v.SetDefault("audit.retention_days", 2555)
	v.SetDefault("audit.capacity", constants.DefaultAuditCapacity)
	v.SetDefault("audit.prune_interval", int(constants.DefaultAuditPruneInterval.Seconds()))
	v.SetDefault("audit.queue_size", 1024)

	v.SetDefault("security.headers_enabled", true)
	v.SetDefault("tenant.isolation_enabled", true)
	v.SetDefault("features.metrics", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampling_rate", 1.0)
}

// Loader reads configuration from defaults, an optional config file and the environment.
type Loader struct {
	v   *viper.Viper
	log logger.Logger

	mu         sync.Mutex
	current    *Config
	fileLoaded bool
}

// NewLoader creates a Loader. configFile may be empty to use the search paths.
func NewLoader(configFile string, log logger.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/business-api/")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BUSINESS_API")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		_ = v.BindEnv(args...)
	}

	return &Loader{v: v, log: log}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, errors.ErrInvalidConfig("failed to read config file").WithCause(err)
		}
	} else {
		l.fileLoaded = true
		l.log.Info(context.Background(), "Configuration file loaded", logger.String("file", l.v.ConfigFileUsed()))
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrInvalidConfig("failed to unmarshal config").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-decodes the configuration whenever the config file changes and hands
// the new value to onChange. Invalid edits are logged and ignored.
func (l *Loader) Watch(onChange func(*Config)) {
	if !l.fileLoaded {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			l.log.Error(context.Background(), "Ignoring invalid configuration change", err, logger.String("file", e.Name))
			return
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()

		l.log.Info(context.Background(), "Configuration reloaded", logger.String("file", e.Name))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// LoadConfig loads the configuration using the default search paths.
func LoadConfig(log logger.Logger) (*Config, error) {
	return NewLoader(os.Getenv("CONFIG_FILE"), log).Load()
}
