// Package secrets resolves gateway credentials from HashiCorp Vault.
package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/patrickmn/go-cache"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/logger"
)

const defaultSecretTTL = 5 * time.Minute

// NewVaultClient builds a Vault API client from configuration.
func NewVaultClient(cfg config.VaultConfig) (*vault.Client, error) {
	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	return client, nil
}

// VaultStore reads KV v2 secrets and caches them for a short TTL.
type VaultStore struct {
	client  *vault.Client
	mount   string
	cache   *cache.Cache
	metrics service.Metrics
	logger  logger.Logger
}

// NewVaultStore creates a store reading from the KV v2 engine mounted at mount.
func NewVaultStore(client *vault.Client, mount string, ttl time.Duration, metrics service.Metrics, log logger.Logger) *VaultStore {
	if mount == "" {
		mount = "secret"
	}
	if ttl <= 0 {
		ttl = defaultSecretTTL
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	return &VaultStore{
		client:  client,
		mount:   mount,
		cache:   cache.New(ttl, 2*ttl),
		metrics: metrics,
		logger:  log.WithComponent("vault"),
	}
}

// ReadSecret returns the latest version of the secret at path as strings.
func (s *VaultStore) ReadSecret(ctx context.Context, path string) (map[string]string, error) {
	if v, ok := s.cache.Get(path); ok {
		s.metrics.RecordCacheAccess("vault", true)
		return copyMap(v.(map[string]string)), nil
	}
	s.metrics.RecordCacheAccess("vault", false)

	start := time.Now()
	secret, err := s.client.KVv2(s.mount).Get(ctx, path)
	s.metrics.RecordVaultAPI("kv_get", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("read secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %s has no data", path)
	}

	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	s.cache.SetDefault(path, out)
	s.logger.Debug(ctx, "Secret loaded", logger.String("path", path), logger.Int("keys", len(out)))
	return copyMap(out), nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Credentials reads a username/password pair stored at path.
func Credentials(ctx context.Context, store service.SecretStore, path string) (string, string, error) {
	data, err := store.ReadSecret(ctx, path)
	if err != nil {
		return "", "", err
	}
	username, password := data["username"], data["password"]
	if username == "" || password == "" {
		return "", "", fmt.Errorf("secret %s lacks username or password", path)
	}
	return username, password, nil
}

var _ service.SecretStore = (*VaultStore)(nil)
