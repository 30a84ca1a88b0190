// Package jwks caches the identity broker's published signing keys.
package jwks

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

const maxKeySetBytes = 1 << 20

var (
	// ErrUnknownKey means the key id is absent from the broker's published set.
	ErrUnknownKey = stderrors.New("signing key not found in published key set")

	// ErrFetchThrottled means a refresh was needed but the per-minute ceiling was reached.
	ErrFetchThrottled = stderrors.New("key set refresh throttled")
)

// SigningKey is a public verification key resolved from the key set.
type SigningKey struct {
	KeyID     string
	Algorithm string
	Public    interface{}
}

// Config configures a KeyCache.
type Config struct {
	URL               string
	TTL               time.Duration
	RequestsPerMinute int
	FetchTimeout      time.Duration
}

// KeyCache maps key ids to public keys. Entries expire after the TTL and are
// fetched lazily; concurrent misses for one key id share a single download.
type KeyCache struct {
	url     string
	client  *http.Client
	ttl     time.Duration
	timeout time.Duration
	keys    *cache.Cache
	limiter *rate.Limiter
	group   singleflight.Group
	metrics service.Metrics
	logger  logger.Logger
}

// NewKeyCache creates a key cache for the given key-publication endpoint.
func NewKeyCache(cfg Config, client *http.Client, metrics service.Metrics, log logger.Logger) *KeyCache {
	if client == nil {
		client = http.DefaultClient
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = constants.DefaultJWKSRequestsPerMinute
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHealthCheckTimeout
	}
	return &KeyCache{
		url:     cfg.URL,
		client:  client,
		ttl:     cfg.TTL,
		timeout: timeout,
		keys:    cache.New(cfg.TTL, 2*cfg.TTL),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		metrics: metrics,
		logger:  log.WithComponent("jwks"),
	}
}

// Get resolves kid to a public key, downloading the key set on a miss.
func (c *KeyCache) Get(ctx context.Context, kid string) (*SigningKey, error) {
	if key, ok := c.lookup(kid); ok {
		c.metrics.RecordCacheAccess("jwks", true)
		return key, nil
	}
	c.metrics.RecordCacheAccess("jwks", false)

	v, err, _ := c.group.Do(kid, func() (interface{}, error) {
		if key, ok := c.lookup(kid); ok {
			return key, nil
		}
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		if key, ok := c.lookup(kid); ok {
			return key, nil
		}
		return nil, ErrUnknownKey
	})
	if err != nil {
		return nil, err
	}
	return v.(*SigningKey), nil
}

func (c *KeyCache) lookup(kid string) (*SigningKey, bool) {
	v, found := c.keys.Get(kid)
	if !found {
		return nil, false
	}
	return v.(*SigningKey), true
}

func (c *KeyCache) refresh(ctx context.Context) error {
	if !c.limiter.Allow() {
		c.logger.Warn(ctx, "Key set refresh throttled", logger.String("url", c.url))
		return ErrFetchThrottled
	}

	start := time.Now()
	set, err := c.fetch(ctx)
	c.metrics.RecordJWKSFetch(err == nil, time.Since(start))
	if err != nil {
		c.logger.Error(ctx, "Failed to fetch key set", err, logger.String("url", c.url))
		return err
	}

	stored := 0
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Get(i)
		if !ok {
			continue
		}
		sk, err := toSigningKey(key)
		if err != nil {
			c.logger.Debug(ctx, "Skipping key set entry", logger.String("kid", key.KeyID()), logger.Error(err))
			continue
		}
		c.keys.Set(sk.KeyID, sk, c.ttl)
		stored++
	}
	c.logger.Info(ctx, "Key set refreshed", logger.Int("keys", stored))
	return nil
}

func (c *KeyCache) fetch(ctx context.Context) (jwk.Set, error) {
	// The download is shared by every caller waiting on this key id, so it must
	// not die with the first caller's request.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch key set: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("read key set: %w", err)
	}
	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse key set: %w", err)
	}
	return set, nil
}

// toSigningKey accepts asymmetric public signing keys only.
func toSigningKey(key jwk.Key) (*SigningKey, error) {
	if key.KeyID() == "" {
		return nil, stderrors.New("key without kid")
	}
	if use := key.KeyUsage(); use != "" && use != "sig" {
		return nil, fmt.Errorf("key use %q", use)
	}
	var raw interface{}
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	switch raw.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
	default:
		return nil, fmt.Errorf("unsupported key material %T", raw)
	}
	return &SigningKey{
		KeyID:     key.KeyID(),
		Algorithm: key.Algorithm(),
		Public:    raw,
	}, nil
}
