package jwks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ronl/business-api/internal/domain/service"
)

// BrokerProbe checks that the identity broker answers its discovery document.
type BrokerProbe struct {
	url    string
	client *http.Client
}

// NewBrokerProbe creates a probe for the realm discovery URL.
func NewBrokerProbe(wellKnownURL string, client *http.Client) *BrokerProbe {
	if client == nil {
		client = http.DefaultClient
	}
	return &BrokerProbe{url: wellKnownURL, client: client}
}

func (p *BrokerProbe) Name() string { return "keycloak" }

// Probe implements service.DependencyProbe.
func (p *BrokerProbe) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build discovery request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxKeySetBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("discovery document: unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ service.DependencyProbe = (*BrokerProbe)(nil)
