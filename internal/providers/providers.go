package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fil-demos/synapse-kit/internal/synapse"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// Provider is the last known health of a storage provider endpoint.
type Provider struct {
	URL       string        `json:"url"`
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Catalog keeps the health of the configured provider endpoints.
type Catalog struct {
	logger *logger.Logger
	urls   []string
	client *http.Client

	// In-memory cache, in configured order
	providers []*Provider
	cacheMu   sync.RWMutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCatalog creates a new Catalog instance
func NewCatalog(logger *logger.Logger, urls []string) *Catalog {
	ctx, cancel := context.WithCancel(context.Background())
	return &Catalog{
		logger: logger,
		urls:   lo.Uniq(urls),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Refresh pings every endpoint concurrently and replaces the cache.
func (c *Catalog) Refresh(ctx context.Context) error {
	if len(c.urls) == 0 {
		return fmt.Errorf("no storage providers configured")
	}

	const maxConcurrent = 8 // Limit concurrent pings
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	results := make([]*Provider, len(c.urls))

	for i, url := range c.urls {
		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			p := &Provider{URL: url}
			start := time.Now()
			err := synapse.NewPDPClient(url, c.client).Ping(ctx)
			p.Latency = time.Since(start)
			p.CheckedAt = time.Now()
			if err != nil {
				p.Error = err.Error()
				c.logger.Warn("Storage provider unreachable", "url", url, "error", err)
			} else {
				p.Healthy = true
			}
			results[i] = p
		}(i, url)
	}

	wg.Wait()

	c.cacheMu.Lock()
	c.providers = results
	c.cacheMu.Unlock()

	healthy := lo.CountBy(results, func(p *Provider) bool { return p.Healthy })
	c.logger.Info("Storage providers checked", "healthy", healthy, "total", len(results))
	return nil
}

// Providers returns a copy of the cached provider list.
func (c *Catalog) Providers() []Provider {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	out := make([]Provider, len(c.providers))
	for i, p := range c.providers {
		out[i] = *p
	}
	return out
}

// Select returns the first healthy provider in configured order, refreshing an empty cache first.
func (c *Catalog) Select(ctx context.Context) (*synapse.PDPClient, error) {
	c.cacheMu.RLock()
	empty := len(c.providers) == 0
	c.cacheMu.RUnlock()
	if empty {
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	for _, p := range c.Providers() {
		if p.Healthy {
			return synapse.NewPDPClient(p.URL, nil), nil
		}
	}
	return nil, fmt.Errorf("none of the %d configured storage providers is reachable", len(c.urls))
}

// StartPeriodicUpdate re-checks providers on every interval until Stop.
func (c *Catalog) StartPeriodicUpdate(interval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.Refresh(c.ctx); err != nil {
					c.logger.Error("Failed to refresh storage providers", "error", err)
				}
			case <-c.ctx.Done():
				c.logger.Debug("Provider refresh stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the periodic update
func (c *Catalog) Stop() {
	c.cancel()
	c.wg.Wait()
}
