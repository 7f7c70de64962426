package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
)

const defaultProviderConnectionTimeout = 10 * time.Second

// Provider hands out one cached EVMClient per chain.
type Provider struct {
	clients           map[uint64]*EVMClient
	mu                sync.Mutex
	logger            port.Logger
	connectionTimeout time.Duration
}

// NewProvider creates a Provider.
func NewProvider(connectionTimeout time.Duration, logger port.Logger) *Provider {
	if connectionTimeout <= 0 {
		connectionTimeout = defaultProviderConnectionTimeout
	}
	return &Provider{
		clients:           make(map[uint64]*EVMClient),
		logger:            logger,
		connectionTimeout: connectionTimeout,
	}
}

// Open dials the first reachable URL whatever chain it serves and caches the client.
func (p *Provider) Open(ctx context.Context, rpcURLs []string) (*EVMClient, error) {
	newClient, err := Dial(ctx, rpcURLs, 0, p.connectionTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "urls", rpcURLs, "error", err)
		return nil, err
	}
	return p.store(newClient), nil
}

// GetClient returns the cached client for the network, dialing its RPC URLs on first use.
func (p *Provider) GetClient(ctx context.Context, desc entity.NetworkDescriptor) (*EVMClient, error) {
	chainID, err := desc.NumericChainID()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	cached, exists := p.clients[chainID]
	p.mu.Unlock()
	if exists {
		p.logger.Debug("Returning cached EVM client", "network", desc.ChainName)
		return cached, nil
	}

	p.logger.Info("Creating new EVM client", "network", desc.ChainName, "urls", desc.RPCURLs)
	newClient, err := Dial(ctx, desc.RPCURLs, chainID, p.connectionTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", desc.ChainName, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", desc.ChainName, err)
	}
	return p.store(newClient), nil
}

func (p *Provider) store(c *EVMClient) *EVMClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[c.chainID]; ok {
		c.Close()
		return existing
	}
	p.clients[c.chainID] = c
	p.logger.Info("Cached new EVM client", "chainId", c.chainID, "url", c.url)
	return c
}

// Close closes every cached client.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}
