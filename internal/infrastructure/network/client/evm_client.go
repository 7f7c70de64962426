package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// EVMClient is a chain connection usable as port.ChainBackend.
type EVMClient struct {
	*ethclient.Client
	rpcClient *rpc.Client
	chainID   uint64
	url       string
}

// DialedChainID returns the chain id reported by the endpoint at dial time.
func (c *EVMClient) DialedChainID() uint64 { return c.chainID }

// URL returns the endpoint the client is connected to.
func (c *EVMClient) URL() string { return c.url }

// SupportsSubscriptions reports whether the transport can push log notifications.
func (c *EVMClient) SupportsSubscriptions() bool {
	return c.rpcClient.SupportsSubscriptions()
}

// Dial connects to the first reachable endpoint of rpcURLs and reads its chain id. When
// expectedChainID is non-zero, endpoints serving another chain are skipped.
func Dial(ctx context.Context, rpcURLs []string, expectedChainID uint64, connectionTimeout time.Duration) (*EVMClient, error) {
	if len(rpcURLs) == 0 {
		return nil, errors.New("no RPC URLs given")
	}
	var lastErr error

	for _, rpcURL := range rpcURLs {
		dialCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		rpcClient, err := rpc.DialContext(dialCtx, rpcURL)
		if err != nil {
			cancel()
			lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
			continue
		}

		ethClient := ethclient.NewClient(rpcClient)
		chainID, err := ethClient.ChainID(dialCtx)
		cancel()
		if err != nil {
			rpcClient.Close()
			lastErr = fmt.Errorf("failed to verify chainID for %s: %w", rpcURL, err)
			continue
		}
		if expectedChainID != 0 && chainID.Uint64() != expectedChainID {
			rpcClient.Close()
			lastErr = fmt.Errorf("chainID mismatch for %s: expected %d, got %d", rpcURL, expectedChainID, chainID.Uint64())
			continue
		}

		return &EVMClient{Client: ethClient, rpcClient: rpcClient, chainID: chainID.Uint64(), url: rpcURL}, nil
	}

	return nil, fmt.Errorf("all RPC connection attempts failed: %w", lastErr)
}
