package contract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/infrastructure/httpclient"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/patrickmn/go-cache"
)

// Minimal token interface: approve, allowance and balanceOf.
const tokenABI = `[
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

var (
	parsedTokenABI  abi.ABI
	parsedTokenOnce sync.Once
)

func tokenInterface() abi.ABI {
	parsedTokenOnce.Do(func() {
		var err error
		parsedTokenABI, err = abi.JSON(strings.NewReader(tokenABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse token ABI: %v", err))
		}
	})
	return parsedTokenABI
}

// ABILoader resolves the yield contract ABI from a bundled file or a remote document and keeps
// the parsed result so reconnects do not refetch it.
type ABILoader struct {
	client httpclient.ABIClient
	url    string
	file   string
	cache  *cache.Cache
	logger port.Logger
}

// NewABILoader creates a loader. A non-empty file takes precedence over url.
func NewABILoader(client httpclient.ABIClient, url, file string, ttl time.Duration, logger port.Logger) *ABILoader {
	return &ABILoader{
		client: client,
		url:    url,
		file:   file,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Source returns the location the ABI is read from.
func (l *ABILoader) Source() string {
	if l.file != "" {
		return l.file
	}
	return l.url
}

// Load returns the parsed ABI, failing with *entity.AbiLoadError.
func (l *ABILoader) Load(ctx context.Context) (abi.ABI, error) {
	source := l.Source()
	if cached, found := l.cache.Get(source); found {
		return cached.(abi.ABI), nil
	}

	raw, err := l.fetch(ctx)
	if err != nil {
		l.logger.Error("Failed to load contract ABI", "source", source, "error", err)
		return abi.ABI{}, &entity.AbiLoadError{Source: source, Err: err}
	}

	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		l.logger.Error("Failed to parse contract ABI", "source", source, "error", err)
		return abi.ABI{}, &entity.AbiLoadError{Source: source, Err: err}
	}

	l.cache.Set(source, parsed, cache.DefaultExpiration)
	l.logger.Info("Contract ABI loaded", "source", source, "methods", len(parsed.Methods), "events", len(parsed.Events))
	return parsed, nil
}

func (l *ABILoader) fetch(ctx context.Context) ([]byte, error) {
	if l.file != "" {
		data, err := os.ReadFile(l.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read ABI file: %w", err)
		}
		return httpclient.ExtractABI(data)
	}
	if l.client == nil || l.url == "" {
		return nil, fmt.Errorf("no ABI source configured")
	}
	return l.client.FetchABI(ctx, l.url)
}
