package networkdefinition

import (
	"fmt"
	"sync"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
)

// Predefined network descriptors used to describe a chain the wallet starts on.
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDescriptor{
		ChainID:           "0x1",
		ChainName:         "Ethereum Mainnet",
		NativeCurrency:    entity.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:           []string{"https://ethereum-rpc.publicnode.com", "https://rpc.ankr.com/eth"},
		BlockExplorerURLs: []string{"https://etherscan.io"},
	}
	Optimism = entity.NetworkDescriptor{
		ChainID:           "0xa",
		ChainName:         "OP Mainnet",
		NativeCurrency:    entity.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:           []string{"https://mainnet.optimism.io", "https://optimism.publicnode.com"},
		BlockExplorerURLs: []string{"https://optimistic.etherscan.io"},
	}
	Arbitrum = entity.NetworkDescriptor{
		ChainID:           "0xa4b1",
		ChainName:         "Arbitrum One",
		NativeCurrency:    entity.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:           []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum-one.publicnode.com"},
		BlockExplorerURLs: []string{"https://arbiscan.io"},
	}

	predefined = map[string]entity.NetworkDescriptor{
		Ethereum.ChainID:           Ethereum,
		Optimism.ChainID:           Optimism,
		Arbitrum.ChainID:           Arbitrum,
		config.BaseNetwork.ChainID: config.BaseNetwork,
	}
)

// Describe returns the predefined descriptor for chainID, or a bare descriptor reaching the
// chain through rpcURL.
func Describe(chainID uint64, rpcURL string) entity.NetworkDescriptor {
	hexID := entity.FormatHexChainID(chainID)
	if def, ok := predefined[hexID]; ok {
		return def
	}
	return entity.NetworkDescriptor{
		ChainID:        hexID,
		ChainName:      fmt.Sprintf("Chain %d", chainID),
		NativeCurrency: entity.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{rpcURL},
	}
}

// Registry is the set of networks a wallet knows about, keyed by normalized hex chain id.
type Registry struct {
	logger   port.Logger
	mu       sync.RWMutex
	networks map[string]entity.NetworkDescriptor
}

// NewRegistry creates a registry containing seeds.
func NewRegistry(logger port.Logger, seeds ...entity.NetworkDescriptor) *Registry {
	r := &Registry{logger: logger, networks: make(map[string]entity.NetworkDescriptor)}
	for _, seed := range seeds {
		if err := r.Add(seed); err != nil {
			logger.Warn("Skipping invalid network definition", "chainId", seed.ChainID, "error", err)
		}
	}
	return r
}

// Add registers or replaces a network.
func (r *Registry) Add(desc entity.NetworkDescriptor) error {
	id, err := desc.NumericChainID()
	if err != nil {
		return err
	}
	if len(desc.RPCURLs) == 0 {
		return fmt.Errorf("network %s has no RPC URLs", desc.ChainID)
	}
	desc.ChainID = entity.FormatHexChainID(id)

	r.mu.Lock()
	r.networks[desc.ChainID] = desc
	r.mu.Unlock()

	r.logger.Info("Network definition registered", "chainId", desc.ChainID, "name", desc.ChainName)
	return nil
}

// Get looks a network up by hex chain id in any letter case.
func (r *Registry) Get(chainID string) (entity.NetworkDescriptor, bool) {
	id, err := entity.ParseHexChainID(chainID)
	if err != nil {
		return entity.NetworkDescriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.networks[entity.FormatHexChainID(id)]
	return desc, ok
}

// Len returns the number of known networks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.networks)
}
