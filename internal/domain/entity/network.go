package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// NetworkDescriptor is the parameter object handed verbatim to wallet_addEthereumChain.
type NetworkDescriptor struct {
	ChainID           string         `json:"chainId" yaml:"chainId"`
	ChainName         string         `json:"chainName" yaml:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls" yaml:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls" yaml:"blockExplorerUrls"`
}

// SwitchChainParameter is the parameter object of wallet_switchEthereumChain.
type SwitchChainParameter struct {
	ChainID string `json:"chainId"`
}

// NumericChainID parses the hex chain id of the descriptor.
func (d NetworkDescriptor) NumericChainID() (uint64, error) {
	return ParseHexChainID(d.ChainID)
}

// ParseHexChainID parses a 0x-prefixed chain id.
func ParseHexChainID(hexID string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(hexID), "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty chain id %q", hexID)
	}
	id, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", hexID, err)
	}
	return id, nil
}

// FormatHexChainID renders a chain id the way wallet providers report it.
func FormatHexChainID(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}
