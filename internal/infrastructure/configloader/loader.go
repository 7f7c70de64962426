package configloader

import (
	"fmt"
	"os"
	"time"

	"earn_usdc/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds dashboard server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// WalletConfig describes the local keyed wallet.
type WalletConfig struct {
	KeyFile     string `yaml:"keyFile"`
	RPCURL      string `yaml:"rpcURL"`
	AutoConnect bool   `yaml:"autoConnect"`
}

// NetworkConfig lists RPC endpoints for the target chain.
type NetworkConfig struct {
	PrimaryRPCURL   string   `yaml:"primaryRpcURL"`
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"`
}

// ContractConfig tells the gateway where the yield contract ABI lives.
type ContractConfig struct {
	ABIURL          string `yaml:"abiURL"`
	ABIFile         string `yaml:"abiFile"`
	ABICacheMinutes int    `yaml:"abiCacheMinutes"`
	EarnAddress     string `yaml:"earnAddress"`
	TokenAddress    string `yaml:"tokenAddress"`
}

// RpcClientConfig holds configuration for RPC clients.
type RpcClientConfig struct {
	CallTimeoutSeconds    int     `yaml:"callTimeoutSeconds"`
	ConnectTimeoutSeconds int     `yaml:"connectTimeoutSeconds"`
	RateLimit             float64 `yaml:"rateLimit"`
	BurstLimit            int     `yaml:"burstLimit"`
	ABIRequestTimeoutMs   int64   `yaml:"abiRequestTimeoutMs"`
}

// PollingConfig overrides refresh intervals.
type PollingConfig struct {
	BalanceIntervalSeconds int `yaml:"balanceIntervalSeconds"`
	RateIntervalSeconds    int `yaml:"rateIntervalSeconds"`
	LogPollIntervalSeconds int `yaml:"logPollIntervalSeconds"`
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	ReceiptTimeoutSeconds int `yaml:"receiptTimeoutSeconds"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Wallet      WalletConfig      `yaml:"wallet"`
	Network     NetworkConfig     `yaml:"network"`
	Contract    ContractConfig    `yaml:"contract"`
	RpcClient   RpcClientConfig   `yaml:"rpcClient"`
	Polling     PollingConfig     `yaml:"polling"`
	Performance PerformanceConfig `yaml:"performance"`
}

// Load reads the YAML configuration file from the given path and unmarshals it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML data, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout <= 0 {
		// SSE connections stay open, so writes get no deadline by default.
		c.Server.WriteTimeout = 0
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Network.PrimaryRPCURL == "" {
		c.Network.PrimaryRPCURL = config.BaseNetwork.RPCURLs[0]
	}
	if c.Wallet.RPCURL == "" {
		c.Wallet.RPCURL = c.Network.PrimaryRPCURL
	}
	if c.Contract.ABIURL == "" && c.Contract.ABIFile == "" {
		c.Contract.ABIURL = config.EarnUSDCABIURL
	}
	if c.Contract.ABICacheMinutes <= 0 {
		c.Contract.ABICacheMinutes = 60
	}
	if c.Contract.EarnAddress == "" {
		c.Contract.EarnAddress = config.EarnUSDCAddress
	}
	if c.Contract.TokenAddress == "" {
		c.Contract.TokenAddress = config.USDCAddress
	}
	if c.RpcClient.CallTimeoutSeconds <= 0 {
		c.RpcClient.CallTimeoutSeconds = 10
	}
	if c.RpcClient.ConnectTimeoutSeconds <= 0 {
		c.RpcClient.ConnectTimeoutSeconds = 10
	}
	if c.RpcClient.RateLimit <= 0 {
		c.RpcClient.RateLimit = 10
	}
	if c.RpcClient.BurstLimit <= 0 {
		c.RpcClient.BurstLimit = 10
	}
	if c.RpcClient.ABIRequestTimeoutMs <= 0 {
		c.RpcClient.ABIRequestTimeoutMs = 10000
	}
	if c.Polling.BalanceIntervalSeconds <= 0 {
		c.Polling.BalanceIntervalSeconds = int(config.BalanceUpdateInterval / time.Second)
	}
	if c.Polling.RateIntervalSeconds <= 0 {
		c.Polling.RateIntervalSeconds = int(config.RateUpdateInterval / time.Second)
	}
	if c.Polling.LogPollIntervalSeconds <= 0 {
		c.Polling.LogPollIntervalSeconds = 15
	}
	if c.Performance.ReceiptTimeoutSeconds <= 0 {
		c.Performance.ReceiptTimeoutSeconds = 300
	}
}

func (c *Config) validate() error {
	if !common.IsHexAddress(c.Contract.EarnAddress) {
		return fmt.Errorf("contract.earnAddress %q is not a valid address", c.Contract.EarnAddress)
	}
	if !common.IsHexAddress(c.Contract.TokenAddress) {
		return fmt.Errorf("contract.tokenAddress %q is not a valid address", c.Contract.TokenAddress)
	}
	return nil
}

// BalanceInterval returns the balance poll period.
func (c *Config) BalanceInterval() time.Duration {
	return time.Duration(c.Polling.BalanceIntervalSeconds) * time.Second
}

// RateInterval returns the rate poll period.
func (c *Config) RateInterval() time.Duration {
	return time.Duration(c.Polling.RateIntervalSeconds) * time.Second
}

// CallTimeout returns the per-read RPC timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.RpcClient.CallTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the dial timeout for RPC endpoints.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.RpcClient.ConnectTimeoutSeconds) * time.Second
}

// ReceiptTimeout bounds how long a submitted transaction is awaited.
func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.Performance.ReceiptTimeoutSeconds) * time.Second
}

// RPCURLs returns primary and fallback endpoints of the target chain.
func (c *Config) RPCURLs() []string {
	return append([]string{c.Network.PrimaryRPCURL}, c.Network.FallbackRPCURLs...)
}
