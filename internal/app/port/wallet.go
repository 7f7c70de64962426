package port

import (
	"context"

	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Wallet provider request methods.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
)

// Wallet provider events.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// ListenerID identifies a callback registered with WalletProvider.On.
type ListenerID uint64

// WalletProvider is the EIP-1193 shaped boundary to the user's wallet.
//
// Request results: eth_requestAccounts and eth_accounts return []string, eth_chainId returns
// a 0x-prefixed string, the wallet_* methods return nil. Failures carry an
// *entity.ProviderError when the wallet reports a code.
type WalletProvider interface {
	Request(ctx context.Context, method string, params ...any) (any, error)
	On(event string, handler func(args ...any)) ListenerID
	RemoveListener(event string, id ListenerID)
	Flags() entity.ProviderFlags
	Signer(ctx context.Context) (Signer, error)
}

// ChainBackend is everything bound contracts need from the chain connection.
type ChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Signer is the identity authorized to submit transactions for the connected account.
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
	Backend() ChainBackend
	SupportsSubscriptions() bool
}
