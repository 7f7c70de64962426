package entity

// WalletKind names the wallet brand behind the connected provider.
type WalletKind string

const (
	WalletKindMetaMask      WalletKind = "MetaMask"
	WalletKindCoinbase      WalletKind = "Coinbase Wallet"
	WalletKindWalletConnect WalletKind = "WalletConnect"
	WalletKindLocalKeystore WalletKind = "Local Keystore"
	WalletKindUnknown       WalletKind = "Unknown Wallet"
)

// ProviderFlags are the capability flags a wallet provider advertises about itself.
type ProviderFlags struct {
	IsMetaMask       bool
	IsCoinbaseWallet bool
	IsWalletConnect  bool
	IsLocalKeystore  bool
}

// DetectWalletKind maps provider flags onto a WalletKind. The first matching flag wins.
func DetectWalletKind(flags ProviderFlags) WalletKind {
	switch {
	case flags.IsMetaMask:
		return WalletKindMetaMask
	case flags.IsCoinbaseWallet:
		return WalletKindCoinbase
	case flags.IsWalletConnect:
		return WalletKindWalletConnect
	case flags.IsLocalKeystore:
		return WalletKindLocalKeystore
	default:
		return WalletKindUnknown
	}
}

// WalletState describes the single wallet session of the client.
type WalletState struct {
	Connected bool       `json:"connected"`
	Address   string     `json:"address,omitempty"`
	Kind      WalletKind `json:"kind,omitempty"`
}
