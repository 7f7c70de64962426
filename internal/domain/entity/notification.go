package entity

import "time"

// Topic is the shape of a message carried by the notification bus.
type Topic string

const (
	TopicWalletConnected     Topic = "walletConnected"
	TopicWalletDisconnected  Topic = "walletDisconnected"
	TopicStateChanged        Topic = "stateUpdated"
	TopicTransactionComplete Topic = "transactionComplete"
	TopicTransactionFailed   Topic = "transactionError"
	TopicReloadRequested     Topic = "reloadRequested"
	TopicToast               Topic = "toast"
)

// Notification is one message on the bus. Payload type is fixed per topic:
//
//	TopicWalletConnected     WalletConnected
//	TopicWalletDisconnected  nil
//	TopicStateChanged        StateChanged
//	TopicTransactionComplete TransactionComplete
//	TopicTransactionFailed   TransactionFailed
//	TopicReloadRequested     nil
//	TopicToast               Toast
type Notification struct {
	Topic   Topic     `json:"topic"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// WalletConnected is published when the provider reports an active account.
type WalletConnected struct {
	Account string `json:"account"`
}

// StateChanged carries either a refreshed snapshot or a relayed contract event.
type StateChanged struct {
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// TransactionComplete is published once a transaction is confirmed on chain.
type TransactionComplete struct {
	Description string `json:"description"`
	Hash        string `json:"hash"`
}

// TransactionFailed is published with the classified, user-facing reason.
type TransactionFailed struct {
	Description string `json:"description"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

// ToastLevel is the severity of a user-facing toast.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

// Toast is an ephemeral user-facing message.
type Toast struct {
	Message   string     `json:"message"`
	Level     ToastLevel `json:"level"`
	ExpiresAt time.Time  `json:"expiresAt"`
}
