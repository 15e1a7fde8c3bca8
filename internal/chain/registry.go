// Package chain holds the execution-side pieces of the on-chain purchase
// path: the adapter registry for supported chains, the cached pass-contract
// metadata, and ABI encoding of the purchase call. Wallet signing internals
// stay behind the Wallet interface; this package never holds keys.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// Info describes one supported execution chain.
type Info struct {
	ChainID     int64
	Name        string
	ExplorerURL string // explorer root, e.g. https://basescan.org
}

// Registry maps chain ids to adapters. A purchase against a chain with no
// registered adapter must abort before any wallet interaction.
type Registry struct {
	chains map[int64]Info
}

// NewRegistry builds a registry from the configured chains.
func NewRegistry(chains []Info) *Registry {
	r := &Registry{chains: make(map[int64]Info, len(chains))}
	for _, info := range chains {
		r.chains[info.ChainID] = info
	}
	return r
}

// Supported reports whether an adapter exists for the chain id.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.chains[chainID]
	return ok
}

// ExplorerTxURL returns the human-facing explorer URL for a transaction,
// or empty when the chain has no configured explorer.
func (r *Registry) ExplorerTxURL(chainID int64, txHash string) string {
	info, ok := r.chains[chainID]
	if !ok || info.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimSuffix(info.ExplorerURL, "/"), txHash)
}

// TxRequest is a value-bearing contract call ready for wallet submission.
type TxRequest struct {
	ChainID int64
	To      string // contract address, 0x-hex
	Value   *big.Int
	Data    []byte
}

// Wallet is the execution client that signs and submits transactions. The
// orchestrator never sees private keys; switching and signing happen on
// the wallet's side of this boundary.
type Wallet interface {
	// ChainID reports the chain the wallet is currently bound to.
	ChainID(ctx context.Context) (int64, error)

	// SwitchChain rebinds the wallet to the given chain.
	SwitchChain(ctx context.Context, chainID int64) error

	// SendTransaction submits the call and returns the transaction hash.
	// Once sent it cannot be cancelled; callers must await and reconcile.
	SendTransaction(ctx context.Context, tx TxRequest) (string, error)
}
