// Package purchase models one attempt to acquire a content pass and tracks
// its lifecycle across the two settlement rails until a terminal or
// access-granting state is reached.
package purchase

import (
	"time"
)

// Rail identifies which settlement rail a purchase runs on.
type Rail string

const (
	// RailOffchain is a card payment settled by the payment processor.
	RailOffchain Rail = "offchain"
	// RailOnchain is a token purchase settled by the pass contract.
	RailOnchain Rail = "onchain"
)

// Status is a purchase lifecycle state as reported by the platform.
//
// pending → processing → { minting → minted, claiming → claimed } → completed
//
//	↘ failed / refunded / disputed
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusMinting    Status = "minting"
	StatusMinted     Status = "minted"
	StatusClaiming   Status = "claiming"
	StatusClaimed    Status = "claimed"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusDisputed   Status = "disputed"
)

// Terminal reports whether no further transition is expected. Terminal
// failures are settled outcomes and are reported verbatim, never retried.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// AccessGranting reports whether content access may be unlocked from this
// state. The mint or claim may still be in flight; payment confirmation is
// what grants access, not on-chain finality.
func (s Status) AccessGranting() bool {
	switch s {
	case StatusMinting, StatusMinted, StatusClaiming, StatusClaimed, StatusCompleted:
		return true
	default:
		return false
	}
}

// Known reports whether the status is part of the lifecycle vocabulary.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusMinting, StatusMinted,
		StatusClaiming, StatusClaimed, StatusCompleted, StatusFailed,
		StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// ChainRef is a mint or claim transaction attached to a purchase.
type ChainRef struct {
	Kind        string `json:"kind"` // "mint" or "claim"
	TxHash      string `json:"txHash"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// Record represents one attempt to acquire an item. ItemID is immutable
// after creation; once Status reaches a terminal value it never regresses.
type Record struct {
	PurchaseID string     `json:"purchaseId,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"` // off-chain correlation
	TxHash     string     `json:"txHash,omitempty"`    // on-chain correlation
	ItemID     string     `json:"itemId,omitempty"`
	Rail       Rail       `json:"paymentRail"`
	Status     Status     `json:"status"`
	Amount     int64      `json:"amount"` // smallest currency unit
	Currency   string     `json:"currency"`
	ChainRefs  []ChainRef `json:"chainRefs,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Ref returns the identifier used to poll this purchase: the server-assigned
// purchase id once known, otherwise the rail-specific correlation id.
func (r Record) Ref() string {
	switch {
	case r.PurchaseID != "":
		return r.PurchaseID
	case r.SessionID != "":
		return r.SessionID
	default:
		return r.TxHash
	}
}

// PendingStatus is the lifecycle of an unminted paid purchase.
type PendingStatus string

const (
	PendingStatusPending PendingStatus = "pending"
	PendingStatusMinting PendingStatus = "minting"
)

// Pending is an off-chain purchase that cleared payment without a connected
// wallet and has not been minted yet.
type Pending struct {
	PurchaseID string        `json:"purchaseId"`
	ItemID     string        `json:"itemId"`
	Status     PendingStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// MintOutcome is the per-item result vocabulary of pending-mint resolution.
type MintOutcome string

const (
	MintSuccess       MintOutcome = "success"
	MintFailed        MintOutcome = "failed"
	MintAlreadyMinted MintOutcome = "already_minted"
)

// MintResult is one pending purchase's reconciliation outcome.
type MintResult struct {
	PurchaseID string      `json:"purchaseId"`
	ItemID     string      `json:"itemId"`
	Outcome    MintOutcome `json:"outcome"`
	TxHash     string      `json:"txHash,omitempty"`
}
