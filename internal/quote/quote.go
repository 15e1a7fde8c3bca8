// Package quote implements the on-chain purchase flow: fetching a signed
// price quote from the platform, validating its shape locally, and
// submitting the value-bearing transaction either directly through a
// wallet or through a backend relayer.
package quote

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/GateStream/orchestrator/internal/gateerr"
)

// Quote is a price/authorization tuple signed by the platform's quoting
// authority and consumed by the pass contract. A quote is single-use per
// nonce and never cached across purchase attempts.
type Quote struct {
	Buyer      string   `json:"buyer"`
	ItemID     *big.Int `json:"itemId"`
	Quantity   *big.Int `json:"quantity"`
	MinPrice   *big.Int `json:"minPrice"`
	ValidUntil int64    `json:"validUntil"`
	Nonce      []byte   `json:"nonce"`
	Signature  []byte   `json:"signature"`
}

const (
	nonceLen     = 32
	signatureLen = 65
)

// DecodeNonce parses a 0x-hex nonce into its canonical 32-byte form,
// left-padding short values. This is the wire-side normalization; after
// decode a quote nonce is always exactly 32 bytes or the quote is invalid.
func DecodeNonce(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, gateerr.Wrap(gateerr.KindInvalidQuote, "decode nonce", err)
	}
	if len(raw) > nonceLen {
		return nil, gateerr.Newf(gateerr.KindInvalidQuote,
			"nonce is %d bytes, want at most %d", len(raw), nonceLen)
	}
	out := make([]byte, nonceLen)
	copy(out[nonceLen-len(raw):], raw)
	return out, nil
}

// Validate checks the quote's shape and expiry before any gas is spent.
// The contract enforces the same rules, but a malformed quote must never
// reach the wallet. Returns the nonce as the fixed-size array the ABI
// encoder wants.
func (q Quote) Validate(now time.Time) ([32]byte, error) {
	var nonce [32]byte
	if len(q.Nonce) != nonceLen {
		return nonce, gateerr.Newf(gateerr.KindInvalidQuote,
			"nonce is %d bytes, want exactly %d", len(q.Nonce), nonceLen)
	}
	copy(nonce[:], q.Nonce)
	if len(q.Signature) != signatureLen {
		return nonce, gateerr.Newf(gateerr.KindInvalidQuote,
			"signature is %d bytes, want %d", len(q.Signature), signatureLen)
	}
	if q.MinPrice == nil || q.MinPrice.Sign() < 0 {
		return nonce, gateerr.New(gateerr.KindInvalidQuote, "missing or negative minPrice")
	}
	if q.ItemID == nil || q.Quantity == nil || q.Quantity.Sign() <= 0 {
		return nonce, gateerr.New(gateerr.KindInvalidQuote, "missing itemId or quantity")
	}
	if q.ValidUntil <= now.Unix() {
		return nonce, gateerr.Newf(gateerr.KindInvalidQuote,
			"quote expired at %d", q.ValidUntil)
	}
	return nonce, nil
}

// Request identifies what the caller wants quoted.
type Request struct {
	Buyer        string `json:"buyer"`
	ItemID       string `json:"itemId"`
	Quantity     int64  `json:"quantity"`
	ValidSeconds int64  `json:"validSeconds,omitempty"`
}

// Source fetches a fresh quote from the platform. Quote requests are
// idempotent reads and safe to retry.
type Source interface {
	RequestQuote(ctx context.Context, req Request) (Quote, error)
}
