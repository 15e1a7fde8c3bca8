package platform

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/quote"
)

// The platform grew several generations of endpoints, so the same purchase
// comes back flat-camel from one path, snake_case from another, and
// wrapped under "purchase" or "data" from the oldest. Everything funnels
// through normalizeRecord; callers never branch on raw field names.

type wireRecord struct {
	PurchaseID      string `json:"purchaseId"`
	PurchaseIDSnake string `json:"purchase_id"`
	SessionID       string `json:"sessionId"`
	SessionIDSnake  string `json:"session_id"`
	TxHash          string `json:"txHash"`
	TxHashSnake     string `json:"tx_hash"`
	ItemID          string `json:"itemId"`
	ItemIDSnake     string `json:"item_id"`
	Rail            string `json:"paymentRail"`
	RailSnake       string `json:"payment_rail"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ChainRefs       []struct {
		Kind        string `json:"kind"`
		TxHash      string `json:"txHash"`
		TxHashSnake string `json:"tx_hash"`
		ExplorerURL string `json:"explorerUrl"`
	} `json:"chainRefs"`
	UpdatedAt      string `json:"updatedAt"`
	UpdatedAtSnake string `json:"updated_at"`
}

type wireStatusEnvelope struct {
	wireRecord
	Purchase *wireRecord `json:"purchase"`
	Data     *wireRecord `json:"data"`
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseWireTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (w wireRecord) toRecord() purchase.Record {
	rec := purchase.Record{
		PurchaseID: coalesce(w.PurchaseID, w.PurchaseIDSnake),
		SessionID:  coalesce(w.SessionID, w.SessionIDSnake),
		TxHash:     coalesce(w.TxHash, w.TxHashSnake),
		ItemID:     coalesce(w.ItemID, w.ItemIDSnake),
		Rail:       purchase.Rail(coalesce(w.Rail, w.RailSnake)),
		Status:     purchase.Status(w.Status),
		Amount:     w.Amount,
		Currency:   w.Currency,
		UpdatedAt:  parseWireTime(w.UpdatedAt, w.UpdatedAtSnake),
	}
	for _, ref := range w.ChainRefs {
		rec.ChainRefs = append(rec.ChainRefs, purchase.ChainRef{
			Kind:        ref.Kind,
			TxHash:      coalesce(ref.TxHash, ref.TxHashSnake),
			ExplorerURL: ref.ExplorerURL,
		})
	}
	return rec
}

// normalizeRecord decodes any of the purchase payload generations into the
// canonical record.
func normalizeRecord(body []byte) (purchase.Record, error) {
	var envelope wireStatusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return purchase.Record{}, gateerr.Wrap(gateerr.KindServerError, "decode purchase payload", err)
	}

	inner := envelope.wireRecord
	switch {
	case envelope.Purchase != nil:
		inner = *envelope.Purchase
	case envelope.Data != nil:
		inner = *envelope.Data
	}

	rec := inner.toRecord()
	if rec.Status == "" {
		return purchase.Record{}, gateerr.New(gateerr.KindServerError, "purchase payload missing status")
	}
	return rec, nil
}

// wireQuote carries hex-encoded byte fields and stringified big integers.
type wireQuote struct {
	Buyer      string      `json:"buyer"`
	ItemID     json.Number `json:"itemId"`
	Quantity   json.Number `json:"quantity"`
	MinPrice   json.Number `json:"minPrice"`
	ValidUntil int64       `json:"validUntil"`
	Nonce      string      `json:"nonce"`
	Signature  string      `json:"signature"`
}

func parseBig(n json.Number, field string) (*big.Int, error) {
	if n == "" {
		return nil, gateerr.Newf(gateerr.KindInvalidQuote, "quote missing %s", field)
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return nil, gateerr.Newf(gateerr.KindInvalidQuote, "quote %s is not an integer: %q", field, n)
	}
	return v, nil
}

func normalizeQuote(body []byte) (quote.Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(body, &w); err != nil {
		return quote.Quote{}, gateerr.Wrap(gateerr.KindInvalidQuote, "decode quote payload", err)
	}

	itemID, err := parseBig(w.ItemID, "itemId")
	if err != nil {
		return quote.Quote{}, err
	}
	quantity, err := parseBig(w.Quantity, "quantity")
	if err != nil {
		return quote.Quote{}, err
	}
	minPrice, err := parseBig(w.MinPrice, "minPrice")
	if err != nil {
		return quote.Quote{}, err
	}
	nonce, err := quote.DecodeNonce(w.Nonce)
	if err != nil {
		return quote.Quote{}, err
	}
	signature, err := decodeHex(w.Signature)
	if err != nil {
		return quote.Quote{}, gateerr.Wrap(gateerr.KindInvalidQuote, "decode signature", err)
	}

	return quote.Quote{
		Buyer:      w.Buyer,
		ItemID:     itemID,
		Quantity:   quantity,
		MinPrice:   minPrice,
		ValidUntil: w.ValidUntil,
		Nonce:      nonce,
		Signature:  signature,
	}, nil
}
