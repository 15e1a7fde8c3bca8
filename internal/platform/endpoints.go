package platform

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GateStream/orchestrator/internal/access"
	"github.com/GateStream/orchestrator/internal/chain"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/quote"
)

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// PurchaseStatus implements purchase.StatusSource. A 404 means the server
// has not created the record yet, which is normal right after checkout;
// the tracker keeps polling.
func (c *Client) PurchaseStatus(ctx context.Context, ref string) (purchase.Record, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/purchases/status/"+url.PathEscape(ref), nil, nil)
	if err != nil {
		return purchase.Record{}, false, err
	}
	if resp.status == http.StatusNotFound {
		return purchase.Record{}, false, nil
	}
	if !resp.ok() {
		return purchase.Record{}, false, resp.asError(http.MethodGet, "/purchases/status")
	}

	rec, err := normalizeRecord(resp.body)
	if err != nil {
		return purchase.Record{}, false, err
	}
	if rec.Ref() == "" {
		rec.PurchaseID = ref
	}
	return rec, true, nil
}

// wireToken tolerates both field-name generations of the access-token
// endpoint. Expiry arrives as RFC3339 or unix seconds, or not at all; the
// broker recovers missing expiry from the token itself.
type wireToken struct {
	ItemID           string `json:"itemId"`
	ItemIDSnake      string `json:"item_id"`
	Token            string `json:"token"`
	PlaybackURL      string `json:"playbackUrl"`
	PlaybackURLSnake string `json:"playback_url"`
	EmbedURL         string `json:"embedUrl"`
	EmbedURLSnake    string `json:"embed_url"`
	ExpiresAt        string `json:"expiresAt"`
	ExpiresAtSnake   string `json:"expires_at"`
	ExpiresUnix      int64  `json:"expiresAtUnix"`
	Source           string `json:"source"`
}

// IssueToken implements access.Issuer.
func (c *Client) IssueToken(ctx context.Context, itemID string) (access.Token, error) {
	var w wireToken
	path := "/content/" + url.PathEscape(itemID) + "/access-token"
	if err := c.call(ctx, http.MethodPost, path, nil, &w, nil); err != nil {
		return access.Token{}, err
	}
	if w.Token == "" {
		return access.Token{}, gateerr.New(gateerr.KindServerError, "access-token payload missing token")
	}

	expiresAt := parseWireTime(w.ExpiresAt, w.ExpiresAtSnake)
	if expiresAt.IsZero() && w.ExpiresUnix > 0 {
		expiresAt = time.Unix(w.ExpiresUnix, 0)
	}

	source := access.Source(w.Source)
	if source == "" {
		source = access.SourceChain
	}

	return access.Token{
		ItemID:      coalesce(w.ItemID, w.ItemIDSnake, itemID),
		Token:       w.Token,
		PlaybackURL: coalesce(w.PlaybackURL, w.PlaybackURLSnake),
		EmbedURL:    coalesce(w.EmbedURL, w.EmbedURLSnake),
		ExpiresAt:   expiresAt,
		Source:      source,
	}, nil
}

// RequestQuote implements quote.Source.
func (c *Client) RequestQuote(ctx context.Context, req quote.Request) (quote.Quote, error) {
	path := "/purchases/" + url.PathEscape(req.ItemID) + "/quote"
	resp, err := c.do(ctx, http.MethodPost, path, req, nil)
	if err != nil {
		return quote.Quote{}, err
	}
	if !resp.ok() {
		return quote.Quote{}, resp.asError(http.MethodPost, path)
	}
	return normalizeQuote(resp.body)
}

// SubmitCryptoPurchase implements quote.Relayer. The idempotency key rides
// the standard header so a client retry within the same time bucket is a
// duplicate upstream, not a second charge.
func (c *Client) SubmitCryptoPurchase(ctx context.Context, req quote.RelayRequest) (purchase.Record, error) {
	path := "/purchases/" + url.PathEscape(req.ItemID) + "/crypto"
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey}

	resp, err := c.do(ctx, http.MethodPost, path, req, headers)
	if err != nil {
		return purchase.Record{}, err
	}
	if !resp.ok() {
		return purchase.Record{}, resp.asError(http.MethodPost, path)
	}
	return normalizeRecord(resp.body)
}

// ClaimRequest asks the platform to claim an already-minted pass to the
// caller's wallet.
type ClaimRequest struct {
	PurchaseID     string `json:"purchaseId"`
	WalletAddress  string `json:"walletAddress"`
	IdempotencyKey string `json:"-"`
}

// ClaimResult is the platform's claim outcome.
type ClaimResult struct {
	PurchaseID  string `json:"purchaseId"`
	Status      string `json:"status"`
	TxHash      string `json:"txHash,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// SubmitClaim sends a claim with its idempotency key. Claims are writes
// and never retried locally.
func (c *Client) SubmitClaim(ctx context.Context, req ClaimRequest) (ClaimResult, error) {
	var out ClaimResult
	headers := map[string]string{"Idempotency-Key": req.IdempotencyKey}
	if err := c.call(ctx, http.MethodPost, "/claims", req, &out, headers); err != nil {
		return ClaimResult{}, err
	}
	return out, nil
}

type wirePending struct {
	PurchaseID      string `json:"purchaseId"`
	PurchaseIDSnake string `json:"purchase_id"`
	ItemID          string `json:"itemId"`
	ItemIDSnake     string `json:"item_id"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	CreatedAtSnake  string `json:"created_at"`
}

type wirePendingList struct {
	Pending   []wirePending `json:"pending"`
	Purchases []wirePending `json:"purchases"`
}

// PendingPurchases lists paid-but-unminted purchases.
func (c *Client) PendingPurchases(ctx context.Context) ([]purchase.Pending, error) {
	var w wirePendingList
	if err := c.call(ctx, http.MethodGet, "/purchases/pending", nil, &w, nil); err != nil {
		return nil, err
	}

	items := w.Pending
	if items == nil {
		items = w.Purchases
	}
	out := make([]purchase.Pending, 0, len(items))
	for _, p := range items {
		out = append(out, purchase.Pending{
			PurchaseID: coalesce(p.PurchaseID, p.PurchaseIDSnake),
			ItemID:     coalesce(p.ItemID, p.ItemIDSnake),
			Status:     purchase.PendingStatus(p.Status),
			CreatedAt:  parseWireTime(p.CreatedAt, p.CreatedAtSnake),
		})
	}
	return out, nil
}

type wireMintResult struct {
	PurchaseID      string `json:"purchaseId"`
	PurchaseIDSnake string `json:"purchase_id"`
	ItemID          string `json:"itemId"`
	ItemIDSnake     string `json:"item_id"`
	Outcome         string `json:"outcome"`
	Status          string `json:"status"` // older generation name for outcome
	TxHash          string `json:"txHash"`
	TxHashSnake     string `json:"tx_hash"`
}

type wireMintResponse struct {
	Results []wireMintResult `json:"results"`
}

// MintPending asks the platform to mint every pending purchase to the
// wallet. One shot per call; duplicate-mint risk forbids local retry.
func (c *Client) MintPending(ctx context.Context, walletAddress string) ([]purchase.MintResult, error) {
	body := map[string]string{"walletAddress": walletAddress}
	var w wireMintResponse
	if err := c.call(ctx, http.MethodPost, "/purchases/mint-pending", body, &w, nil); err != nil {
		return nil, err
	}

	out := make([]purchase.MintResult, 0, len(w.Results))
	for _, r := range w.Results {
		out = append(out, purchase.MintResult{
			PurchaseID: coalesce(r.PurchaseID, r.PurchaseIDSnake),
			ItemID:     coalesce(r.ItemID, r.ItemIDSnake),
			Outcome:    purchase.MintOutcome(coalesce(r.Outcome, r.Status)),
			TxHash:     coalesce(r.TxHash, r.TxHashSnake),
		})
	}
	return out, nil
}

// AccessFact is the platform's answer to "does the caller hold this item".
type AccessFact struct {
	ItemID    string    `json:"itemId"`
	HasAccess bool      `json:"hasAccess"`
	Balance   int64     `json:"balance"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type wireAccessFact struct {
	ItemID      string `json:"itemId"`
	ItemIDSnake string `json:"item_id"`
	HasAccess   bool   `json:"hasAccess"`
	HasAccessS  bool   `json:"has_access"`
	Balance     int64  `json:"balance"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
}

func (w wireAccessFact) toFact() AccessFact {
	return AccessFact{
		ItemID:    coalesce(w.ItemID, w.ItemIDSnake),
		HasAccess: w.HasAccess || w.HasAccessS,
		Balance:   w.Balance,
		Source:    w.Source,
		Timestamp: parseWireTime(w.Timestamp),
	}
}

// AccessFact fetches the access fact for a single item.
func (c *Client) AccessFact(ctx context.Context, itemID string) (AccessFact, error) {
	var w wireAccessFact
	path := "/access?itemId=" + url.QueryEscape(itemID)
	if err := c.call(ctx, http.MethodGet, path, nil, &w, nil); err != nil {
		return AccessFact{}, err
	}
	fact := w.toFact()
	if fact.ItemID == "" {
		fact.ItemID = itemID
	}
	return fact, nil
}

type wireAccessList struct {
	Items  []wireAccessFact `json:"items"`
	Access []wireAccessFact `json:"access"`
}

// AccessList fetches access facts for everything the caller holds.
func (c *Client) AccessList(ctx context.Context) ([]AccessFact, error) {
	var w wireAccessList
	if err := c.call(ctx, http.MethodGet, "/access/list", nil, &w, nil); err != nil {
		return nil, err
	}

	items := w.Items
	if items == nil {
		items = w.Access
	}
	out := make([]AccessFact, 0, len(items))
	for _, f := range items {
		out = append(out, f.toFact())
	}
	return out, nil
}

// ContractMetadata implements chain.MetadataSource.
func (c *Client) ContractMetadata(ctx context.Context) (chain.ContractMetadata, error) {
	var meta chain.ContractMetadata
	if err := c.call(ctx, http.MethodGet, "/contracts/pass", nil, &meta, nil); err != nil {
		return chain.ContractMetadata{}, err
	}
	if meta.Address == "" || meta.ChainID == 0 {
		return chain.ContractMetadata{}, gateerr.New(gateerr.KindServerError, "contract metadata missing address or chain id")
	}
	return meta, nil
}
