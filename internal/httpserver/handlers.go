package httpserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GateStream/orchestrator/internal/caches"
	"github.com/GateStream/orchestrator/internal/idempotency"
	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/platform"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/quote"
	"github.com/GateStream/orchestrator/pkg/responders"
)

// getAccess answers "can this caller play the item right now" with a
// playback token, served from cache when fresh.
func (h *handlers) getAccess(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		writeBadRequest(w, "missing itemId")
		return
	}

	token, err := h.deps.Broker.GetToken(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, token)
}

type quoteRequestBody struct {
	Buyer        string `json:"buyer"`
	Quantity     int64  `json:"quantity"`
	ValidSeconds int64  `json:"validSeconds,omitempty"`
}

// quoteResponse re-encodes byte fields as 0x-hex for the wire.
type quoteResponse struct {
	Buyer      string `json:"buyer"`
	ItemID     string `json:"itemId"`
	Quantity   string `json:"quantity"`
	MinPrice   string `json:"minPrice"`
	ValidUntil int64  `json:"validUntil"`
	Nonce      string `json:"nonce"`
	Signature  string `json:"signature"`
}

func (h *handlers) requestQuote(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var body quoteRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if body.Quantity <= 0 {
		body.Quantity = 1
	}

	q, err := h.deps.Quotes.RequestQuote(r.Context(), quote.Request{
		Buyer:        body.Buyer,
		ItemID:       itemID,
		Quantity:     body.Quantity,
		ValidSeconds: body.ValidSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, quoteResponse{
		Buyer:      q.Buyer,
		ItemID:     q.ItemID.String(),
		Quantity:   q.Quantity.String(),
		MinPrice:   q.MinPrice.String(),
		ValidUntil: q.ValidUntil,
		Nonce:      "0x" + hex.EncodeToString(q.Nonce),
		Signature:  "0x" + hex.EncodeToString(q.Signature),
	})
}

type cryptoPurchaseBody struct {
	Buyer    string `json:"buyer"`
	Quantity int64  `json:"quantity"`
}

// submitCryptoPurchase runs the relayed on-chain path and starts tracking
// the accepted purchase.
func (h *handlers) submitCryptoPurchase(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")

	var body cryptoPurchaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if body.Buyer == "" {
		writeBadRequest(w, "missing buyer")
		return
	}
	if body.Quantity <= 0 {
		body.Quantity = 1
	}

	rec, err := h.deps.Executor.ExecuteRelayed(r.Context(), quote.Request{
		Buyer:    body.Buyer,
		ItemID:   itemID,
		Quantity: body.Quantity,
	}, !h.cfg.Quote.SkipRelayQuote)
	if err != nil {
		writeError(w, err)
		return
	}

	if ref := rec.Ref(); ref != "" {
		h.track(ref)
	}
	responders.JSON(w, http.StatusAccepted, rec)
}

type claimBody struct {
	PurchaseID    string `json:"purchaseId"`
	WalletAddress string `json:"walletAddress"`
}

func (h *handlers) submitClaim(w http.ResponseWriter, r *http.Request) {
	var body claimBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if body.PurchaseID == "" || body.WalletAddress == "" {
		writeBadRequest(w, "missing purchaseId or walletAddress")
		return
	}

	result, err := h.deps.Claimer.SubmitClaim(r.Context(), platform.ClaimRequest{
		PurchaseID:     body.PurchaseID,
		WalletAddress:  body.WalletAddress,
		IdempotencyKey: idempotency.DeriveKey(body.PurchaseID, time.Now()),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// A claim changes ownership; the next list read must see it.
	if err := h.deps.Coordinator.PendingResolved(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("facade.claim_invalidate_failed")
	}
	responders.JSON(w, http.StatusOK, result)
}

func (h *handlers) getPurchase(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")

	if handle, ok := h.tracks.get(ref); ok {
		if rec, have := handle.Record(); have {
			responders.JSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := h.deps.Records.Get(r.Context(), ref)
	if errors.Is(err, purchase.ErrRecordNotFound) {
		writeNotFound(w, "purchase not observed")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, rec)
}

type trackResponse struct {
	Ref      string `json:"ref"`
	Tracking bool   `json:"tracking"`
	Started  bool   `json:"started"`
}

func (h *handlers) startTracking(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")
	if ref == "" {
		writeBadRequest(w, "missing purchase ref")
		return
	}

	started := h.track(ref)
	responders.JSON(w, http.StatusAccepted, trackResponse{
		Ref:      ref,
		Tracking: true,
		Started:  started,
	})
}

func (h *handlers) stopTracking(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "id")
	if !h.tracks.stop(ref) {
		writeNotFound(w, "no active tracker for ref")
		return
	}
	responders.JSON(w, http.StatusOK, trackResponse{Ref: ref, Tracking: false})
}

// track starts (or joins) background polling for a purchase ref. The
// tracker outlives the originating request, so it runs on a fresh context
// carrying only the logger.
func (h *handlers) track(ref string) bool {
	_, started := h.tracks.acquire(ref, func() *purchase.Handle {
		ctx := logger.WithContext(context.Background(), h.logger)
		var lastStatus purchase.Status
		return h.deps.Tracker.Track(ctx, ref, purchase.WithOnUpdate(func(rec purchase.Record) {
			if rec.Status == lastStatus {
				return
			}
			lastStatus = rec.Status
			h.onStatusChange(ctx, rec)
		}))
	})
	return started
}

// onStatusChange runs once per observed status transition: refresh the
// dependent caches as soon as the purchase grants access, and record the
// terminal outcome.
func (h *handlers) onStatusChange(ctx context.Context, rec purchase.Record) {
	if rec.Status.AccessGranting() && rec.ItemID != "" {
		if err := h.deps.Coordinator.PurchaseSettled(ctx, rec.ItemID); err != nil {
			h.logger.Warn().Err(err).Str("item_id", rec.ItemID).Msg("facade.invalidate_failed")
		}
		h.deps.Broker.ClearCache(rec.ItemID)
	}
	if rec.Status.Terminal() && h.deps.Metrics != nil {
		h.deps.Metrics.ObservePurchaseSettled(string(rec.Rail), string(rec.Status), rec.Currency, rec.Amount)
	}
}

func (h *handlers) listPending(w http.ResponseWriter, r *http.Request) {
	pending, _, err := caches.GetJSON(r.Context(), h.deps.Cache, caches.KeyPendingPurchases,
		h.cacheTTL(), h.deps.Reconciler.Pending)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// listAccess reports every item the caller currently has access to, served
// from the dependent-list cache between settlements.
func (h *handlers) listAccess(w http.ResponseWriter, r *http.Request) {
	facts, _, err := caches.GetJSON(r.Context(), h.deps.Cache, caches.KeyAccessList,
		h.cacheTTL(), h.deps.Access.AccessList)
	if err != nil {
		writeError(w, err)
		return
	}
	responders.JSON(w, http.StatusOK, map[string]any{"access": facts})
}

func (h *handlers) cacheTTL() time.Duration {
	if ttl := h.cfg.Cache.TTL.Duration; ttl > 0 {
		return ttl
	}
	return 10 * time.Minute
}

type mintPendingBody struct {
	WalletAddress string `json:"walletAddress"`
}

func (h *handlers) mintPending(w http.ResponseWriter, r *http.Request) {
	var body mintPendingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if body.WalletAddress == "" {
		writeBadRequest(w, "missing walletAddress")
		return
	}

	results, err := h.deps.Reconciler.MintPending(r.Context(), body.WalletAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.deps.Metrics != nil {
		outcomes := make([]string, 0, len(results))
		for _, res := range results {
			outcomes = append(outcomes, string(res.Outcome))
		}
		h.deps.Metrics.ObserveMintBatch(outcomes)
	}
	responders.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.deps.Version,
		"uptime_seconds": int64(time.Since(serverStartTime).Seconds()),
		"breakers": map[string]string{
			"platform": h.deps.Breakers.State("platform_api"),
			"stripe":   h.deps.Breakers.State("stripe_api"),
		},
	})
}
