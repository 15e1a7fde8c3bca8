package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/chain"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/idempotency"
	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/retry"
)

// TxHandle is what a direct purchase hands back: the submitted transaction
// and, when the chain has a configured explorer, a human-facing URL.
type TxHandle struct {
	TxHash      string `json:"txHash"`
	ChainID     int64  `json:"chainId"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// RelayRequest is a purchase submission handed to the backend relayer.
type RelayRequest struct {
	ItemID         string `json:"itemId"`
	Buyer          string `json:"buyer"`
	Quantity       int64  `json:"quantity"`
	Quote          *Quote `json:"quote,omitempty"`
	IdempotencyKey string `json:"-"`
}

// Relayer submits a purchase on the caller's behalf. The accepted payload
// is a purchase record trackable like any other.
type Relayer interface {
	SubmitCryptoPurchase(ctx context.Context, req RelayRequest) (purchase.Record, error)
}

// Metadata resolves the pass contract a purchase executes against.
type Metadata interface {
	Get(ctx context.Context) (chain.ContractMetadata, error)
}

// ExecutorConfig tunes quote fetching. Submission is never retried, so
// only the read side is configurable.
type ExecutorConfig struct {
	QuoteRetry retry.Policy
}

// Executor runs the two on-chain purchase sub-paths. The direct path
// drives a wallet; the relayed path hands the submission to the platform's
// relayer with a deterministic idempotency key.
type Executor struct {
	source   Source
	metadata Metadata
	registry *chain.Registry
	relayer  Relayer
	cfg      ExecutorConfig
	log      zerolog.Logger

	// Metrics hooks; nil-safe.
	onQuoteFetch func(err error)
	onRejection  func(reason string)
	onSubmit     func(path string, err error)

	now func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

// WithRelayer enables the relayed path.
func WithRelayer(r Relayer) Option {
	return func(e *Executor) { e.relayer = r }
}

// WithQuoteFetchHook observes quote fetch outcomes, for metrics.
func WithQuoteFetchHook(fn func(err error)) Option {
	return func(e *Executor) { e.onQuoteFetch = fn }
}

// WithRejectionHook observes quotes rejected before any submission.
func WithRejectionHook(fn func(reason string)) Option {
	return func(e *Executor) { e.onRejection = fn }
}

// WithSubmitHook observes submissions on either path.
func WithSubmitHook(fn func(path string, err error)) Option {
	return func(e *Executor) { e.onSubmit = fn }
}

func withClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor builds an executor for the direct path; pass WithRelayer to
// enable relayed submission as well.
func NewExecutor(source Source, metadata Metadata, registry *chain.Registry, cfg ExecutorConfig, log zerolog.Logger, opts ...Option) *Executor {
	if cfg.QuoteRetry.MaxAttempts == 0 {
		cfg.QuoteRetry = retry.Policy{MaxAttempts: 2, BaseDelay: 300 * time.Millisecond}
	}
	e := &Executor{
		source:   source,
		metadata: metadata,
		registry: registry,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// fetchQuote pulls a fresh quote, retrying transient failures. Every
// purchase attempt gets its own quote; nothing is reused.
func (e *Executor) fetchQuote(ctx context.Context, req Request) (Quote, error) {
	q, err := retry.Do(ctx, e.cfg.QuoteRetry, func() (Quote, error) {
		return e.source.RequestQuote(ctx, req)
	})
	if e.onQuoteFetch != nil {
		e.onQuoteFetch(err)
	}
	return q, err
}

// validateQuote runs Validate and reports rejections to the metrics hook.
func (e *Executor) validateQuote(q Quote) ([32]byte, error) {
	nonce, err := q.Validate(e.now())
	if err != nil && e.onRejection != nil {
		e.onRejection(string(gateerr.KindOf(err)))
	}
	return nonce, err
}

// ExecuteDirect runs the wallet-driven purchase: resolve contract
// metadata, bind the wallet to the contract's chain, fetch and validate a
// quote, then submit the call with value equal to the quoted minPrice.
// Once SendTransaction returns a hash the purchase is in flight and must
// be tracked, never resubmitted.
func (e *Executor) ExecuteDirect(ctx context.Context, wallet chain.Wallet, req Request) (TxHandle, error) {
	log := logger.FromContext(ctx)

	meta, err := e.metadata.Get(ctx)
	if err != nil {
		return TxHandle{}, gateerr.Wrap(gateerr.KindServerError, "resolve contract metadata", err)
	}

	// The expected chain comes from the contract metadata, never from
	// whatever chain the wallet happens to be on.
	if !e.registry.Supported(meta.ChainID) {
		return TxHandle{}, gateerr.Newf(gateerr.KindUnsupportedChain,
			"no adapter for chain %d", meta.ChainID)
	}

	current, err := wallet.ChainID(ctx)
	if err != nil {
		return TxHandle{}, gateerr.Wrap(gateerr.KindNetworkError, "read wallet chain", err)
	}
	if current != meta.ChainID {
		if err := wallet.SwitchChain(ctx, meta.ChainID); err != nil {
			return TxHandle{}, gateerr.Wrap(gateerr.KindChainMismatch, "switch chain", err)
		}
	}

	q, err := e.fetchQuote(ctx, req)
	if err != nil {
		return TxHandle{}, err
	}

	nonce, err := e.validateQuote(q)
	if err != nil {
		return TxHandle{}, err
	}

	// Re-confirm the binding after the switch; some wallets acknowledge a
	// switch request before it takes effect.
	current, err = wallet.ChainID(ctx)
	if err != nil {
		return TxHandle{}, gateerr.Wrap(gateerr.KindNetworkError, "re-read wallet chain", err)
	}
	if current != meta.ChainID {
		return TxHandle{}, gateerr.Newf(gateerr.KindChainMismatch,
			"wallet bound to chain %d, contract expects %d", current, meta.ChainID)
	}

	data, err := chain.EncodePurchaseCall(meta, chain.PurchaseCall{
		Buyer:      q.Buyer,
		ItemID:     q.ItemID,
		Quantity:   q.Quantity,
		MinPrice:   q.MinPrice,
		ValidUntil: big.NewInt(q.ValidUntil),
		Nonce:      nonce,
		Signature:  q.Signature,
	})
	if err != nil {
		return TxHandle{}, gateerr.Wrap(gateerr.KindInvalidQuote, "encode purchase call", err)
	}

	// Transaction value must equal the quoted minPrice exactly; the
	// contract rejects both under- and overpayment and the price is never
	// recomputed client-side.
	txHash, err := wallet.SendTransaction(ctx, chain.TxRequest{
		ChainID: meta.ChainID,
		To:      meta.Address,
		Value:   q.MinPrice,
		Data:    data,
	})
	if e.onSubmit != nil {
		e.onSubmit("direct", err)
	}
	if err != nil {
		return TxHandle{}, gateerr.Wrap(gateerr.KindServerError, "submit purchase transaction", err)
	}

	log.Info().
		Str("event", "quote.direct_submitted").
		Str("item_id", req.ItemID).
		Int64("chain_id", meta.ChainID).
		Str("tx_hash", txHash).
		Msg("purchase transaction submitted")

	return TxHandle{
		TxHash:      txHash,
		ChainID:     meta.ChainID,
		ExplorerURL: e.registry.ExplorerTxURL(meta.ChainID, txHash),
	}, nil
}

// ExecuteRelayed submits the purchase through the relayer. When withQuote
// is set a fresh quote is fetched and attached; otherwise the relayer
// quotes internally. The idempotency key is derived from the item and the
// current minute bucket, so a client retry within the bucket lands on the
// same upstream submission instead of a duplicate charge.
func (e *Executor) ExecuteRelayed(ctx context.Context, req Request, withQuote bool) (purchase.Record, error) {
	if e.relayer == nil {
		return purchase.Record{}, gateerr.New(gateerr.KindServerError, "no relayer configured")
	}
	log := logger.FromContext(ctx)

	relay := RelayRequest{
		ItemID:         req.ItemID,
		Buyer:          req.Buyer,
		Quantity:       req.Quantity,
		IdempotencyKey: idempotency.DeriveKey(req.ItemID, e.now()),
	}

	if withQuote {
		q, err := e.fetchQuote(ctx, req)
		if err != nil {
			return purchase.Record{}, err
		}
		if _, err := e.validateQuote(q); err != nil {
			return purchase.Record{}, err
		}
		relay.Quote = &q
	}

	// One shot. The relayer may have accepted the purchase even when the
	// response is lost, so errors surface as-is with no local retry.
	rec, err := e.relayer.SubmitCryptoPurchase(ctx, relay)
	if e.onSubmit != nil {
		e.onSubmit("relayed", err)
	}
	if err != nil {
		return purchase.Record{}, err
	}

	log.Info().
		Str("event", "quote.relayed_accepted").
		Str("item_id", req.ItemID).
		Str("ref", rec.Ref()).
		Msg("relayed purchase accepted")

	return rec, nil
}
