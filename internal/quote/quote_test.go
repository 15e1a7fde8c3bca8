package quote

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/chain"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/purchase"
	"github.com/GateStream/orchestrator/internal/retry"
)

var testNow = time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC)

func validQuote() Quote {
	nonce := make([]byte, 32)
	nonce[31] = 1
	return Quote{
		Buyer:      "0x3333333333333333333333333333333333333333",
		ItemID:     big.NewInt(7),
		Quantity:   big.NewInt(1),
		MinPrice:   big.NewInt(5_000_000),
		ValidUntil: testNow.Add(time.Minute).Unix(),
		Nonce:      nonce,
		Signature:  make([]byte, 65),
	}
}

func TestQuoteValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Quote)
		wantOK bool
	}{
		{"valid", func(*Quote) {}, true},
		{"short nonce", func(q *Quote) { q.Nonce = make([]byte, 31) }, false},
		{"long nonce", func(q *Quote) { q.Nonce = make([]byte, 33) }, false},
		{"short signature", func(q *Quote) { q.Signature = make([]byte, 64) }, false},
		{"long signature", func(q *Quote) { q.Signature = make([]byte, 66) }, false},
		{"expired", func(q *Quote) { q.ValidUntil = testNow.Add(-time.Second).Unix() }, false},
		{"expiring now", func(q *Quote) { q.ValidUntil = testNow.Unix() }, false},
		{"missing price", func(q *Quote) { q.MinPrice = nil }, false},
		{"zero quantity", func(q *Quote) { q.Quantity = big.NewInt(0) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuote()
			tt.mutate(&q)
			_, err := q.Validate(testNow)
			if tt.wantOK && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatal("want validation error")
				}
				if gateerr.KindOf(err) != gateerr.KindInvalidQuote {
					t.Errorf("kind = %s, want invalid_quote", gateerr.KindOf(err))
				}
			}
		})
	}
}

func TestDecodeNonce(t *testing.T) {
	got, err := DecodeNonce("0x7f")
	if err != nil {
		t.Fatalf("DecodeNonce: %v", err)
	}
	want := make([]byte, 32)
	want[31] = 0x7f
	if !bytes.Equal(got, want) {
		t.Errorf("nonce = %x", got)
	}

	if _, err := DecodeNonce("0x" + string(make([]byte, 70))); err == nil {
		t.Error("want error for malformed hex")
	}
}

type fakeSource struct {
	calls atomic.Int32
	quote Quote
	errs  []error
}

func (s *fakeSource) RequestQuote(context.Context, Request) (Quote, error) {
	n := int(s.calls.Add(1))
	if n <= len(s.errs) && s.errs[n-1] != nil {
		return Quote{}, s.errs[n-1]
	}
	return s.quote, nil
}

type fakeWallet struct {
	chainID    int64
	switched   []int64
	submits    atomic.Int32
	lastTx     chain.TxRequest
	sendErr    error
	chainIDErr error
}

func (w *fakeWallet) ChainID(context.Context) (int64, error) {
	return w.chainID, w.chainIDErr
}

func (w *fakeWallet) SwitchChain(_ context.Context, id int64) error {
	w.switched = append(w.switched, id)
	w.chainID = id
	return nil
}

func (w *fakeWallet) SendTransaction(_ context.Context, tx chain.TxRequest) (string, error) {
	w.submits.Add(1)
	w.lastTx = tx
	if w.sendErr != nil {
		return "", w.sendErr
	}
	return "0xdeadbeef", nil
}

type staticMetadata struct {
	meta chain.ContractMetadata
	err  error
}

func (m staticMetadata) Get(context.Context) (chain.ContractMetadata, error) {
	return m.meta, m.err
}

func testExecutor(source Source, meta chain.ContractMetadata, opts ...Option) *Executor {
	registry := chain.NewRegistry([]chain.Info{
		{ChainID: 8453, Name: "base", ExplorerURL: "https://basescan.org"},
	})
	cfg := ExecutorConfig{QuoteRetry: retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}}
	opts = append(opts, withClock(func() time.Time { return testNow }))
	return NewExecutor(source, staticMetadata{meta: meta}, registry, cfg, zerolog.Nop(), opts...)
}

func TestExecuteDirect(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}
	wallet := &fakeWallet{chainID: 1}

	handle, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{
		Buyer:    "0x3333333333333333333333333333333333333333",
		ItemID:   "pass-7",
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("ExecuteDirect: %v", err)
	}

	if len(wallet.switched) != 1 || wallet.switched[0] != 8453 {
		t.Errorf("switched = %v, want one switch to 8453", wallet.switched)
	}
	if wallet.lastTx.Value.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Errorf("tx value = %v, want quoted minPrice", wallet.lastTx.Value)
	}
	if wallet.lastTx.To != meta.Address {
		t.Errorf("tx to = %s", wallet.lastTx.To)
	}
	if handle.TxHash != "0xdeadbeef" || handle.ChainID != 8453 {
		t.Errorf("handle = %+v", handle)
	}
	if handle.ExplorerURL != "https://basescan.org/tx/0xdeadbeef" {
		t.Errorf("explorer = %s", handle.ExplorerURL)
	}
}

func TestExecuteDirect_UnsupportedChain(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	meta := chain.ContractMetadata{Address: "0x22", ChainID: 42161}
	wallet := &fakeWallet{chainID: 42161}

	_, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{})
	if gateerr.KindOf(err) != gateerr.KindUnsupportedChain {
		t.Fatalf("err = %v, want unsupported_chain", err)
	}
	if source.calls.Load() != 0 {
		t.Error("quote fetched despite unsupported chain")
	}
	if wallet.submits.Load() != 0 {
		t.Error("transaction submitted despite unsupported chain")
	}
}

func TestExecuteDirect_RejectsBadQuoteBeforeSubmit(t *testing.T) {
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}

	tests := []struct {
		name   string
		mutate func(*Quote)
	}{
		{"31-byte nonce", func(q *Quote) { q.Nonce = make([]byte, 31) }},
		{"64-byte signature", func(q *Quote) { q.Signature = make([]byte, 64) }},
		{"expired one second ago", func(q *Quote) { q.ValidUntil = testNow.Add(-time.Second).Unix() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validQuote()
			tt.mutate(&q)
			source := &fakeSource{quote: q}
			wallet := &fakeWallet{chainID: 8453}

			_, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{})
			if gateerr.KindOf(err) != gateerr.KindInvalidQuote {
				t.Fatalf("err = %v, want invalid_quote", err)
			}
			if wallet.submits.Load() != 0 {
				t.Error("transaction submitted for invalid quote")
			}
		})
	}
}

type driftingWallet struct {
	fakeWallet
	reads int
}

func (w *driftingWallet) ChainID(context.Context) (int64, error) {
	w.reads++
	// Acknowledge the switch but report the old chain on the re-check.
	if w.reads >= 2 {
		return 1, nil
	}
	return w.chainID, nil
}

func TestExecuteDirect_ChainMismatchOnRecheck(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}
	wallet := &driftingWallet{fakeWallet: fakeWallet{chainID: 8453}}

	_, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{})
	if gateerr.KindOf(err) != gateerr.KindChainMismatch {
		t.Fatalf("err = %v, want chain_mismatch", err)
	}
	if wallet.submits.Load() != 0 {
		t.Error("transaction submitted despite chain mismatch")
	}
}

func TestExecuteDirect_QuoteFetchRetried(t *testing.T) {
	source := &fakeSource{
		quote: validQuote(),
		errs:  []error{gateerr.New(gateerr.KindServerError, "flaky upstream")},
	}
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}
	wallet := &fakeWallet{chainID: 8453}

	_, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{})
	if err != nil {
		t.Fatalf("ExecuteDirect: %v", err)
	}
	if got := source.calls.Load(); got != 2 {
		t.Errorf("quote fetched %d times, want 2", got)
	}
	if got := wallet.submits.Load(); got != 1 {
		t.Errorf("submitted %d times, want exactly 1", got)
	}
}

func TestExecuteDirect_SubmitNeverRetried(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}
	wallet := &fakeWallet{chainID: 8453, sendErr: errors.New("rpc timeout")}

	_, err := testExecutor(source, meta).ExecuteDirect(context.Background(), wallet, Request{})
	if err == nil {
		t.Fatal("want submit error to surface")
	}
	if got := wallet.submits.Load(); got != 1 {
		t.Errorf("submitted %d times, want exactly 1", got)
	}
}

type fakeRelayer struct {
	calls atomic.Int32
	keys  []string
	err   error
}

func (r *fakeRelayer) SubmitCryptoPurchase(_ context.Context, req RelayRequest) (purchase.Record, error) {
	r.calls.Add(1)
	r.keys = append(r.keys, req.IdempotencyKey)
	if r.err != nil {
		return purchase.Record{}, r.err
	}
	return purchase.Record{
		PurchaseID: "pur_1",
		ItemID:     req.ItemID,
		Rail:       purchase.RailOnchain,
		Status:     purchase.StatusPending,
	}, nil
}

func TestExecuteRelayed(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	relayer := &fakeRelayer{}
	exec := testExecutor(source, chain.ContractMetadata{ChainID: 8453}, WithRelayer(relayer))

	req := Request{Buyer: "0x33", ItemID: "pass-7", Quantity: 1}
	rec, err := exec.ExecuteRelayed(context.Background(), req, true)
	if err != nil {
		t.Fatalf("ExecuteRelayed: %v", err)
	}
	if rec.Ref() != "pur_1" {
		t.Errorf("ref = %s", rec.Ref())
	}
	if source.calls.Load() != 1 {
		t.Errorf("quote fetched %d times, want 1", source.calls.Load())
	}

	// The same item in the same time bucket derives the same key, so a
	// client retry is recognized upstream as a duplicate.
	if _, err := exec.ExecuteRelayed(context.Background(), req, true); err != nil {
		t.Fatalf("second ExecuteRelayed: %v", err)
	}
	if len(relayer.keys) != 2 || relayer.keys[0] != relayer.keys[1] {
		t.Errorf("keys = %v, want identical", relayer.keys)
	}
	if relayer.keys[0] == "" {
		t.Error("missing idempotency key")
	}
}

func TestExecuteRelayed_WithoutQuote(t *testing.T) {
	source := &fakeSource{quote: validQuote()}
	relayer := &fakeRelayer{}
	exec := testExecutor(source, chain.ContractMetadata{ChainID: 8453}, WithRelayer(relayer))

	if _, err := exec.ExecuteRelayed(context.Background(), Request{ItemID: "pass-7"}, false); err != nil {
		t.Fatalf("ExecuteRelayed: %v", err)
	}
	if source.calls.Load() != 0 {
		t.Error("quote fetched on quote-less relay path")
	}
}

func TestExecuteRelayed_SubmitNeverRetried(t *testing.T) {
	relayer := &fakeRelayer{err: gateerr.New(gateerr.KindServerError, "relayer down")}
	exec := testExecutor(&fakeSource{quote: validQuote()}, chain.ContractMetadata{ChainID: 8453}, WithRelayer(relayer))

	_, err := exec.ExecuteRelayed(context.Background(), Request{ItemID: "pass-7"}, false)
	if err == nil {
		t.Fatal("want relayer error to surface")
	}
	if got := relayer.calls.Load(); got != 1 {
		t.Errorf("relayer called %d times, want exactly 1", got)
	}
}

func TestExecutor_HooksObserveLifecycle(t *testing.T) {
	meta := chain.ContractMetadata{
		Address: "0x2222222222222222222222222222222222222222",
		ChainID: 8453,
	}
	req := Request{
		Buyer:    "0x3333333333333333333333333333333333333333",
		ItemID:   "pass-7",
		Quantity: 1,
	}

	var (
		mu         sync.Mutex
		fetches    []error
		rejections []string
		submits    []string
	)
	hooks := []Option{
		WithQuoteFetchHook(func(err error) {
			mu.Lock()
			fetches = append(fetches, err)
			mu.Unlock()
		}),
		WithRejectionHook(func(reason string) {
			mu.Lock()
			rejections = append(rejections, reason)
			mu.Unlock()
		}),
		WithSubmitHook(func(path string, err error) {
			mu.Lock()
			submits = append(submits, path)
			mu.Unlock()
		}),
	}

	t.Run("direct happy path", func(t *testing.T) {
		fetches, rejections, submits = nil, nil, nil
		exec := testExecutor(&fakeSource{quote: validQuote()}, meta, hooks...)

		if _, err := exec.ExecuteDirect(context.Background(), &fakeWallet{chainID: 8453}, req); err != nil {
			t.Fatalf("ExecuteDirect: %v", err)
		}
		if len(fetches) != 1 || fetches[0] != nil {
			t.Errorf("fetch hook saw %v, want one nil", fetches)
		}
		if len(rejections) != 0 {
			t.Errorf("rejection hook fired on a valid quote: %v", rejections)
		}
		if len(submits) != 1 || submits[0] != "direct" {
			t.Errorf("submit hook saw %v, want [direct]", submits)
		}
	})

	t.Run("rejected quote never reaches submit", func(t *testing.T) {
		fetches, rejections, submits = nil, nil, nil
		q := validQuote()
		q.ValidUntil = testNow.Add(-time.Second).Unix()
		exec := testExecutor(&fakeSource{quote: q}, meta, hooks...)

		if _, err := exec.ExecuteDirect(context.Background(), &fakeWallet{chainID: 8453}, req); err == nil {
			t.Fatal("want expired quote rejected")
		}
		if len(rejections) != 1 || rejections[0] != "invalid_quote" {
			t.Errorf("rejection hook saw %v, want [invalid_quote]", rejections)
		}
		if len(submits) != 0 {
			t.Errorf("submit hook fired for a rejected quote: %v", submits)
		}
	})

	t.Run("relayed path", func(t *testing.T) {
		fetches, rejections, submits = nil, nil, nil
		exec := testExecutor(&fakeSource{quote: validQuote()}, meta, append(hooks, WithRelayer(&fakeRelayer{}))...)

		if _, err := exec.ExecuteRelayed(context.Background(), req, true); err != nil {
			t.Fatalf("ExecuteRelayed: %v", err)
		}
		if len(submits) != 1 || submits[0] != "relayed" {
			t.Errorf("submit hook saw %v, want [relayed]", submits)
		}
	})

	t.Run("fetch errors reach the hook", func(t *testing.T) {
		fetches, rejections, submits = nil, nil, nil
		source := &fakeSource{
			quote: validQuote(),
			errs:  []error{gateerr.New(gateerr.KindNetworkError, "quote service down")},
		}
		exec := testExecutor(source, meta, hooks...)

		if _, err := exec.ExecuteDirect(context.Background(), &fakeWallet{chainID: 8453}, req); err != nil {
			t.Fatalf("ExecuteDirect after retry: %v", err)
		}
		if len(fetches) != 1 || fetches[0] != nil {
			t.Errorf("fetch hook saw %v, want one nil after internal retry", fetches)
		}
	})
}
