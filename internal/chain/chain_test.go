package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry([]Info{
		{ChainID: 8453, Name: "base", ExplorerURL: "https://basescan.org/"},
		{ChainID: 1, Name: "mainnet", ExplorerURL: "https://etherscan.io"},
		{ChainID: 137, Name: "polygon"},
	})

	if !registry.Supported(8453) || !registry.Supported(1) {
		t.Error("configured chains not supported")
	}
	if registry.Supported(42161) {
		t.Error("unregistered chain reported as supported")
	}

	got := registry.ExplorerTxURL(8453, "0xabc")
	if got != "https://basescan.org/tx/0xabc" {
		t.Errorf("ExplorerTxURL = %q", got)
	}
	if registry.ExplorerTxURL(137, "0xabc") != "" {
		t.Error("chain without explorer should yield empty URL")
	}
	if registry.ExplorerTxURL(8453, "") != "" {
		t.Error("empty hash should yield empty URL")
	}
}

type countingMetadataSource struct {
	calls atomic.Int32
	meta  ContractMetadata
	err   error
}

func (s *countingMetadataSource) ContractMetadata(context.Context) (ContractMetadata, error) {
	s.calls.Add(1)
	if s.err != nil {
		return ContractMetadata{}, s.err
	}
	return s.meta, nil
}

func TestMetadataCache(t *testing.T) {
	source := &countingMetadataSource{meta: ContractMetadata{
		Address: "0x1111111111111111111111111111111111111111",
		ChainID: 8453,
	}}
	cache := NewMetadataCache(source, time.Minute)

	for i := 0; i < 3; i++ {
		meta, err := cache.Get(context.Background())
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if meta.ChainID != 8453 {
			t.Errorf("meta = %+v", meta)
		}
	}
	if got := source.calls.Load(); got != 1 {
		t.Errorf("source fetched %d times, want 1", got)
	}
}

func TestMetadataCache_ServesStaleOnFetchFailure(t *testing.T) {
	source := &countingMetadataSource{meta: ContractMetadata{ChainID: 1}}
	cache := NewMetadataCache(source, time.Nanosecond) // everything is stale

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("initial Get: %v", err)
	}

	source.err = errors.New("metadata endpoint down")
	meta, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("stale Get should not fail: %v", err)
	}
	if meta.ChainID != 1 {
		t.Errorf("stale meta = %+v", meta)
	}
}

func TestMetadataCache_FirstFetchFailureSurfaces(t *testing.T) {
	source := &countingMetadataSource{err: errors.New("down")}
	cache := NewMetadataCache(source, time.Minute)
	if _, err := cache.Get(context.Background()); err == nil {
		t.Error("want error when no metadata has ever been fetched")
	}
}

func TestEncodePurchaseCall(t *testing.T) {
	meta := ContractMetadata{Address: "0x2222222222222222222222222222222222222222", ChainID: 8453}
	var nonce [32]byte
	nonce[31] = 0x7f

	call := PurchaseCall{
		Buyer:      "0x3333333333333333333333333333333333333333",
		ItemID:     big.NewInt(42),
		Quantity:   big.NewInt(1),
		MinPrice:   big.NewInt(1_000_000),
		ValidUntil: big.NewInt(1_760_000_000),
		Nonce:      nonce,
		Signature:  make([]byte, 65),
	}

	data, err := EncodePurchaseCall(meta, call)
	if err != nil {
		t.Fatalf("EncodePurchaseCall: %v", err)
	}

	// 4-byte selector + 7 head words + dynamic bytes tail (32 len + 96 data).
	if len(data) != 4+7*32+32+96 {
		t.Errorf("calldata length = %d", len(data))
	}

	// The buyer address lands in the first argument word.
	word := hex.EncodeToString(data[4:36])
	if word != "0000000000000000000000003333333333333333333333333333333333333333" {
		t.Errorf("buyer word = %s", word)
	}
}

func TestEncodePurchaseCall_InvalidBuyer(t *testing.T) {
	_, err := EncodePurchaseCall(ContractMetadata{}, PurchaseCall{
		Buyer:      "not-an-address",
		ItemID:     big.NewInt(1),
		Quantity:   big.NewInt(1),
		MinPrice:   big.NewInt(1),
		ValidUntil: big.NewInt(1),
		Signature:  make([]byte, 65),
	})
	if err == nil {
		t.Error("want error for malformed buyer address")
	}
}
