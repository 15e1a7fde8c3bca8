package idempotency

import (
	"strings"
	"testing"
	"time"
)

func TestDeriveKey_StableWithinBucket(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 30, 5, 0, time.UTC)
	retry := base.Add(40 * time.Second) // same minute bucket

	k1 := DeriveKey("pass-42", base)
	k2 := DeriveKey("pass-42", retry)
	if k1 != k2 {
		t.Errorf("same (item, bucket) derived different keys: %q vs %q", k1, k2)
	}
	if !strings.HasPrefix(k1, "gate-") {
		t.Errorf("key %q missing prefix", k1)
	}
}

func TestDeriveKey_Distinguishes(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 5, 0, time.UTC)

	if DeriveKey("pass-42", at) == DeriveKey("pass-43", at) {
		t.Error("different items derived the same key")
	}
	if DeriveKey("pass-42", at) == DeriveKey("pass-42", at.Add(2*time.Minute)) {
		t.Error("different buckets derived the same key")
	}
}
