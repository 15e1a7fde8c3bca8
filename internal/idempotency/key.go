// Package idempotency keeps retried writes from becoming duplicate charges.
// It provides deterministic key derivation for outbound submissions (relayer
// purchases, claims) and HTTP replay middleware for the facade's own
// money-moving endpoints.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// KeyBucket is the time window within which two submissions for the same
// item are considered the same logical attempt. A client retrying a failed
// POST lands in the same bucket and therefore reuses the same key.
const KeyBucket = time.Minute

// DeriveKey produces the idempotency key for a purchase or claim submission
// from the item and the attempt time. The same (itemID, bucket) pair always
// yields the same key, so a blind client retry cannot register as a new
// charge with the relayer.
func DeriveKey(itemID string, at time.Time) string {
	bucket := at.UTC().Truncate(KeyBucket).Unix()
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", itemID, bucket)))
	return "gate-" + hex.EncodeToString(sum[:16])
}
