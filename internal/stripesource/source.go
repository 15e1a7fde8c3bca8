// Package stripesource resolves off-chain purchase status straight from a
// Stripe Checkout session. Deployments whose platform lacks a status
// endpoint point the tracker here instead; the session id doubles as the
// purchase reference.
package stripesource

import (
	"context"
	"errors"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"

	"github.com/GateStream/orchestrator/internal/config"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/purchase"
)

// SessionRetriever fetches one checkout session. The default goes through
// stripe-go; tests substitute a fake.
type SessionRetriever interface {
	Session(ctx context.Context, id string) (*stripeapi.CheckoutSession, error)
}

type apiRetriever struct{}

func (apiRetriever) Session(ctx context.Context, id string) (*stripeapi.CheckoutSession, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx
	return session.Get(id, params)
}

// Source implements purchase.StatusSource over Stripe checkout sessions.
type Source struct {
	retriever SessionRetriever
}

// New sets up stripe-go with the provided credentials.
func New(cfg config.StripeConfig) *Source {
	stripeapi.Key = cfg.SecretKey
	return &Source{retriever: apiRetriever{}}
}

// NewWithRetriever builds a source over a custom retriever.
func NewWithRetriever(r SessionRetriever) *Source {
	return &Source{retriever: r}
}

// PurchaseStatus resolves a checkout session into the canonical record.
// Stripe only knows the payment leg, so a paid session reports processing;
// minting progress comes from the platform once the record exists there.
func (s *Source) PurchaseStatus(ctx context.Context, ref string) (purchase.Record, bool, error) {
	if !strings.HasPrefix(ref, "cs_") {
		return purchase.Record{}, false, gateerr.Newf(gateerr.KindNotFound,
			"ref %q is not a checkout session id", ref)
	}

	sess, err := s.retriever.Session(ctx, ref)
	if err != nil {
		var stripeErr *stripeapi.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.HTTPStatusCode == 404 || stripeErr.Code == stripeapi.ErrorCodeResourceMissing {
				return purchase.Record{}, false, nil
			}
			if stripeErr.HTTPStatusCode == 429 {
				return purchase.Record{}, false, gateerr.Wrap(gateerr.KindRateLimited, "stripe session fetch", err)
			}
			return purchase.Record{}, false, gateerr.Wrap(gateerr.KindServerError, "stripe session fetch", err)
		}
		return purchase.Record{}, false, gateerr.Wrap(gateerr.Classify(err), "stripe session fetch", err)
	}

	rec := purchase.Record{
		SessionID: sess.ID,
		Rail:      purchase.RailOffchain,
		Status:    sessionStatus(sess),
		Amount:    sess.AmountTotal,
		UpdatedAt: time.Now(),
	}
	if sess.Currency != "" {
		rec.Currency = string(sess.Currency)
	}
	if itemID, ok := sess.Metadata["item_id"]; ok {
		rec.ItemID = itemID
	} else if sess.ClientReferenceID != "" {
		rec.ItemID = sess.ClientReferenceID
	}
	if purchaseID, ok := sess.Metadata["purchase_id"]; ok {
		rec.PurchaseID = purchaseID
	}
	return rec, true, nil
}

func sessionStatus(sess *stripeapi.CheckoutSession) purchase.Status {
	switch sess.Status {
	case stripeapi.CheckoutSessionStatusExpired:
		return purchase.StatusFailed
	case stripeapi.CheckoutSessionStatusComplete:
		switch sess.PaymentStatus {
		case stripeapi.CheckoutSessionPaymentStatusPaid,
			stripeapi.CheckoutSessionPaymentStatusNoPaymentRequired:
			return purchase.StatusProcessing
		default:
			return purchase.StatusPending
		}
	default:
		return purchase.StatusPending
	}
}
