package access

import (
	"context"
	"sync"
	"time"

	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/logger"
	"github.com/GateStream/orchestrator/internal/retry"
)

// Issuer mints a fresh playback token for an item. Implementations classify
// failures into gateerr kinds.
type Issuer interface {
	IssueToken(ctx context.Context, itemID string) (Token, error)
}

// Authenticator re-establishes the caller's session when the platform
// reports Unauthorized. Interactive in real deployments, faked in tests.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// BrokerConfig tunes caching and denial handling.
type BrokerConfig struct {
	// BufferWindow is how close to expiry a cached token may get before it
	// is considered stale and re-fetched.
	BufferWindow time.Duration
	// DefaultTTL is assumed when the upstream payload carries no expiry and
	// the token is not a parseable JWT.
	DefaultTTL time.Duration
	// MaxRetries bounds the NoAccess retry loop: entitlement may lag payment
	// confirmation by a few seconds.
	MaxRetries int
	// RetryDelay is the fixed delay between NoAccess retries.
	RetryDelay time.Duration
	// AutoAuth enables the single re-authentication attempt on Unauthorized.
	AutoAuth bool
}

// DefaultBrokerConfig returns the broker defaults.
func DefaultBrokerConfig() BrokerConfig {
	return BrokerConfig{
		BufferWindow: 5 * time.Minute,
		DefaultTTL:   time.Hour,
		MaxRetries:   3,
		RetryDelay:   3 * time.Second,
		AutoAuth:     true,
	}
}

// Broker requests, caches, and re-fetches playback tokens. The cache is a
// last-writer-wins map keyed by item id; a given item is driven by at most
// one broker flow at a time in normal operation.
type Broker struct {
	issuer Issuer
	auth   Authenticator
	cfg    BrokerConfig

	mu           sync.Mutex
	cache        map[string]Token
	authInFlight map[string]bool

	// Metrics hooks; nil-safe.
	onCacheHit func(itemID string)
	onFetch    func(itemID string, err error)
	now        func() time.Time
}

// BrokerOption configures Broker construction.
type BrokerOption func(*Broker)

// WithAuthenticator attaches the re-authentication collaborator.
func WithAuthenticator(auth Authenticator) BrokerOption {
	return func(b *Broker) {
		b.auth = auth
	}
}

// WithCacheHitHook observes cache hits, for metrics.
func WithCacheHitHook(fn func(itemID string)) BrokerOption {
	return func(b *Broker) {
		b.onCacheHit = fn
	}
}

// WithFetchHook observes fresh fetch outcomes, for metrics.
func WithFetchHook(fn func(itemID string, err error)) BrokerOption {
	return func(b *Broker) {
		b.onFetch = fn
	}
}

// withClock overrides time for tests.
func withClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.now = now
	}
}

// NewBroker builds a token broker over an issuer.
func NewBroker(issuer Issuer, cfg BrokerConfig, opts ...BrokerOption) *Broker {
	if cfg.BufferWindow <= 0 {
		cfg.BufferWindow = DefaultBrokerConfig().BufferWindow
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultBrokerConfig().DefaultTTL
	}
	b := &Broker{
		issuer:       issuer,
		cfg:          cfg,
		cache:        make(map[string]Token),
		authInFlight: make(map[string]bool),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GetToken returns a playback token for the item, serving from cache while
// the cached token stays outside the buffer window. This cache-hit path is
// the dominant cost saver for replay/seek-heavy playback.
func (b *Broker) GetToken(ctx context.Context, itemID string) (Token, error) {
	now := b.now()

	b.mu.Lock()
	cached, ok := b.cache[itemID]
	b.mu.Unlock()

	if ok && cached.Fresh(now, b.cfg.BufferWindow) {
		if b.onCacheHit != nil {
			b.onCacheHit(itemID)
		}
		cached.Source = SourceCache
		return cached, nil
	}

	return b.fetch(ctx, itemID)
}

// ClearCache drops cached tokens for the given items, or all tokens when
// none are named. Called after a purchase completes so the next fetch is
// guaranteed fresh.
func (b *Broker) ClearCache(itemIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(itemIDs) == 0 {
		b.cache = make(map[string]Token)
		return
	}
	for _, itemID := range itemIDs {
		delete(b.cache, itemID)
	}
}

// fetch issues a fresh token, absorbing the two denial shapes the platform
// produces during the access-granting window: Unauthorized (session lapsed,
// one auto-auth retry) and NoAccess (entitlement lagging payment, bounded
// fixed-delay retries).
func (b *Broker) fetch(ctx context.Context, itemID string) (Token, error) {
	log := logger.FromContext(ctx)
	authRetried := false

	for attempt := 0; ; attempt++ {
		token, err := b.issue(ctx, itemID)
		if b.onFetch != nil {
			b.onFetch(itemID, err)
		}
		if err == nil {
			now := b.now()
			token.ItemID = itemID
			token.ExpiresAt = tokenExpiry(token, now, b.cfg.DefaultTTL)
			if !token.ExpiresAt.After(now) {
				// Upstream handed out a token that is already expired.
				// Never cache it; a consumer must always receive a future
				// expiry.
				return Token{}, gateerr.Newf(gateerr.KindServerError,
					"token for %s expired at issuance", itemID)
			}
			b.mu.Lock()
			b.cache[itemID] = token
			b.mu.Unlock()
			return token, nil
		}

		switch gateerr.KindOf(err) {
		case gateerr.KindUnauthorized:
			if !b.cfg.AutoAuth || b.auth == nil || authRetried {
				return Token{}, err
			}
			if !b.beginAuth(itemID) {
				// Another flow is already re-authenticating this item; do
				// not spawn a concurrent attempt.
				return Token{}, err
			}
			authErr := b.auth.Authenticate(ctx)
			b.endAuth(itemID)
			if authErr != nil {
				return Token{}, err
			}
			authRetried = true
			log.Debug().Str("item_id", itemID).Msg("access.reauthenticated")
			continue

		case gateerr.KindNoAccess:
			if attempt >= b.cfg.MaxRetries {
				return Token{}, err
			}
			log.Debug().
				Str("item_id", itemID).
				Int("attempt", attempt+1).
				Msg("access.entitlement_lagging")
			if werr := b.wait(ctx); werr != nil {
				return Token{}, err
			}
			continue

		default:
			return Token{}, err
		}
	}
}

// issue wraps the raw issuer call with the transient-read retry policy.
func (b *Broker) issue(ctx context.Context, itemID string) (Token, error) {
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: 300 * time.Millisecond}
	return retry.Do(ctx, policy, func() (Token, error) {
		return b.issuer.IssueToken(ctx, itemID)
	})
}

func (b *Broker) wait(ctx context.Context) error {
	timer := time.NewTimer(b.cfg.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (b *Broker) beginAuth(itemID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authInFlight[itemID] {
		return false
	}
	b.authInFlight[itemID] = true
	return true
}

func (b *Broker) endAuth(itemID string) {
	b.mu.Lock()
	delete(b.authInFlight, itemID)
	b.mu.Unlock()
}
