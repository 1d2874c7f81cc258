// Package credentials manages pools of OAuth2 client credentials and the
// access tokens issued for them.
//
// Each pool keeps one selected credential. A rate-limited response spends
// quota on it; once its quota is used up the broker rotates round-robin to
// the next valid credential with quota left, and when none is left every
// quota in the pool is reset. Tokens are cached per credential and refreshed
// at most once at a time.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/track-aggregator/internal/domain"
	"github.com/couchcryptid/track-aggregator/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	// expiryBuffer treats a token as expired this long before its actual expiry.
	expiryBuffer = 60 * time.Second

	// refreshTimeout bounds a shared token refresh, which outlives any single
	// caller's context.
	refreshTimeout = 30 * time.Second
)

// ErrUnknownPool is returned for a pool name that was never registered.
var ErrUnknownPool = errors.New("unknown credential pool")

// Credential is one client id/secret pair. Callers only ever see copies.
type Credential struct {
	ID        string
	Secret    string
	QuotaUsed int
	QuotaMax  int
	Valid     bool
}

// Token is an access token issued for one credential.
type Token struct {
	Value        string
	ExpiresAt    time.Time
	CredentialID string
}

// TokenFetcher exchanges a credential for a fresh access token.
type TokenFetcher interface {
	FetchToken(ctx context.Context, cred Credential) (Token, error)
}

// TokenRejectedError means the token endpoint refused the credential itself,
// as opposed to a network or server failure.
type TokenRejectedError struct {
	Status int
}

func (e *TokenRejectedError) Error() string {
	return fmt.Sprintf("token endpoint rejected credential: status %d", e.Status)
}

type pool struct {
	creds   []Credential
	current int
	tokens  map[string]Token
}

// Broker hands out access tokens for named credential pools. It is safe for
// concurrent use.
type Broker struct {
	mu      sync.Mutex
	pools   map[string]*pool
	flights singleflight.Group

	fetcher TokenFetcher
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBroker builds a broker over the given pools. Every pool needs at least
// one credential; credential ids must be unique within a pool. A QuotaMax
// below 1 is raised to 1.
func NewBroker(pools map[string][]Credential, fetcher TokenFetcher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Broker, error) {
	if fetcher == nil {
		return nil, errors.New("token fetcher is required")
	}
	b := &Broker{
		pools:   make(map[string]*pool, len(pools)),
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	for name, creds := range pools {
		if len(creds) == 0 {
			return nil, fmt.Errorf("credential pool %q is empty", name)
		}
		p := &pool{creds: make([]Credential, len(creds)), tokens: make(map[string]Token)}
		seen := make(map[string]bool, len(creds))
		for i, c := range creds {
			if c.ID == "" {
				return nil, fmt.Errorf("credential pool %q: credential %d has no id", name, i)
			}
			if seen[c.ID] {
				return nil, fmt.Errorf("credential pool %q: duplicate credential %q", name, c.ID)
			}
			seen[c.ID] = true
			c.QuotaUsed = 0
			c.QuotaMax = max(c.QuotaMax, 1)
			c.Valid = true
			p.creds[i] = c
		}
		b.pools[name] = p
	}
	return b, nil
}

// GetToken returns a usable access token for the pool's selected credential,
// fetching a new one when the cached token is missing or within a minute of
// expiry. Concurrent refreshes of the same credential share one request.
func (b *Broker) GetToken(ctx context.Context, poolName string) (Token, error) {
	b.mu.Lock()
	p, ok := b.pools[poolName]
	if !ok {
		b.mu.Unlock()
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	if !b.selectUsable(poolName, p) {
		b.mu.Unlock()
		b.metrics.TokenRequests.WithLabelValues(poolName, "error").Inc()
		return Token{}, domain.ErrCredentialsExhausted
	}
	cred := p.creds[p.current]
	if tok, ok := p.tokens[cred.ID]; ok && b.fresh(tok) {
		b.mu.Unlock()
		b.metrics.TokenRequests.WithLabelValues(poolName, "cached").Inc()
		return tok, nil
	}
	b.mu.Unlock()

	flight := b.flights.DoChan(poolName+"/"+cred.ID, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return b.refresh(fctx, poolName, cred)
	})
	select {
	case <-ctx.Done():
		b.metrics.TokenRequests.WithLabelValues(poolName, "error").Inc()
		return Token{}, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			b.metrics.TokenRequests.WithLabelValues(poolName, "error").Inc()
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (b *Broker) refresh(ctx context.Context, poolName string, cred Credential) (Token, error) {
	tok, err := b.fetcher.FetchToken(ctx, cred)
	if err != nil {
		var rejected *TokenRejectedError
		if errors.As(err, &rejected) {
			b.logger.Warn("credential rejected by token endpoint", "pool", poolName, "credential", cred.ID, "status", rejected.Status)
			if invErr := b.Invalidate(poolName, cred.ID); invErr != nil {
				return Token{}, fmt.Errorf("fetch token for %s/%s: %w", poolName, cred.ID, errors.Join(err, invErr))
			}
		}
		return Token{}, fmt.Errorf("fetch token for %s/%s: %w", poolName, cred.ID, err)
	}
	tok.CredentialID = cred.ID

	b.mu.Lock()
	if p := b.pools[poolName]; p != nil && p.valid(cred.ID) {
		p.tokens[cred.ID] = tok
	}
	b.mu.Unlock()

	b.metrics.TokenRequests.WithLabelValues(poolName, "fetched").Inc()
	b.logger.Debug("access token refreshed", "pool", poolName, "credential", cred.ID, "expires_at", tok.ExpiresAt)
	return tok, nil
}

func (b *Broker) fresh(tok Token) bool {
	return b.clock.Now().Before(tok.ExpiresAt.Add(-expiryBuffer))
}

// ReportRateLimited records a rate-limited response against the selected
// credential. When its quota is spent the selection moves to the next valid
// credential with quota left; when there is none, every quota in the pool is
// reset and the first valid credential is selected.
func (b *Broker) ReportRateLimited(poolName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[poolName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	if !b.selectUsable(poolName, p) {
		return domain.ErrCredentialsExhausted
	}

	cred := &p.creds[p.current]
	cred.QuotaUsed = min(cred.QuotaUsed+1, cred.QuotaMax)
	if cred.QuotaUsed < cred.QuotaMax {
		return nil
	}
	b.selectUsable(poolName, p)
	return nil
}

// Invalidate marks a credential unusable and drops its cached token. It
// returns ErrCredentialsExhausted when no valid credential remains.
func (b *Broker) Invalidate(poolName, credentialID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[poolName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	for i := range p.creds {
		if p.creds[i].ID == credentialID && p.creds[i].Valid {
			p.creds[i].Valid = false
			delete(p.tokens, credentialID)
			b.logger.Warn("credential invalidated", "pool", poolName, "credential", credentialID)
		}
	}
	if !b.selectUsable(poolName, p) {
		return domain.ErrCredentialsExhausted
	}
	return nil
}

// Advance moves the selection to the next valid credential with quota left,
// wrapping back to the current one when no other qualifies. Quota is not
// spent; if every valid credential is already exhausted the pool is reset.
func (b *Broker) Advance(poolName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pools[poolName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolName)
	}
	if i, ok := p.nextUsable(1); ok {
		b.moveTo(poolName, p, i)
		return nil
	}
	if !b.resetQuotas(poolName, p) {
		return domain.ErrCredentialsExhausted
	}
	return nil
}

// PoolSize returns the number of credentials registered in a pool, valid or
// not. Unknown pools have size 0.
func (b *Broker) PoolSize(poolName string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pools[poolName]; ok {
		return len(p.creds)
	}
	return 0
}

// Credentials returns a copy of a pool's credentials.
func (b *Broker) Credentials(poolName string) []Credential {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[poolName]
	if !ok {
		return nil
	}
	out := make([]Credential, len(p.creds))
	copy(out, p.creds)
	return out
}

// Current returns the id of the selected credential.
func (b *Broker) Current(poolName string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pools[poolName]
	if !ok || !b.selectUsable(poolName, p) {
		return "", false
	}
	return p.creds[p.current].ID, true
}

// selectUsable keeps the selection on a valid credential with quota left,
// moving forward from the current one when needed. It reports false when the
// pool has no valid credential. b.mu must be held.
func (b *Broker) selectUsable(poolName string, p *pool) bool {
	if i, ok := p.nextUsable(0); ok {
		b.moveTo(poolName, p, i)
		return true
	}
	return b.resetQuotas(poolName, p)
}

func (b *Broker) moveTo(poolName string, p *pool, i int) {
	if i == p.current {
		return
	}
	b.metrics.CredentialRotations.WithLabelValues(poolName).Inc()
	b.logger.Info("rotated credential", "pool", poolName, "from", p.creds[p.current].ID, "to", p.creds[i].ID)
	p.current = i
}

// resetQuotas zeroes every quota in the pool and selects the first valid
// credential. It reports false, leaving quotas untouched, when none is valid.
func (b *Broker) resetQuotas(poolName string, p *pool) bool {
	first := slices.IndexFunc(p.creds, func(c Credential) bool { return c.Valid })
	if first < 0 {
		return false
	}
	for i := range p.creds {
		p.creds[i].QuotaUsed = 0
	}
	p.current = first
	b.metrics.QuotaResets.WithLabelValues(poolName).Inc()
	b.logger.Warn("all credentials rate limited, resetting quotas", "pool", poolName, "credentials", len(p.creds))
	return true
}

// nextUsable scans the pool from current+offset, wrapping once, for a valid
// credential with quota left.
func (p *pool) nextUsable(offset int) (int, bool) {
	for step := offset; step < offset+len(p.creds); step++ {
		i := (p.current + step) % len(p.creds)
		if c := p.creds[i]; c.Valid && c.QuotaUsed < c.QuotaMax {
			return i, true
		}
	}
	return 0, false
}

func (p *pool) valid(id string) bool {
	for _, c := range p.creds {
		if c.ID == id {
			return c.Valid
		}
	}
	return false
}
