package sheets

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"golang.org/x/sync/singleflight"
)

// TokenRefreshSkew is how long before expiry a cached token is considered stale.
const TokenRefreshSkew = time.Minute

// tokenRefreshTimeout bounds a shared refresh, which no single caller owns.
const tokenRefreshTimeout = time.Minute

// TokenCache is shared token storage, typically Redis. Get returns nil, nil on a miss.
type TokenCache interface {
	Get(ctx context.Context, key string) (*models.AccessToken, error)
	Set(ctx context.Context, key string, token *models.AccessToken) error
	Delete(ctx context.Context, key string) error
}

// CachingTokenProvider keeps the current token in memory and in a shared cache,
// and collapses concurrent refreshes into one exchange.
type CachingTokenProvider struct {
	fetcher TokenFetcher
	cache   TokenCache
	key     string
	logger  *slog.Logger
	now     func() time.Time

	group   singleflight.Group
	mu      sync.RWMutex
	current *models.AccessToken
}

// NewCachingTokenProvider wraps fetcher. cache may be nil for a process-local cache.
func NewCachingTokenProvider(fetcher TokenFetcher, cache TokenCache, key string, logger *slog.Logger) *CachingTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingTokenProvider{
		fetcher: fetcher,
		cache:   cache,
		key:     key,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *CachingTokenProvider) AccessToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current.ValidFor(p.now(), TokenRefreshSkew) {
		return current.Token, nil
	}

	// The refresh is shared, so it must not die with the caller that started it.
	ch := p.group.DoChan(p.key, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenRefreshTimeout)
		defer cancel()
		return p.refresh(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*models.AccessToken).Token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops token after the API rejected it, so the next caller
// exchanges a fresh assertion. A token that was already replaced is ignored.
func (p *CachingTokenProvider) Invalidate(ctx context.Context, token string) {
	p.mu.Lock()
	if p.current == nil || p.current.Token != token {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	if p.cache == nil {
		return
	}
	if err := p.cache.Delete(ctx, p.key); err != nil {
		p.logger.Warn("token cache delete failed", "key", p.key, "err", err)
	}
}

func (p *CachingTokenProvider) refresh(ctx context.Context) (*models.AccessToken, error) {
	if p.cache != nil {
		cached, err := p.cache.Get(ctx, p.key)
		if err != nil {
			p.logger.Warn("token cache read failed", "key", p.key, "err", err)
		} else if cached.ValidFor(p.now(), TokenRefreshSkew) {
			p.store(cached)
			return cached, nil
		}
	}

	tok, err := p.fetcher.FetchToken(ctx)
	if err != nil {
		return nil, err
	}
	p.store(tok)

	if p.cache != nil {
		if err := p.cache.Set(ctx, p.key, tok); err != nil {
			p.logger.Warn("token cache write failed", "key", p.key, "err", err)
		}
	}
	return tok, nil
}

func (p *CachingTokenProvider) store(tok *models.AccessToken) {
	p.mu.Lock()
	p.current = tok
	p.mu.Unlock()
}
