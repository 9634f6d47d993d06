package model

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachingLoader keeps loaded classifiers around for ttl so repeated
// predictions against the same model skip deserialisation. Failed loads are
// not cached.
type CachingLoader struct {
	next   Loader
	logger *slog.Logger
	mu     sync.Mutex
	cache  *ttlcache.Cache[string, Classifier]
}

func NewCachingLoader(next Loader, ttl time.Duration, logger *slog.Logger) *CachingLoader {
	cache := ttlcache.New[string, Classifier](
		ttlcache.WithTTL[string, Classifier](ttl),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, Classifier]) {
		logger.Debug("classifier evicted", "path", item.Key(), "reason", reason)
		if closer, ok := item.Value().(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("failed to close classifier", "path", item.Key(), "error", err)
			}
		}
	})
	go cache.Start()

	return &CachingLoader{next: next, logger: logger, cache: cache}
}

func (l *CachingLoader) Load(path string) (Classifier, error) {
	if item := l.cache.Get(path); item != nil {
		return item.Value(), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// another caller may have loaded it while we waited
	if item := l.cache.Get(path); item != nil {
		return item.Value(), nil
	}

	classifier, err := l.next.Load(path)
	if err != nil {
		return nil, err
	}
	l.cache.Set(path, classifier, ttlcache.DefaultTTL)
	return classifier, nil
}

// Len reports how many classifiers are currently held.
func (l *CachingLoader) Len() int {
	return l.cache.Len()
}

// Stop halts expiry and closes every held classifier.
func (l *CachingLoader) Stop() {
	l.cache.Stop()
	l.cache.DeleteAll()
}
