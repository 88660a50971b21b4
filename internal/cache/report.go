package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

// Store is the subset of Cache a ReportCache needs.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ReportCache memoises reports by recording content and scoring policy, so a
// re-upload of the same audio under the same policy skips every provider
// call.
type ReportCache struct {
	store  Store
	ttl    time.Duration
	policy string
}

// NewReportCache keys entries by policy as well as audio, so changing the
// scoring policy invalidates earlier reports.
func NewReportCache(store Store, ttl time.Duration, policy fluency.Config) (*ReportCache, error) {
	doc, err := policy.YAML()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(doc)
	return &ReportCache{store: store, ttl: ttl, policy: hex.EncodeToString(sum[:8])}, nil
}

// Key derives the cache key for a recording and its challenge title.
func (c *ReportCache) Key(audio []byte, title string) string {
	h := sha256.New()
	h.Write(audio)
	h.Write([]byte{0})
	h.Write([]byte(title))
	return "report:" + c.policy + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns ErrMiss when no report is cached under key.
func (c *ReportCache) Get(ctx context.Context, key string) (*fluency.Report, error) {
	var r fluency.Report
	if err := c.store.Get(ctx, key, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *ReportCache) Put(ctx context.Context, key string, r *fluency.Report) error {
	return c.store.Set(ctx, key, r, c.ttl)
}
