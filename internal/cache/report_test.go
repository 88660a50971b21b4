package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

type memStore struct {
	data map[string][]byte
	ttl  time.Duration
}

func (m *memStore) Get(_ context.Context, key string, dest any) error {
	b, ok := m.data[key]
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttl = ttl
	return nil
}

func TestReportCache_RoundTrip(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	rc, err := NewReportCache(store, time.Hour, fluency.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := rc.Key([]byte("audio"), "Your hobbies")

	if _, err := rc.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get before Put: err = %v, want ErrMiss", err)
	}

	want := &fluency.Report{Text: "hello", ConfidenceScore: 72.5, OverallRating: fluency.RatingGood}
	if err := rc.Put(ctx, key, want); err != nil {
		t.Fatal(err)
	}
	got, err := rc.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != want.Text || got.ConfidenceScore != want.ConfidenceScore {
		t.Errorf("got %+v", got)
	}
	if store.ttl != time.Hour {
		t.Errorf("ttl = %v", store.ttl)
	}
}

func TestReportCache_KeyDependsOnInputs(t *testing.T) {
	a, _ := NewReportCache(nil, 0, fluency.DefaultConfig())
	changed := fluency.DefaultConfig()
	changed.PauseThresholdSeconds = 0.8
	b, _ := NewReportCache(nil, 0, changed)

	audio := []byte("same audio")
	keys := map[string]bool{
		a.Key(audio, ""):          true,
		a.Key(audio, "title"):     true,
		a.Key([]byte("other"), ""): true,
		b.Key(audio, ""):          true,
	}
	if len(keys) != 4 {
		t.Errorf("keys collide: %v", keys)
	}
	if k := a.Key(audio, ""); !strings.HasPrefix(k, "report:") || a.Key(audio, "") != k {
		t.Errorf("key %q not stable", k)
	}
}
