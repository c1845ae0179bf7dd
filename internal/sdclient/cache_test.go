package sdclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeFetcher struct {
	calls  int
	result Result
}

func (f *fakeFetcher) GetOpen(ctx context.Context, limit int) Result {
	f.calls++
	return f.result
}

func TestCachingClient_ServesFromCacheWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{result: Result{OK: true, CountReturned: 2}}
	client := NewCachingClient(fetcher, time.Minute)

	first := client.GetOpen(context.Background(), 200)
	second := client.GetOpen(context.Background(), 200)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCachingClient_DoesNotCacheFailedFetches(t *testing.T) {
	fetcher := &fakeFetcher{result: Result{OK: false, Error: "timeout"}}
	client := NewCachingClient(fetcher, time.Minute)

	client.GetOpen(context.Background(), 200)
	client.GetOpen(context.Background(), 200)

	assert.Equal(t, 2, fetcher.calls)
}

func TestCachingClient_ZeroTTLDisablesCaching(t *testing.T) {
	fetcher := &fakeFetcher{result: Result{OK: true}}
	client := NewCachingClient(fetcher, 0)

	client.GetOpen(context.Background(), 200)
	client.GetOpen(context.Background(), 200)

	assert.Equal(t, 2, fetcher.calls)
}

func TestCachingClient_SeparatesEntriesByLimit(t *testing.T) {
	fetcher := &fakeFetcher{result: Result{OK: true}}
	client := NewCachingClient(fetcher, time.Minute)

	client.GetOpen(context.Background(), 100)
	client.GetOpen(context.Background(), 200)

	assert.Equal(t, 2, fetcher.calls)
}
