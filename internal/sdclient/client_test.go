package sdclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOpen_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":1,"name":"ticket one","fields":{"ServiceId":101}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, nil)
	result := c.GetOpen(context.Background(), 10)

	require.True(t, result.OK)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(1), result.Items[0].ID)
	assert.Equal(t, 1, result.CountReturned)
	assert.NotEmpty(t, result.RequestID)
}

func TestGetOpen_NonOKStatusEncodedAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, nil)
	result := c.GetOpen(context.Background(), 10)

	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "500")
	assert.Nil(t, result.Items)
}

func TestGetOpen_MalformedBodyEncodedAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, 0, nil)
	result := c.GetOpen(context.Background(), 10)

	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
}

func TestGetOpen_TimeoutEncodedAsFailureNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Millisecond, nil)
	result := c.GetOpen(context.Background(), 10)

	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
}

func TestGetOpen_ContextCancellationEncodedAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, time.Second, nil)
	result := c.GetOpen(ctx, 10)

	assert.False(t, result.OK)
}
