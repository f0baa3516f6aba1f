package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeops/scribe/internal/collab"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "scribebot",
		Password:     "hunter2",
		BaseURL:      srv.URL,
		AuthURL:      srv.URL + "/api/v1/access_token",
	})
}

func tokenHandler(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "cid", user)
	assert.Equal(t, "secret", pass)
	require.NoError(t, r.ParseForm())
	assert.Equal(t, "password", r.PostForm.Get("grant_type"))
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": "tok-123",
		"expires_in":   3600,
	})
}

func TestPoll(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	old := now.Add(-2 * time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(t, w, r)
	})
	mux.HandleFunc("/r/golang/new.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"children": []any{
					map[string]any{"data": map[string]any{
						"name":        "t3_new1",
						"title":       "How do I read a file?",
						"selftext":    "os.ReadFile keeps failing",
						"author":      "gopher99",
						"url":         "https://reddit.example/t3_new1",
						"created_utc": float64(now.Unix()),
					}},
					map[string]any{"data": map[string]any{
						"name":        "t3_old1",
						"title":       "stale post",
						"created_utc": float64(old.Unix()),
					}},
				},
			},
		})
	})

	c := newTestClient(t, mux)
	items, err := c.Poll(context.Background(), "golang", now.Add(-time.Hour), 25)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t3_new1", items[0].SourceItemID)
	assert.Equal(t, "golang", items[0].Topic)
	assert.Equal(t, "How do I read a file?", items[0].Title)
	assert.Equal(t, "gopher99", items[0].Author)
	assert.True(t, items[0].PostedAt.Equal(now))
}

func TestPublish(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(t, w, r)
	})
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "t3_abc", r.PostForm.Get("thing_id"))
		assert.Equal(t, "here is the answer", r.PostForm.Get("text"))
		json.NewEncoder(w).Encode(map[string]any{
			"json": map[string]any{
				"errors": []any{},
				"data": map[string]any{
					"things": []any{
						map[string]any{"data": map[string]any{"name": "t1_reply1"}},
					},
				},
			},
		})
	})

	c := newTestClient(t, mux)
	ref, err := c.Publish(context.Background(), "t3_abc", "here is the answer")
	require.NoError(t, err)
	assert.Equal(t, "t1_reply1", ref)
}

func TestPublishAPIRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenHandler(t, w, r)
	})
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"json": map[string]any{
				"errors": []any{[]any{"THREAD_LOCKED", "that thread is locked"}},
			},
		})
	})

	c := newTestClient(t, mux)
	_, err := c.Publish(context.Background(), "t3_abc", "text")
	require.Error(t, err)
	assert.True(t, collab.IsPermanent(err))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"forbidden", http.StatusForbidden, false},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
				tokenHandler(t, w, r)
			})
			mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			c := newTestClient(t, mux)
			_, err := c.Publish(context.Background(), "t3_abc", "text")
			require.Error(t, err)
			if tt.transient {
				assert.True(t, collab.IsTransient(err))
			} else {
				assert.True(t, collab.IsPermanent(err))
			}
		})
	}
}

func TestTokenReuse(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		tokenHandler(t, w, r)
	})
	mux.HandleFunc("/r/golang/new.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"children": []any{}}})
	})

	c := newTestClient(t, mux)
	for range 3 {
		_, err := c.Poll(context.Background(), "golang", time.Time{}, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls)
}

// TestConcurrentTokenFetch hammers a cold client from many goroutines,
// as the poller and publisher workers do when they share one client.
// The cache must stay consistent and refresh the token exactly once.
func TestConcurrentTokenFetch(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		tokenHandler(t, w, r)
	})
	mux.HandleFunc("/r/golang/new.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"children": []any{}}})
	})
	mux.HandleFunc("/api/comment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"json": map[string]any{
				"errors": []any{},
				"data": map[string]any{
					"things": []any{
						map[string]any{"data": map[string]any{"name": "t1_reply1"}},
					},
				},
			},
		})
	})

	c := newTestClient(t, mux)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := c.Poll(context.Background(), "golang", time.Time{}, 10)
				assert.NoError(t, err)
			} else {
				_, err := c.Publish(context.Background(), "t3_abc", "text")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, mux)
	_, err := c.Poll(context.Background(), "golang", time.Time{}, 10)
	require.Error(t, err)
	assert.True(t, collab.IsPermanent(err))
}
