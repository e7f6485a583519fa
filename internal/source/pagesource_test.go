package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timelinePage(ids ...string) string {
	page := "<html><body>"
	for _, id := range ids {
		page += fmt.Sprintf(
			`<article data-testid="tweet"><a href="/alice/status/%s">link</a><div data-testid="tweetText">post %s</div></article>`,
			id, id,
		)
	}
	return page + "</body></html>"
}

func TestListVisibleItems(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, timelinePage("1", "2"))
	}))
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL}, nil)

	items, err := src.ListVisibleItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "post 1", items[0].Find(`[data-testid="tweetText"]`).Text())
}

func TestListVisibleItemsServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL}, nil)

	_, err := src.ListVisibleItems(context.Background())
	assert.Error(t, err)
}

func TestScrollAdvancesCursor(t *testing.T) {
	t.Parallel()

	var lastCursor atomic.Value
	lastCursor.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastCursor.Store(r.URL.Query().Get("cursor"))
		fmt.Fprint(w, timelinePage("1"))
	}))
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL, Query: "midjourney"}, nil)
	ctx := context.Background()

	_, err := src.ListVisibleItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", lastCursor.Load())

	require.NoError(t, src.ScrollToEnd(ctx))
	require.NoError(t, src.ScrollToEnd(ctx))

	_, err = src.ListVisibleItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", lastCursor.Load())
}

func TestWatchEmitsOnChange(t *testing.T) {
	t.Parallel()

	var grown atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if grown.Load() {
			fmt.Fprint(w, timelinePage("1", "2"))
			return
		}
		fmt.Fprint(w, timelinePage("1"))
	}))
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go src.Watch(ctx)

	// first poll: fingerprint goes from empty to one item
	select {
	case <-src.Mutations():
	case <-time.After(time.Second):
		t.Fatal("no mutation after first poll")
	}

	// second item appears
	grown.Store(true)
	select {
	case <-src.Mutations():
	case <-time.After(time.Second):
		t.Fatal("no mutation after content change")
	}

	// content is now stable; no further signals
	select {
	case <-src.Mutations():
		t.Fatal("mutation emitted without a change")
	case <-time.After(50 * time.Millisecond):
	}
}
