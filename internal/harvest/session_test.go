package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/xharvest/internal/extract"
	"github.com/user/xharvest/internal/record"
)

// scriptedSource serves canned timeline pages and lets tests push
// mutation notifications.
type scriptedSource struct {
	mu        sync.Mutex
	html      string
	listCalls int
	scrolls   int
	failList  bool
	mutations chan struct{}
}

func newScriptedSource(html string) *scriptedSource {
	return &scriptedSource{html: html, mutations: make(chan struct{}, 4)}
}

func (s *scriptedSource) ListVisibleItems(_ context.Context) ([]*goquery.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.failList {
		return nil, errors.New("no content container")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return nil, err
	}
	var items []*goquery.Selection
	doc.Find(`article[data-testid="tweet"]`).Each(func(_ int, sel *goquery.Selection) {
		items = append(items, sel)
	})
	return items, nil
}

func (s *scriptedSource) ScrollToEnd(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolls++
	return nil
}

func (s *scriptedSource) Mutations() <-chan struct{} { return s.mutations }

func (s *scriptedSource) setHTML(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

func (s *scriptedSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *scriptedSource) mutate() {
	s.mutations <- struct{}{}
}

// recordingNotifier captures bridge traffic for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	logs      []string
	snapshots [][]record.Record
	completes []int
}

func (n *recordingNotifier) Log(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logs = append(n.logs, message)
}

func (n *recordingNotifier) Snapshot(records []record.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots = append(n.snapshots, records)
}

func (n *recordingNotifier) Complete(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completes = append(n.completes, count)
}

func (n *recordingNotifier) completed() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, len(n.completes))
	copy(out, n.completes)
	return out
}

// gatedNotifier models the bridge: Log and Snapshot consult the shared
// message gate, Complete does not.
type gatedNotifier struct {
	recordingNotifier
	gate *RateGate
}

func (n *gatedNotifier) Log(message string) {
	if !n.gate.TryFire() {
		return
	}
	n.recordingNotifier.Log(message)
}

func (n *gatedNotifier) Snapshot(records []record.Record) {
	if !n.gate.TryFire() {
		return
	}
	n.recordingNotifier.Snapshot(records)
}

func tweetHTML(handle, text, timestamp string) string {
	return fmt.Sprintf(`<article data-testid="tweet">
		<a role="link" href="/%s"></a>
		<a href="/%s/status/%s">permalink</a>
		<div data-testid="User-Name"><span>%s</span></div>
		<div data-testid="tweetText">%s</div>
		<time datetime=%q></time>
		<img src="https://pbs.twimg.com/media/%s&name=small">
	</article>`, handle, handle, timestamp, handle, text, timestamp, handle)
}

const promptText = "midjourney prompt describing a castle at golden hour in detail"

func fastIntervals() Intervals {
	return Intervals{
		Scroll:     time.Hour, // scrolling disabled unless a test wants it
		Extraction: 0,
		Message:    0,
		Settle:     time.Millisecond,
	}
}

func TestSessionStartFailsWithoutContainer(t *testing.T) {
	t.Parallel()

	src := newScriptedSource("")
	src.failList = true
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	err := s.Start(context.Background(), Options{})
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())

	// recoverable: a later start against a healthy source succeeds
	src.mu.Lock()
	src.failList = false
	src.html = tweetHTML("alice", promptText, "2024-01-01T00:00:00Z")
	src.mu.Unlock()

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()
	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 1, s.Count())
}

func TestSessionImmediatePassCollectsVisible(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(
		tweetHTML("alice", promptText, "2024-01-01T00:00:00Z") +
			tweetHTML("bob", promptText, "2024-01-02T00:00:00Z"))
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()

	records := s.Records()
	require.Len(t, records, 2)
	// insertion order is encounter order
	assert.Equal(t, "alice_2024-01-01T00:00:00Z", records[0].ID)
	assert.Equal(t, "bob_2024-01-02T00:00:00Z", records[1].ID)
}

func TestSessionIdempotentInsertion(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()
	require.Equal(t, 1, s.Count())

	// same node re-observed across several passes inserts nothing new
	for i := 0; i < 3; i++ {
		src.mutate()
	}
	assert.Eventually(t, func() bool { return src.calls() >= 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Count())

	// a genuinely new node still lands
	src.setHTML(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z") +
		tweetHTML("carol", promptText, "2024-03-01T00:00:00Z"))
	src.mutate()
	assert.Eventually(t, func() bool { return s.Count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSessionMutationDroppedWhenGateClosed(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	intervals := fastIntervals()
	intervals.Extraction = time.Hour
	s := NewSession(src, extract.New(), notify, nil, intervals, nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()
	require.Equal(t, 1, src.calls()) // the immediate pass

	src.mutate()
	time.Sleep(50 * time.Millisecond)
	// the gated mutation never reached the source
	assert.Equal(t, 1, src.calls())
	assert.Equal(t, 1, s.Count())
}

func TestSessionStopIsTerminalAndComplete(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	s.Stop()

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, []int{1}, notify.completed())

	// notifications after stop never start a pass
	callsAtStop := src.calls()
	src.mutate()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAtStop, src.calls())

	// stopping twice is a no-op
	s.Stop()
	assert.Equal(t, []int{1}, notify.completed())
}

func TestSessionRestartResetsRecordSet(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	require.Equal(t, 1, s.Count())
	s.Stop()

	src.setHTML(tweetHTML("bob", promptText, "2024-02-01T00:00:00Z"))
	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()

	records := s.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "bob_2024-02-01T00:00:00Z", records[0].ID)
}

func TestSessionStartWhileRunningRejected(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	s := NewSession(src, extract.New(), notify, nil, fastIntervals(), nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background(), Options{}), ErrAlreadyRunning)
}

func TestSessionScrollLoop(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	notify := &recordingNotifier{}
	intervals := Intervals{
		Scroll:     10 * time.Millisecond,
		Extraction: 0,
		Message:    0,
		Settle:     time.Millisecond,
	}
	s := NewSession(src, extract.New(), notify, nil, intervals, nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.scrolls >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSessionFirstSnapshotWinsMessageGate(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	intervals := fastIntervals()
	intervals.Message = 500 * time.Millisecond
	gates := NewGates(intervals)
	notify := &gatedNotifier{gate: gates.Message}
	s := NewSession(src, extract.New(), notify, gates, intervals, nil)

	require.NoError(t, s.Start(context.Background(), Options{}))
	defer s.Stop()

	// the initial pass found a record, so the snapshot must have taken
	// the message gate; the start greeting is what gets dropped
	notify.mu.Lock()
	defer notify.mu.Unlock()
	require.Len(t, notify.snapshots, 1)
	assert.Len(t, notify.snapshots[0], 1)
	assert.NotContains(t, notify.logs, "harvest started")
}

func TestSessionPing(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(tweetHTML("alice", promptText, "2024-01-01T00:00:00Z"))
	s := NewSession(src, extract.New(), &recordingNotifier{}, nil, fastIntervals(), nil)

	assert.Equal(t, StateIdle, s.Ping())
	require.NoError(t, s.Start(context.Background(), Options{}))
	assert.Equal(t, StateRunning, s.Ping())
	s.Stop()
	assert.Equal(t, StateStopped, s.Ping())
}
