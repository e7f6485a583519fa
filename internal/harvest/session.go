// Package harvest drives the live extraction loop: it watches a content
// source for mutations, pages through it by scrolling, runs the
// extractor over visible nodes and keeps the per-run record set.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/xharvest/internal/record"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

var ErrAlreadyRunning = errors.New("harvest already in progress")

// Options is the command payload from the control surface.
type Options struct {
	IncludeImages   bool `json:"includeImages"`
	IncludeText     bool `json:"includeText"`
	IncludeMetadata bool `json:"includeMetadata"`
}

// Intervals sets the pacing of one session. Scroll, Extraction and
// Message are the three independent gates; Settle is how long a scroll
// is given to load content before the follow-up pass.
type Intervals struct {
	Scroll     time.Duration
	Extraction time.Duration
	Message    time.Duration
	Settle     time.Duration
}

// DefaultIntervals matches the pacing the harvester has always used.
func DefaultIntervals() Intervals {
	return Intervals{
		Scroll:     2 * time.Second,
		Extraction: time.Second,
		Message:    500 * time.Millisecond,
		Settle:     2 * time.Second,
	}
}

// Notifier receives session state. Log and Snapshot may be dropped by
// the implementation's own gating; Complete is terminal status.
type Notifier interface {
	Log(message string)
	Snapshot(records []record.Record)
	Complete(count int)
}

// Extractor parses one rendered node.
type Extractor interface {
	Extract(node *goquery.Selection) (*record.Record, error)
}

// Session is one run of the harvester, from Start to Stop. A session
// owns its rate gates and record set; nothing carries over between
// runs. All event handling happens on a single goroutine, so passes
// never overlap.
type Session struct {
	source    ContentSource
	extractor Extractor
	notify    Notifier
	intervals Intervals
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	opts    Options
	records []record.Record
	index   map[string]struct{}
	gates   *Gates
	stopCh  chan struct{}
	done    chan struct{}
}

// NewSession wires a session onto its gate set. Pass the same set's
// Message gate to the bridge so a start resets all three together; a
// nil gates builds a fresh set from the intervals.
func NewSession(source ContentSource, extractor Extractor, notify Notifier, gates *Gates, intervals Intervals, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gates == nil {
		gates = NewGates(intervals)
	}
	return &Session{
		source:    source,
		extractor: extractor,
		notify:    notify,
		intervals: intervals,
		logger:    logger,
		state:     StateIdle,
		index:     map[string]struct{}{},
		gates:     gates,
	}
}

// Start transitions Idle/Stopped -> Running: resets the record set and
// gates, runs one immediate pass, then launches the event loop. When
// the content source cannot be read the session stays out of Running
// and the error is returned so the caller can retry.
func (s *Session) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		s.notify.Log("harvest already in progress")
		return ErrAlreadyRunning
	}

	items, err := s.source.ListVisibleItems(ctx)
	if err != nil {
		s.notify.Log("content container not found")
		s.logger.Warn("start aborted, content source unavailable", zap.Error(err))
		return fmt.Errorf("locate content: %w", err)
	}

	s.records = nil
	s.index = map[string]struct{}{}
	s.opts = opts
	s.gates.Reset()
	s.state = StateRunning
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	s.logger.Info("session started",
		zap.Bool("includeImages", opts.IncludeImages),
		zap.Bool("includeText", opts.IncludeText),
		zap.Bool("includeMetadata", opts.IncludeMetadata))

	// First pass over whatever is already rendered; consumes the
	// extraction gate's initial firing. The start log comes after the
	// pass so the first snapshot, not the greeting, wins the freshly
	// reset message gate.
	if s.gates.Extraction.TryFire() {
		s.passLocked(items)
	}
	s.notify.Log("harvest started")

	go s.run(ctx, s.stopCh, s.done)
	return nil
}

// Stop transitions Running -> Stopped. It waits for the event loop to
// exit, so no extraction pass can start after Stop returns, then emits
// the terminal completion event.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	close(s.stopCh)
	count := len(s.records)
	done := s.done
	s.mu.Unlock()

	<-done

	s.notify.Log(fmt.Sprintf("harvest stopped, %d records collected", count))
	s.notify.Complete(count)
	s.logger.Info("session stopped", zap.Int("records", count))
}

// Ping answers readiness without side effects.
func (s *Session) Ping() State {
	return s.State()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns a copy of the current record set in insertion order.
func (s *Session) Records() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// run is the single logical thread of the session. Mutation
// notifications and the scroll timer both funnel into runPass, so the
// two trigger paths cannot diverge.
func (s *Session) run(ctx context.Context, stopCh, done chan struct{}) {
	defer close(done)

	scrollTick := time.NewTicker(s.intervals.Scroll)
	defer scrollTick.Stop()

	settle := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-s.source.Mutations():
			s.runPass(ctx)
		case <-settle:
			s.runPass(ctx)
		case <-scrollTick.C:
			s.mu.Lock()
			ready := s.state == StateRunning && s.gates.Scroll.TryFire()
			s.mu.Unlock()
			if !ready {
				continue
			}
			if err := s.source.ScrollToEnd(ctx); err != nil {
				s.logger.Warn("scroll failed", zap.Error(err))
				continue
			}
			// Give the page time to load before the follow-up pass.
			time.AfterFunc(s.intervals.Settle, func() {
				select {
				case settle <- struct{}{}:
				default:
				}
			})
		}
	}
}

// runPass is the shared entry point for both trigger paths. The
// extraction gate is consulted here: a pass that arrives too early is
// dropped, not queued; the next trigger re-scans everything visible,
// so nothing is permanently missed.
func (s *Session) runPass(ctx context.Context) {
	s.mu.Lock()
	if s.state != StateRunning || !s.gates.Extraction.TryFire() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	items, err := s.source.ListVisibleItems(ctx)
	if err != nil {
		s.logger.Warn("extraction pass skipped", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.passLocked(items)
	s.mu.Unlock()
}

// passLocked extracts every visible node and inserts accepted records
// at most once per id. Caller holds s.mu.
func (s *Session) passLocked(items []*goquery.Selection) {
	var newCount, skipped int
	for _, item := range items {
		rec, err := s.extractor.Extract(item)
		if err != nil {
			var rej *record.Rejection
			if !errors.As(err, &rej) {
				s.logger.Warn("node extraction failed", zap.Error(err))
			}
			skipped++
			continue
		}
		if _, exists := s.index[rec.ID]; exists {
			continue
		}
		s.index[rec.ID] = struct{}{}
		s.records = append(s.records, *rec)
		newCount++
	}

	if newCount == 0 {
		return
	}

	total := len(s.records)
	snapshot := make([]record.Record, total)
	copy(snapshot, s.records)

	// Snapshot before log: both compete for the message gate and the
	// snapshot is the one that must win.
	s.notify.Snapshot(snapshot)
	s.notify.Log(fmt.Sprintf("found %d new records, %d total (%d skipped)", newCount, total, skipped))
}
