// Package bridge decouples the harvest session from its consumers: it
// throttles outbound traffic, fans events out over a channel the
// control surface reads, and persists snapshots so the latest record
// set survives the session.
package bridge

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/user/xharvest/internal/harvest"
	"github.com/user/xharvest/internal/record"
)

// SnapshotKey is the single storage slot the latest record set is
// written to, last-write-wins.
const SnapshotKey = "harvest_snapshot"

type LogEvent struct {
	Message string
	Time    time.Time
}

type SnapshotEvent struct {
	Records []record.Record
}

type CompleteEvent struct {
	Count int
}

// Store is the persistence collaborator, an opaque key/value API.
type Store interface {
	Set(key, value string) error
}

// Bridge implements harvest.Notifier. Log and Snapshot consult the
// message gate and are dropped when it is closed: intermediate
// snapshots coalesce because every send carries the full state.
// Complete is terminal and bypasses the gate.
type Bridge struct {
	gate   *harvest.RateGate
	events chan any
	store  Store
	logger *zap.Logger
}

// New builds a bridge around the session's message gate. Sends to a
// slow or absent consumer never block the session; overflow events are
// dropped and superseded by the next send.
func New(gate *harvest.RateGate, store Store, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		gate:   gate,
		events: make(chan any, 64),
		store:  store,
		logger: logger,
	}
}

// Events is the consumer side, read by the control surface.
func (b *Bridge) Events() <-chan any {
	return b.events
}

func (b *Bridge) Log(message string) {
	if !b.gate.TryFire() {
		return
	}
	b.emit(LogEvent{Message: message, Time: time.Now()})
}

// Snapshot forwards the current record set and, when the gate is open,
// persists it under SnapshotKey.
func (b *Bridge) Snapshot(records []record.Record) {
	if !b.gate.TryFire() {
		return
	}
	b.emit(SnapshotEvent{Records: records})
	b.persist(records)
}

// Complete reports the final count. Not gated: the terminal event must
// not be coalesced away.
func (b *Bridge) Complete(count int) {
	b.emit(CompleteEvent{Count: count})
}

func (b *Bridge) emit(ev any) {
	select {
	case b.events <- ev:
	default:
		b.logger.Debug("event dropped, consumer behind")
	}
}

func (b *Bridge) persist(records []record.Record) {
	if b.store == nil {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		b.logger.Warn("snapshot encode failed", zap.Error(err))
		return
	}
	// A failed write is swallowed: the record set itself is the source
	// of truth and the next open gate re-sends it.
	if err := b.store.Set(SnapshotKey, string(payload)); err != nil {
		b.logger.Warn("snapshot persist failed", zap.Error(err))
	}
}
