// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	StateStopped = "stopped"
	StateActive  = "active"
)

const (
	eventStart = "start"
	eventStop  = "stop"
)

const (
	ProtocolMediaJSON = "mediajson"
	TargetRecorder    = "recorder"
)

// CloseReasonStopped goes into the websocket close frame on operator stop.
const CloseReasonStopped = "closing"

// Configuration errors. These are operator errors raised synchronously by
// Configure and never change session state.
var (
	ErrExportMultipleTargets     = errors.New("multiple concurrent exports unsupported")
	ErrExportReconfigure         = errors.New("reconfiguration while active unsupported, stop first")
	ErrExportVideoUnsupported    = errors.New("video export unsupported")
	ErrExportProtocolUnsupported = errors.New("unsupported protocol")
	ErrExportTypeUnsupported     = errors.New("unsupported target type")
)

// Target describes one export destination. Immutable once a session starts.
type Target struct {
	URL      string `yaml:"url" json:"url"`
	Protocol string `yaml:"protocol" json:"protocol"`
	Type     string `yaml:"type" json:"type"`
	Video    bool   `yaml:"video" json:"video"`
}

func (t Target) validate() error {
	if t.Video {
		return ErrExportVideoUnsupported
	}
	if t.Protocol != ProtocolMediaJSON {
		return fmt.Errorf("%w: %q", ErrExportProtocolUnsupported, t.Protocol)
	}
	if t.Type != TargetRecorder {
		return fmt.Errorf("%w: %q", ErrExportTypeUnsupported, t.Type)
	}
	return nil
}

// session is one export instance, created on start, discarded on stop.
type session struct {
	target    Target
	startedAt time.Time
	encoder   *StreamEncoder
	sink      *TransportSink
}

// ExportController gates packet acceptance and owns session lifecycle.
// Producers call Wants and Send concurrently, a single worker goroutine
// drains the ingest queue and performs encode plus network send.
type ExportController struct {
	client *WSClient
	queue  *IngestQueue

	mu     sync.Mutex
	states *fsm.FSM

	// active mirrors the fsm state for lock free reads on the hot path.
	active atomic.Bool
	sess   atomic.Pointer[session]

	done      chan struct{}
	closed    atomic.Bool
	workerWG  sync.WaitGroup
	closeOnce sync.Once

	log zerolog.Logger
}

type ControllerOption func(c *ExportController)

func WithQueueCapacity(capacity int) ControllerOption {
	return func(c *ExportController) {
		c.queue = NewIngestQueue(capacity)
	}
}

// NewExportController creates the controller in Stopped state and starts
// its encode worker. Close releases the worker when the controller is no
// longer needed.
func NewExportController(client *WSClient, opts ...ControllerOption) *ExportController {
	c := &ExportController{
		client: client,
		queue:  NewIngestQueue(DefaultQueueCapacity),
		done:   make(chan struct{}),
		log:    log.With().Str("caller", "ExportController").Logger(),
	}
	for _, o := range opts {
		o(c)
	}
	c.states = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: eventStart, Src: []string{StateStopped}, Dst: StateActive},
			{Name: eventStop, Src: []string{StateActive}, Dst: StateStopped},
		},
		fsm.Callbacks{},
	)

	c.workerWG.Add(1)
	go c.worker()
	return c
}

// State reports the current lifecycle state, StateStopped or StateActive.
func (c *ExportController) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states.Current()
}

// Configure applies a new export configuration.
//
// Empty targets while active stops the running session. A single valid
// target while stopped opens the recorder connection and starts a session.
// Anything else is a configuration error and leaves state untouched.
func (c *ExportController) Configure(ctx context.Context, targets []Target) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(targets) == 0 {
		if c.states.Is(StateActive) {
			c.stopLocked(CloseReasonStopped)
		}
		return nil
	}
	if len(targets) > 1 {
		return ErrExportMultipleTargets
	}
	if c.states.Is(StateActive) {
		return ErrExportReconfigure
	}

	target := targets[0]
	if err := target.validate(); err != nil {
		return err
	}

	sink := NewTransportSink(c.client)
	if err := sink.Open(ctx, target.URL); err != nil {
		sink.Close(CloseReasonStopped)
		return fmt.Errorf("open recorder connection: %w", err)
	}

	now := time.Now()
	sess := &session{
		target:    target,
		startedAt: now,
		sink:      sink,
	}
	sess.encoder = NewStreamEncoder(now, sink.Send)

	if err := c.states.Event(ctx, eventStart); err != nil {
		sink.Close(CloseReasonStopped)
		return err
	}
	c.sess.Store(sess)
	c.active.Store(true)
	c.log.Info().Str("url", target.URL).Msg("Export session started")
	return nil
}

// Stop ends the running session. No-op when already stopped.
func (c *ExportController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states.Is(StateActive) {
		c.stopLocked(CloseReasonStopped)
	}
}

// stopLocked requires c.mu held and state active.
func (c *ExportController) stopLocked(reason string) {
	c.active.Store(false)
	sess := c.sess.Swap(nil)
	if err := c.states.Event(context.Background(), eventStop); err != nil {
		// Guarded by the active check in callers.
		c.log.Error().Err(err).Msg("State transition failed")
	}
	if sess != nil {
		sess.sink.Close(reason)
	}
	c.log.Info().Msg("Export session stopped")
}

// Wants reports whether pkt should be handed to Send. Pure predicate, no
// side effects: true iff a session is active and pkt carries audio.
func (c *ExportController) Wants(pkt *Packet) bool {
	return c.active.Load() && pkt.Kind == KindAudio
}

// Send hands pkt to the export pipeline. Ownership of the packet buffer
// transfers here: whatever path the packet takes, its buffer is released
// exactly once. Never blocks.
func (c *ExportController) Send(pkt *Packet) {
	if !c.active.Load() {
		pkt.Release()
		return
	}
	if !c.queue.Offer(pkt) {
		pkt.Release()
		return
	}
	if c.closed.Load() {
		// Shutdown raced this enqueue and the worker plus the Close drain
		// may both be done already. Whatever is still queued, including
		// our own packet, gets drained here instead.
		c.drainQueue()
	}
}

// worker is the single logical consumer: dequeue, encode if still active,
// always release. Packets admitted before a stop may still be encoded and
// sent, acceptable under best effort delivery.
func (c *ExportController) worker() {
	defer c.workerWG.Done()
	for {
		select {
		case pkt := <-c.queue.Items():
			c.process(pkt)
		case <-c.done:
			// Drain buffers admitted around shutdown.
			c.drainQueue()
			return
		}
	}
}

func (c *ExportController) drainQueue() {
	for {
		select {
		case pkt := <-c.queue.Items():
			pkt.Release()
		default:
			return
		}
	}
}

func (c *ExportController) process(pkt *Packet) {
	defer pkt.Release()

	sess := c.sess.Load()
	if sess == nil {
		return
	}
	if err := sess.encoder.Encode(pkt); err != nil {
		c.log.Error().Err(err).Msg("Encode failed")
	}
}

// Close stops any running session and shuts the worker down. The
// controller is unusable afterwards.
func (c *ExportController) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.Stop()
		close(c.done)
	})
	c.workerWG.Wait()

	// Producers racing Close may have slipped one more packet in after the
	// worker drained. Any Offer completed before closed was set is visible
	// to this drain, anything after it re-checks closed in Send and drains
	// itself, so no buffer is left behind either way.
	c.drainQueue()
}
