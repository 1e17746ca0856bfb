// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log only a fraction of consecutive drop diagnostics, connection loss on
// a busy session would otherwise log per packet.
const dropLogInterval = 100

// TransportSink owns one persistent recorder connection and transmits
// serialized frames best effort. There is no retry and no reconnect, a
// lost connection silently drops frames until the operator starts again.
type TransportSink struct {
	client *WSClient

	// writeMu serializes frame writes. The handle itself sits behind
	// connMu so that Close never has to wait behind a stalled write.
	writeMu sync.Mutex
	connMu  sync.Mutex
	conn    net.Conn

	connected atomic.Bool

	drops atomic.Uint64

	log zerolog.Logger
}

func NewTransportSink(client *WSClient) *TransportSink {
	return &TransportSink{
		client: client,
		log:    log.With().Str("caller", "TransportSink").Str("id", uuid.NewString()).Logger(),
	}
}

// Open establishes the connection. Must be called before any Send can
// succeed.
func (s *TransportSink) Open(ctx context.Context, url string) error {
	conn, err := s.client.Dial(ctx, url)
	if err != nil {
		return err
	}

	s.swapConn(conn)
	s.connected.Store(true)
	s.log.Info().Str("url", url).Msg("Recorder connection opened")
	return nil
}

// IsConnected is a connectivity snapshot, safe from any goroutine.
func (s *TransportSink) IsConnected() bool {
	return s.connected.Load()
}

// Send transmits one frame as a websocket text message. Fire and forget:
// when not connected, or when the handle is unexpectedly missing, the frame
// is dropped with throttled diagnostics.
func (s *TransportSink) Send(frame []byte) {
	if !s.connected.Load() {
		s.logDrop("not connected")
		return
	}
	conn := s.loadConn()
	if conn == nil {
		s.logDrop("connection handle missing")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if t := s.client.IdleTimeout(); t > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t)); err != nil {
			s.log.Debug().Err(err).Msg("Write deadline not set")
		}
	}
	if err := wsutil.WriteClientText(conn, frame); err != nil {
		s.connected.Store(false)
		s.log.Error().Err(err).Msg("Recorder connection lost")
		return
	}
	metricFramesSent.Inc()
}

// Close tears the connection down with reason in the close frame. Safe to
// call even if Open never succeeded, and safe to call twice. A write
// stalled on a dead peer does not hold Close up, its deadline is expired
// first.
func (s *TransportSink) Close(reason string) {
	s.connected.Store(false)

	conn := s.swapConn(nil)
	if conn == nil {
		return
	}

	// Expire any in-flight write before queueing up on the write mutex
	if err := conn.SetWriteDeadline(time.Now()); err != nil {
		s.log.Debug().Err(err).Msg("Write deadline not set")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, reason)
	if err := wsutil.WriteClientMessage(conn, ws.OpClose, body); err != nil {
		s.log.Debug().Err(err).Msg("Close frame write failed")
	}
	conn.Close()
	s.log.Info().Str("reason", reason).Msg("Recorder connection closed")
}

func (s *TransportSink) loadConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *TransportSink) swapConn(conn net.Conn) net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	prev := s.conn
	s.conn = conn
	return prev
}

func (s *TransportSink) logDrop(cause string) {
	metricFramesDropped.Inc()
	n := s.drops.Add(1)
	if n%dropLogInterval == 1 {
		s.log.Warn().Str("cause", cause).Uint64("drops", n).Msg("Frame dropped")
	}
}
