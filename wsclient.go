// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
)

var ErrClientClosed = errors.New("websocket client closed")

// WSClientConfig is the process wide connection client configuration,
// shared by every session the process exports.
type WSClientConfig struct {
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
	// IdleTimeout is applied as write deadline per frame. Zero disables it.
	IdleTimeout time.Duration
}

// WSClient dials recorder endpoints. One instance is created at process
// start and injected into every ExportController, Close shuts it down at
// process stop.
type WSClient struct {
	dialer      ws.Dialer
	idleTimeout time.Duration
	closed      atomic.Bool
}

func NewWSClient(conf WSClientConfig) *WSClient {
	return &WSClient{
		dialer: ws.Dialer{
			Timeout: conf.DialTimeout,
		},
		idleTimeout: conf.IdleTimeout,
	}
}

// Dial opens one websocket connection to url. The returned conn has the
// handshake completed and is ready for client frames.
func (c *WSClient) Dial(ctx context.Context, url string) (net.Conn, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	conn, br, _, err := c.dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	if br != nil {
		// Server data before our first write is not expected on this
		// protocol, discard whatever was buffered.
		ws.PutReader(br)
	}
	return conn, nil
}

// IdleTimeout reports the configured per-write deadline.
func (c *WSClient) IdleTimeout() time.Duration {
	return c.idleTimeout
}

// Close marks the client closed. Connections already handed out stay alive,
// owned by their sinks. Safe to call multiple times.
func (c *WSClient) Close() error {
	c.closed.Store(true)
	return nil
}
