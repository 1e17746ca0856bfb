// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRecorder is a minimal recorder endpoint accepting one or more
// websocket clients and collecting their text frames.
type testRecorder struct {
	URL    string
	frames chan []byte
	closed chan string
}

func startTestRecorder(t *testing.T) *testRecorder {
	rec := &testRecorder{
		frames: make(chan []byte, 2048),
		closed: make(chan string, 8),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			for {
				data, op, err := wsutil.ReadClientData(conn)
				if err != nil {
					var ce wsutil.ClosedError
					if errors.As(err, &ce) {
						rec.closed <- ce.Reason
					}
					return
				}
				if op == ws.OpText {
					rec.frames <- data
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)
	rec.URL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return rec
}

func (rec *testRecorder) recvFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case f := <-rec.frames:
		return f
	case <-time.After(3 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func (rec *testRecorder) recvClose(t *testing.T) string {
	t.Helper()
	select {
	case reason := <-rec.closed:
		return reason
	case <-time.After(3 * time.Second):
		t.Fatal("no close received")
		return ""
	}
}

func TestSinkSend(t *testing.T) {
	rec := startTestRecorder(t)
	client := NewWSClient(WSClientConfig{DialTimeout: time.Second})
	sink := NewTransportSink(client)

	require.NoError(t, sink.Open(context.TODO(), rec.URL))
	require.True(t, sink.IsConnected())

	sink.Send([]byte(`{"type":"media"}`))
	assert.Equal(t, `{"type":"media"}`, string(rec.recvFrame(t)))

	sink.Close("closing")
	assert.False(t, sink.IsConnected())
	assert.Equal(t, "closing", rec.recvClose(t))
}

func TestSinkSendNotConnected(t *testing.T) {
	client := NewWSClient(WSClientConfig{})
	sink := NewTransportSink(client)

	assert.False(t, sink.IsConnected())
	assert.NotPanics(t, func() {
		for i := 0; i < 500; i++ {
			sink.Send([]byte("frame"))
		}
	})
}

func TestSinkCloseBeforeOpen(t *testing.T) {
	sink := NewTransportSink(NewWSClient(WSClientConfig{}))
	assert.NotPanics(t, func() {
		sink.Close("closing")
		sink.Close("closing")
	})
}

func TestSinkSendAfterClose(t *testing.T) {
	rec := startTestRecorder(t)
	client := NewWSClient(WSClientConfig{DialTimeout: time.Second})
	sink := NewTransportSink(client)

	require.NoError(t, sink.Open(context.TODO(), rec.URL))
	sink.Close("closing")

	sink.Send([]byte("frame"))
	assert.False(t, sink.IsConnected())

	select {
	case f := <-rec.frames:
		t.Fatalf("unexpected frame after close: %s", f)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSinkCloseInterruptsStalledWrite(t *testing.T) {
	// No idle timeout configured, a peer that stops reading stalls Send
	client := NewWSClient(WSClientConfig{})
	sink := NewTransportSink(client)

	local, remote := net.Pipe()
	defer remote.Close()
	sink.swapConn(local)
	sink.connected.Store(true)

	sendReturned := make(chan struct{})
	go func() {
		// remote is never read, this write blocks
		sink.Send(make([]byte, 64*1024))
		close(sendReturned)
	}()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		sink.Close("closing")
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("close blocked behind stalled write")
	}

	select {
	case <-sendReturned:
	case <-time.After(3 * time.Second):
		t.Fatal("stalled write was not interrupted")
	}
	assert.False(t, sink.IsConnected())
}

func TestSinkOpenDialError(t *testing.T) {
	client := NewWSClient(WSClientConfig{DialTimeout: 200 * time.Millisecond})
	sink := NewTransportSink(client)

	err := sink.Open(context.TODO(), "ws://127.0.0.1:1/recorder")
	require.Error(t, err)
	assert.False(t, sink.IsConnected())
}

func TestWSClientClosed(t *testing.T) {
	client := NewWSClient(WSClientConfig{})
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Dial(context.TODO(), "ws://127.0.0.1:1/recorder")
	assert.ErrorIs(t, err, ErrClientClosed)
}
