// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

// fakeConn hands out queued text messages, then reports end of stream.
// Close frames are written slowly so a handler that returns early is caught.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	writes  []int
	closed  bool
}

func (f *fakeConn) SetReadLimit(int64) {}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return 0, nil, io.EOF
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return websocket.TextMessage, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.CloseMessage {
		time.Sleep(20 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) snapshot() ([]int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writes...), f.closed
}

func TestClient_ServeWaitsForWriter(t *testing.T) {
	uart := &fakeUART{}
	s, err := NewServer(Config{UART: uart})
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.Run(ctx)

	conn := &fakeConn{inbound: [][]byte{[]byte(`{"commands":[128,132]}`)}}
	client := s.hub.NewClient()
	client.conn = conn
	if !s.hub.Register(client) {
		t.Fatal("Register failed on running hub")
	}

	served := make(chan struct{})
	go func() {
		client.serve(s)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(waitTimeout):
		t.Fatal("serve did not return after the peer went away")
	}

	// Nothing may touch the connection once serve has returned
	writes, closed := conn.snapshot()
	if len(writes) == 0 || writes[len(writes)-1] != websocket.CloseMessage {
		t.Errorf("writes after serve = %v, want a close frame last", writes)
	}
	if !closed {
		t.Error("connection not closed when serve returned")
	}

	if got := uart.bytes(); !bytes.Equal(got, []byte{128, 132}) {
		t.Errorf("uart got %v, want [128 132]", got)
	}
}
