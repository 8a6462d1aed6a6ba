// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
)

// fakeUART records writes; reads report end of stream
type fakeUART struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func (u *fakeUART) Read(p []byte) (int, error) {
	return 0, io.EOF
}

func (u *fakeUART) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.writeErr != nil {
		return 0, u.writeErr
	}
	return u.written.Write(p)
}

func (u *fakeUART) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	return nil
}

func (u *fakeUART) bytes() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.written.Bytes()...)
}

func TestNewServer_RequiresUART(t *testing.T) {
	if _, err := NewServer(Config{}); !errors.Is(err, ErrNoUART) {
		t.Errorf("NewServer error = %v, want ErrNoUART", err)
	}
}

func TestServer_HandleMessage(t *testing.T) {
	tests := []struct {
		name    string
		kind    link.MessageKind
		data    string
		want    []byte
		wantErr bool
	}{
		{
			name: "json envelope",
			kind: link.TextMessage,
			data: `{"commands":[146,0,100,0,100]}`,
			want: []byte{146, 0, 100, 0, 100},
		},
		{
			name: "binary verbatim",
			kind: link.BinaryMessage,
			data: "\x80\x84",
			want: []byte{128, 132},
		},
		{
			name: "empty binary ignored",
			kind: link.BinaryMessage,
			data: "",
			want: nil,
		},
		{
			name:    "value above 255",
			kind:    link.TextMessage,
			data:    `{"commands":[128,300]}`,
			wantErr: true,
		},
		{
			name:    "negative value",
			kind:    link.TextMessage,
			data:    `{"commands":[-1]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			kind:    link.TextMessage,
			data:    "128 132",
			wantErr: true,
		},
		{
			name:    "no commands",
			kind:    link.TextMessage,
			data:    `{"commands":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uart := &fakeUART{}
			s, err := NewServer(Config{UART: uart})
			if err != nil {
				t.Fatalf("NewServer error: %v", err)
			}

			err = s.HandleMessage(tt.kind, []byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, oi.ErrInvalidArgument) {
					t.Errorf("error = %v, want ErrInvalidArgument", err)
				}
				if got := uart.bytes(); len(got) != 0 {
					t.Errorf("rejected message wrote %v", got)
				}
				if s.Stats().MessagesRejected != 1 {
					t.Errorf("MessagesRejected = %d, want 1", s.Stats().MessagesRejected)
				}
				return
			}
			if err != nil {
				t.Fatalf("HandleMessage error: %v", err)
			}
			if got := uart.bytes(); !bytes.Equal(got, tt.want) {
				t.Errorf("uart got %v, want %v", got, tt.want)
			}
			if s.Stats().BytesToUART != uint64(len(tt.want)) {
				t.Errorf("BytesToUART = %d, want %d", s.Stats().BytesToUART, len(tt.want))
			}
		})
	}
}

func TestServer_HandleMessageWriteError(t *testing.T) {
	uart := &fakeUART{writeErr: errors.New("port gone")}
	s, _ := NewServer(Config{UART: uart})

	if err := s.HandleMessage(link.BinaryMessage, []byte{128}); err == nil {
		t.Error("expected write error")
	}
}

func TestInitSequence(t *testing.T) {
	groups := InitSequence()

	want := [][]byte{
		{128},
		{132},
		{
			140, 1, 2, 60, 16, 60, 16,
			140, 2, 6, 60, 100, 80, 100, 60, 100, 80, 100, 60, 100, 80, 100,
		},
		{141, 1},
	}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, group := range groups {
		var got []byte
		for _, cmd := range group {
			got = append(got, cmd.Bytes()...)
		}
		if !bytes.Equal(got, want[i]) {
			t.Errorf("group %d = %v, want %v", i, got, want[i])
		}
	}
}

func TestServer_RunInitSequence(t *testing.T) {
	uart := &fakeUART{}
	s, _ := NewServer(Config{UART: uart, InitDelay: time.Millisecond})

	if err := s.RunInitSequence(context.Background()); err != nil {
		t.Fatalf("RunInitSequence error: %v", err)
	}

	var want []byte
	for _, group := range InitSequence() {
		for _, cmd := range group {
			want = append(want, cmd.Bytes()...)
		}
	}
	if got := uart.bytes(); !bytes.Equal(got, want) {
		t.Errorf("uart got %v, want %v", got, want)
	}
}

func TestServer_RunInitSequenceCancelled(t *testing.T) {
	uart := &fakeUART{}
	s, _ := NewServer(Config{UART: uart, InitDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.RunInitSequence(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if got := uart.bytes(); len(got) != 0 {
		t.Errorf("cancelled sequence wrote %v", got)
	}
}

func TestServer_BasicAuth(t *testing.T) {
	s, _ := NewServer(Config{UART: &fakeUART{}, Username: "roomba", Password: "secret"})

	tests := []struct {
		name     string
		user     string
		pass     string
		wantCode int
	}{
		{"no credentials", "", "", http.StatusUnauthorized},
		{"wrong password", "roomba", "nope", http.StatusUnauthorized},
		{"valid, not an upgrade", "roomba", "secret", http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			resp, err := s.App().Test(req)
			if err != nil {
				t.Fatalf("request error: %v", err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
		})
	}
}

func TestServer_Status(t *testing.T) {
	uart := &fakeUART{}
	s, _ := NewServer(Config{UART: uart})
	s.HandleMessage(link.BinaryMessage, []byte{128, 131})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if stats.BytesToUART != 2 || stats.MessagesReceived != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

// readPeer reads one chunk from the robot side of the UART pipe
func readPeer(t *testing.T, peer net.Conn) []byte {
	t.Helper()
	peer.SetReadDeadline(time.Now().Add(waitTimeout))
	buf := make([]byte, 64)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("uart peer read: %v", err)
	}
	return buf[:n]
}

func TestServer_EndToEnd(t *testing.T) {
	uart, peer := net.Pipe()
	defer peer.Close()

	s, err := NewServer(Config{UART: uart})
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx, ln)
	}()
	defer func() {
		cancel()
		select {
		case <-served:
		case <-time.After(waitTimeout):
			t.Error("Serve did not return")
		}
	}()

	dialer, err := link.NewWebSocketDialer("ws://"+ln.Addr().String()+"/ws", "", "", false)
	if err != nil {
		t.Fatalf("dialer: %v", err)
	}
	session, err := link.NewSession(link.Config{Dialer: dialer, ReconnectDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	defer session.Close()

	frames := make(chan link.FrameEvent, 4)
	session.Subscribe(link.ObserverFuncs{
		Frame: func(f link.FrameEvent) { frames <- f },
	})
	session.Connect()

	// The session's JSON SENSORS request arrives at the robot as raw bytes
	if got := readPeer(t, peer); !bytes.Equal(got, []byte{142, 0}) {
		t.Fatalf("uart got %v, want [142 0]", got)
	}

	if !session.Send(oi.Full()) {
		t.Fatal("Send reported not connected")
	}
	if got := readPeer(t, peer); !bytes.Equal(got, []byte{132}) {
		t.Fatalf("uart got %v, want [132]", got)
	}

	// A frame from the robot reaches the client as binary messages
	raw := make([]byte, oi.SensorPacketLength)
	raw[0] = 0x02 // left bumper
	raw[16] = byte(oi.ChargingFull)
	if _, err := peer.Write(raw); err != nil {
		t.Fatalf("uart peer write: %v", err)
	}

	select {
	case ev := <-frames:
		if !ev.Frame.Bump.Left || ev.Frame.Bump.Right {
			t.Errorf("bump = %+v", ev.Frame.Bump)
		}
		if ev.Frame.Battery.ChargingState != oi.ChargingFull {
			t.Errorf("charging state = %s", ev.Frame.Battery.ChargingState)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for frame")
	}

	if got := s.Stats().BytesFromUART; got != oi.SensorPacketLength {
		t.Errorf("BytesFromUART = %d, want %d", got, oi.SensorPacketLength)
	}
}
