// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the WebSocket opening handshake
const DefaultHandshakeTimeout = 10 * time.Second

// WebSocketDialer dials the WebSocket-to-UART bridge
type WebSocketDialer struct {
	URL              string
	Username         string
	Password         string
	SkipTLSVerify    bool
	HandshakeTimeout time.Duration
}

// NewWebSocketDialer validates the URL and returns a dialer for it
func NewWebSocketDialer(wsURL, username, password string, skipTLSVerify bool) (*WebSocketDialer, error) {
	if err := ValidateWebSocketURL(wsURL); err != nil {
		return nil, err
	}
	return &WebSocketDialer{
		URL:              wsURL,
		Username:         username,
		Password:         password,
		SkipTLSVerify:    skipTLSVerify,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}, nil
}

// ValidateWebSocketURL checks that the URL parses and uses ws:// or wss://
func ValidateWebSocketURL(wsURL string) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return nil
	default:
		return fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}
}

// String describes the endpoint
func (d *WebSocketDialer) String() string {
	return fmt.Sprintf("WebSocket: %s", d.URL)
}

// Dial opens the WebSocket connection with HTTP Basic auth when credentials are set
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ValidateWebSocketURL(d.URL); err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}

	u, _ := url.Parse(d.URL)
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: d.SkipTLSVerify,
		}
	}

	headers := http.Header{}
	if d.Username != "" && d.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla connection to Conn
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) ReadMessage() (MessageKind, []byte, error) {
	messageType, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, nil, io.EOF
		}
		return 0, nil, err
	}

	if messageType == websocket.TextMessage {
		return TextMessage, data, nil
	}
	return BinaryMessage, data, nil
}

func (w *wsConn) WriteMessage(kind MessageKind, data []byte) error {
	messageType := websocket.BinaryMessage
	if kind == TextMessage {
		messageType = websocket.TextMessage
	}
	return w.conn.WriteMessage(messageType, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
