// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge serves the robot's UART over WebSocket: JSON or binary
// command messages from any client are written to the serial port, and every
// byte read from the port is broadcast to all clients as binary messages.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/logging"
)

const (
	// DefaultAddr is the listen address used when Config.Addr is empty
	DefaultAddr = ":8080"

	// DefaultInitDelay is the pause before each init sequence step
	DefaultInitDelay = 500 * time.Millisecond

	// uartReadSize is the largest chunk read from the UART at once
	uartReadSize = 256
)

// ErrNoUART is returned when a server is created without a serial port
var ErrNoUART = errors.New("bridge requires a UART")

// Config configures a Server
type Config struct {
	// Addr is the listen address for Run. Default: DefaultAddr.
	Addr string

	// UART is the robot's serial port. Required. The server closes it when
	// Serve returns.
	UART io.ReadWriteCloser

	// Username and Password enable HTTP Basic auth on /ws when Username is set
	Username string
	Password string

	// InitSequence sends the robot startup commands once serving starts
	InitSequence bool

	// InitDelay is the pause before each init step. Default: DefaultInitDelay.
	InitDelay time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Stats is a snapshot of bridge counters, served on /status
type Stats struct {
	Clients          int    `json:"clients"`
	BytesFromUART    uint64 `json:"bytes_from_uart"`
	BytesToUART      uint64 `json:"bytes_to_uart"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesRejected uint64 `json:"messages_rejected"`
	ChunksDropped    uint64 `json:"chunks_dropped"`
}

// Server relays between WebSocket clients and the UART
type Server struct {
	cfg Config
	log logging.LeveledLogger
	hub *Hub
	app *fiber.App

	// uartMu serialises writes so command bytes from different clients
	// never interleave
	uartMu sync.Mutex

	bytesFromUART    atomic.Uint64
	bytesToUART      atomic.Uint64
	messagesReceived atomic.Uint64
	messagesRejected atomic.Uint64
}

// NewServer creates a bridge server
func NewServer(cfg Config) (*Server, error) {
	if cfg.UART == nil {
		return nil, ErrNoUART
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.InitDelay <= 0 {
		cfg.InitDelay = DefaultInitDelay
	}

	factory := cfg.LoggerFactory
	if factory == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		f.ScopeLevels = map[string]logging.LogLevel{}
		factory = f
	}

	s := &Server{
		cfg: cfg,
		log: factory.NewLogger("bridge"),
	}
	s.hub = NewHub(s.log)

	app := fiber.New(fiber.Config{
		AppName:               "roombactl bridge",
		DisableStartupMessage: true,
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})

	if cfg.Username != "" {
		app.Use("/ws", basicauth.New(basicauth.Config{
			Users: map[string]string{cfg.Username: cfg.Password},
			Realm: "roomba",
		}))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber application
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the client hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Stats returns a snapshot of the bridge counters
func (s *Server) Stats() Stats {
	return Stats{
		Clients:          s.hub.ClientCount(),
		BytesFromUART:    s.bytesFromUART.Load(),
		BytesToUART:      s.bytesToUART.Load(),
		MessagesReceived: s.messagesReceived.Load(),
		MessagesRejected: s.messagesRejected.Load(),
		ChunksDropped:    s.hub.Dropped(),
	}
}

func (s *Server) handleWS(c *websocket.Conn) {
	client := s.hub.NewClient()
	client.conn = c

	if !s.hub.Register(client) {
		c.Close()
		return
	}
	client.serve(s)
}

// HandleMessage writes one client message to the UART. Text messages must be
// a {"commands":[...]} envelope with every value in 0-255; anything else is
// rejected without touching the port. Binary messages are written verbatim.
func (s *Server) HandleMessage(kind link.MessageKind, data []byte) error {
	s.messagesReceived.Add(1)

	payload := data
	if kind == link.TextMessage {
		decoded, err := link.DecodeEnvelope(data)
		if err != nil {
			s.messagesRejected.Add(1)
			return err
		}
		payload = decoded
	}
	if len(payload) == 0 {
		return nil
	}

	return s.writeUART(payload)
}

func (s *Server) writeUART(data []byte) error {
	s.uartMu.Lock()
	defer s.uartMu.Unlock()

	n, err := s.cfg.UART.Write(data)
	s.bytesToUART.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("uart write: %w", err)
	}
	s.log.Tracef("uart <- %s", oi.FormatHex(data))
	return nil
}

// pumpUART broadcasts everything read from the UART until the read fails
func (s *Server) pumpUART() error {
	buf := make([]byte, uartReadSize)
	for {
		n, err := s.cfg.UART.Read(buf)
		if n > 0 {
			s.bytesFromUART.Add(uint64(n))
			s.hub.Broadcast(buf[:n])
		}
		if err != nil {
			return err
		}
	}
}

// InitSequence returns the robot startup commands, grouped by the pause that
// precedes each group: START, FULL, the two songs, then the horn.
func InitSequence() [][]oi.Command {
	honk, err := oi.StoreSong(oi.HonkSong, oi.HonkNotes)
	if err != nil {
		panic(err)
	}
	siren, err := oi.StoreSong(oi.SirenSong, oi.SirenNotes)
	if err != nil {
		panic(err)
	}

	return [][]oi.Command{
		{oi.Start()},
		{oi.Full()},
		{honk, siren},
		{oi.Honk()},
	}
}

// RunInitSequence writes the startup commands to the UART, pausing
// Config.InitDelay before each group
func (s *Server) RunInitSequence(ctx context.Context) error {
	for _, group := range InitSequence() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.InitDelay):
		}

		for _, cmd := range group {
			if err := s.writeUART(cmd.Bytes()); err != nil {
				return err
			}
			s.log.Debugf("init: %s", oi.FormatCommand(cmd))
		}
	}
	s.log.Info("init sequence complete")
	return nil
}

// Serve accepts clients on ln until ctx ends, the listener fails or the UART
// read fails. The UART is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hub.Run(ctx)

	uartErr := make(chan error, 1)
	go func() {
		uartErr <- s.pumpUART()
	}()

	if s.cfg.InitSequence {
		go func() {
			if err := s.RunInitSequence(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("init sequence: %v", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.app.Listener(ln)
	}()
	s.log.Infof("serving on %s", ln.Addr())

	var err error
	select {
	case <-ctx.Done():
	case err = <-uartErr:
		err = fmt.Errorf("uart read: %w", err)
	case err = <-serveErr:
	}

	// Stopping the hub closes every client connection
	cancel()
	if shutdownErr := s.app.Shutdown(); shutdownErr != nil {
		s.log.Warnf("shutdown: %v", shutdownErr)
	}
	s.cfg.UART.Close()

	return err
}

// Run listens on Config.Addr and serves until ctx ends
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}
