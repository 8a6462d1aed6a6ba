// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link keeps a connection to the robot (directly over a serial port or
// through the WebSocket-to-UART bridge) alive, frames the inbound byte stream
// into sensor frames and sends commands while connected.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/pion/logging"
)

// DefaultReconnectDelay is the wait between losing the link and dialing again
const DefaultReconnectDelay = 1000 * time.Millisecond

// Config configures a Session
type Config struct {
	// Dialer opens connections. Required.
	Dialer Dialer

	// Envelope wraps outbound commands. Default: EnvelopeJSON.
	Envelope Envelope

	// WordMode selects how the two-byte sensor fields are decoded.
	// Default: oi.WordTruncated.
	WordMode oi.WordMode

	// ReconnectDelay is the wait before redialing after the link is lost.
	// Default: DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// MaxReconnectDelay enables exponential backoff when larger than
	// ReconnectDelay: each failed attempt doubles the wait up to this limit.
	// Zero keeps the delay fixed.
	MaxReconnectDelay time.Duration

	// Policy holds the state machine switches
	Policy Policy

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// FrameEvent is a decoded sensor frame together with its raw bytes
type FrameEvent struct {
	Frame    oi.SensorFrame
	Raw      []byte
	Received time.Time
}

// Observer receives session notifications. All callbacks run on one delivery
// goroutine, in the order the session produced them, without any session lock
// held. Callbacks may call back into the session.
type Observer interface {
	OnState(State)
	OnFrame(FrameEvent)
	OnLog(line string)
	OnError(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	State func(State)
	Frame func(FrameEvent)
	Log   func(string)
	Error func(error)
}

func (o ObserverFuncs) OnState(s State) {
	if o.State != nil {
		o.State(s)
	}
}

func (o ObserverFuncs) OnFrame(f FrameEvent) {
	if o.Frame != nil {
		o.Frame(f)
	}
}

func (o ObserverFuncs) OnLog(line string) {
	if o.Log != nil {
		o.Log(line)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// Session owns at most one live connection and drives it through the
// Disconnected, Connecting, Connected and Reconnecting states.
type Session struct {
	cfg Config
	log logging.LeveledLogger

	mu         sync.Mutex
	state      State
	gen        uint64 // bumped whenever the current dial or connection is abandoned
	conn       Conn
	dialCancel context.CancelFunc
	timer      *time.Timer
	timerSeq   uint64
	attempts   int
	closed     bool
	observers  []Observer

	// writeMu serialises writes; it is never held together with mu except
	// when mu is taken first
	writeMu sync.Mutex

	events *eventQueue
}

// NewSession creates a disconnected session
func NewSession(cfg Config) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	factory := cfg.LoggerFactory
	if factory == nil {
		f := logging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = logging.LogLevelDisabled
		f.ScopeLevels = map[string]logging.LogLevel{}
		factory = f
	}

	s := &Session{
		cfg:    cfg,
		log:    factory.NewLogger("link"),
		state:  Disconnected,
		events: newEventQueue(),
	}
	go s.events.run()

	return s, nil
}

// Subscribe registers an observer for all later notifications
func (s *Session) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observers := make([]Observer, len(s.observers), len(s.observers)+1)
	copy(observers, s.observers)
	s.observers = append(observers, o)
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint describes what the session dials
func (s *Session) Endpoint() string {
	return s.cfg.Dialer.String()
}

// Done is closed once Close has been called and every queued notification has
// been delivered
func (s *Session) Done() <-chan struct{} {
	return s.events.done
}

// Connect starts connecting. It is a no-op while connecting or connected.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state == Disconnected || s.state == Reconnecting {
		s.attempts = 0
	}
	post := s.step(EventConnect, nil)
	s.mu.Unlock()
	runAll(post)
}

// Disconnect closes the link. Whether it reconnects afterwards depends on
// Policy.ReconnectAfterDisconnect.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	post := s.step(EventDisconnect, nil)
	s.mu.Unlock()
	runAll(post)
}

// Send transmits a command if the session is connected and reports whether it
// was written. Commands sent while not connected are dropped.
func (s *Session) Send(cmd oi.Command) bool {
	kind, data, err := s.cfg.Envelope.Encode(cmd)
	if err != nil {
		s.log.Warnf("dropping command: %v", err)
		return false
	}

	s.mu.Lock()
	if s.closed || s.state != Connected || s.conn == nil {
		state := s.state
		s.mu.Unlock()
		s.log.Debugf("dropping %s while %s", cmd, state)
		return false
	}
	conn, gen := s.conn, s.gen
	s.mu.Unlock()

	s.writeMu.Lock()
	err = conn.WriteMessage(kind, data)
	s.writeMu.Unlock()

	if err != nil {
		s.connEvent(EventClosed, gen, nil, fmt.Errorf("write failed: %w", err))
		return false
	}
	s.log.Tracef("sent %s", cmd)
	return true
}

// Close shuts the session down for good: the timer, any dial and the
// connection are stopped and later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	conn := s.conn
	s.conn = nil

	if s.state != Disconnected {
		s.state = Disconnected
		s.notify(func(o Observer) { o.OnState(Disconnected) })
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.events.close()
	s.log.Info("session closed")
	return nil
}

// connEvent feeds an event from a dial or connection goroutine. Events from an
// abandoned dial or connection are dropped.
func (s *Session) connEvent(e Event, gen uint64, conn Conn, cause error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if cause != nil && !errors.Is(cause, io.EOF) {
		err := fmt.Errorf("%w: %w", ErrTransport, cause)
		s.log.Warnf("%s: %v", e, cause)
		s.notify(func(o Observer) { o.OnError(err) })
	}

	post := s.step(e, conn)
	s.mu.Unlock()
	runAll(post)
}

// timerFired handles expiry of the reconnect timer armed as seq
func (s *Session) timerFired(seq uint64) {
	s.mu.Lock()
	if s.closed || s.timer == nil || s.timerSeq != seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	post := s.step(EventTimerFired, nil)
	s.mu.Unlock()
	runAll(post)
}

// step runs the transition for e and applies its effects. Must be called with
// mu held. It returns work that has to run after mu is released.
func (s *Session) step(e Event, conn Conn) []func() {
	next, effects := Next(s.state, e, s.cfg.Policy)
	if len(effects) > 0 {
		s.log.Debugf("%s in %s -> %s %v", e, s.state, next, effects)
	}

	var post []func()
	for _, eff := range effects {
		switch eff.Kind {
		case EffectCancelTimer:
			if s.timer != nil {
				s.timer.Stop()
				s.timer = nil
			}

		case EffectDial:
			s.gen++
			ctx, cancel := context.WithCancel(context.Background())
			s.dialCancel = cancel
			gen := s.gen
			s.log.Infof("connecting to %s", s.cfg.Dialer)
			go s.dial(ctx, gen)

		case EffectCancelDial:
			if s.dialCancel != nil {
				s.dialCancel()
				s.dialCancel = nil
			}
			s.gen++

		case EffectCloseConn:
			closing := s.conn
			if closing == nil {
				closing = conn
			}
			if closing == s.conn {
				s.conn = nil
				s.gen++
			}
			if closing != nil {
				post = append(post, func() { closing.Close() })
			}

		case EffectRequestSensors:
			if s.conn == nil {
				break
			}
			// Hold writeMu until the request is out so it is the first command
			// on the new connection.
			c, gen := s.conn, s.gen
			s.writeMu.Lock()
			post = append(post, func() { s.requestSensors(c, gen) })

		case EffectScheduleReconnect:
			if s.timer != nil {
				s.timer.Stop()
			}
			delay := s.reconnectDelay()
			s.attempts++
			s.timerSeq++
			seq := s.timerSeq
			s.timer = time.AfterFunc(delay, func() { s.timerFired(seq) })
			s.log.Infof("reconnecting in %v (attempt %d)", delay, s.attempts)

		case EffectEnter:
			s.enter(eff.State, conn)
		}
	}
	s.state = next
	return post
}

// enter records a state change and notifies observers
func (s *Session) enter(st State, conn Conn) {
	switch st {
	case Connected:
		s.dialCancel = nil
		s.attempts = 0
		s.conn = conn
		s.log.Infof("connected to %s", s.cfg.Dialer)
		go s.readLoop(conn, s.gen)

	case Disconnected:
		if s.dialCancel != nil {
			s.dialCancel()
			s.dialCancel = nil
		}
		if s.conn != nil {
			c := s.conn
			s.conn = nil
			go c.Close()
		}
		s.gen++
	}

	s.state = st
	s.notify(func(o Observer) { o.OnState(st) })
}

// reconnectDelay returns the wait for the next reconnect attempt
func (s *Session) reconnectDelay() time.Duration {
	delay := s.cfg.ReconnectDelay
	if s.cfg.MaxReconnectDelay <= delay {
		return delay
	}
	for i := 0; i < s.attempts; i++ {
		delay *= 2
		if delay >= s.cfg.MaxReconnectDelay {
			return s.cfg.MaxReconnectDelay
		}
	}
	return delay
}

func (s *Session) dial(ctx context.Context, gen uint64) {
	conn, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		s.connEvent(EventDialFailed, gen, nil, fmt.Errorf("dial %s: %w", s.cfg.Dialer, err))
		return
	}
	s.connEvent(EventOpened, gen, conn, nil)
}

// requestSensors sends the initial SENSORS request. Called with writeMu held.
func (s *Session) requestSensors(conn Conn, gen uint64) {
	kind, data, _ := s.cfg.Envelope.Encode(oi.SensorsRequest(oi.SensorPacketAll))
	err := conn.WriteMessage(kind, data)
	s.writeMu.Unlock()

	if err != nil {
		s.connEvent(EventClosed, gen, nil, fmt.Errorf("write failed: %w", err))
	}
}

// readLoop reads one connection until it fails
func (s *Session) readLoop(conn Conn, gen uint64) {
	rb := NewReceiveBuffer()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			s.connEvent(EventClosed, gen, nil, err)
			return
		}

		switch kind {
		case TextMessage:
			line := string(data)
			if !s.publish(gen, func(o Observer) { o.OnLog(line) }) {
				return
			}

		case BinaryMessage:
			raw, err := rb.Push(data)
			switch {
			case err != nil:
				s.log.Debugf("%v", err)
				if !s.publish(gen, func(o Observer) { o.OnError(err) }) {
					return
				}
			case raw != nil:
				frame, derr := oi.DecodeSensorsMode(raw, s.cfg.WordMode)
				if derr != nil {
					continue
				}
				ev := FrameEvent{Frame: frame, Raw: raw, Received: time.Now()}
				if !s.publish(gen, func(o Observer) { o.OnFrame(ev) }) {
					return
				}
			}
		}
	}
}

// publish queues a notification from the connection with generation gen. It
// reports false once that connection has been abandoned.
func (s *Session) publish(gen uint64, fn func(Observer)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return false
	}
	s.notify(fn)
	return true
}

// notify queues fn for every current observer. Must be called with mu held.
func (s *Session) notify(fn func(Observer)) {
	observers := s.observers
	s.events.push(func() {
		for _, o := range observers {
			fn(o)
		}
	})
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// eventQueue is an unbounded FIFO drained by a single goroutine
type eventQueue struct {
	mu     sync.Mutex
	items  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.wake()
}

func (q *eventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// close stops the queue after the items already pushed have run
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *eventQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		items := q.items
		q.items = nil
		closed := q.closed
		q.mu.Unlock()

		for _, fn := range items {
			fn()
		}

		if len(items) == 0 {
			if closed {
				return
			}
			<-q.signal
		}
	}
}
