// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

// State is the connection state of a session
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Reconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Event is an input to the session state machine
type Event int

const (
	// EventConnect is an operator request to open the link
	EventConnect Event = iota
	// EventOpened reports that a dial succeeded
	EventOpened
	// EventDialFailed reports that a dial failed
	EventDialFailed
	// EventClosed reports that an open connection closed or failed
	EventClosed
	// EventDisconnect is an operator request to close the link
	EventDisconnect
	// EventTimerFired reports that the reconnect timer expired
	EventTimerFired
)

// String returns the event name
func (e Event) String() string {
	switch e {
	case EventConnect:
		return "CONNECT"
	case EventOpened:
		return "OPENED"
	case EventDialFailed:
		return "DIAL_FAILED"
	case EventClosed:
		return "CLOSED"
	case EventDisconnect:
		return "DISCONNECT"
	case EventTimerFired:
		return "TIMER_FIRED"
	default:
		return "UNKNOWN"
	}
}

// EffectKind is a side effect the session performs after a transition
type EffectKind int

const (
	// EffectCancelTimer stops the pending reconnect timer, if any
	EffectCancelTimer EffectKind = iota
	// EffectDial starts an asynchronous dial
	EffectDial
	// EffectCancelDial aborts an in-flight dial
	EffectCancelDial
	// EffectCloseConn closes the open connection
	EffectCloseConn
	// EffectRequestSensors sends SENSORS [142, 0]
	EffectRequestSensors
	// EffectScheduleReconnect arms the single reconnect timer
	EffectScheduleReconnect
	// EffectEnter moves to Effect.State and notifies observers
	EffectEnter
)

// Effect is one step of a transition's output. State is only meaningful for
// EffectEnter.
type Effect struct {
	Kind  EffectKind
	State State
}

// String returns a short description of the effect
func (e Effect) String() string {
	switch e.Kind {
	case EffectCancelTimer:
		return "cancel-timer"
	case EffectDial:
		return "dial"
	case EffectCancelDial:
		return "cancel-dial"
	case EffectCloseConn:
		return "close-conn"
	case EffectRequestSensors:
		return "request-sensors"
	case EffectScheduleReconnect:
		return "schedule-reconnect"
	case EffectEnter:
		return "enter(" + e.State.String() + ")"
	default:
		return "unknown"
	}
}

// Policy holds the behaviour switches of the state machine
type Policy struct {
	// ReconnectAfterDisconnect schedules a reconnect after an operator
	// Disconnect, so the link comes back on its own. When false an
	// operator disconnect stays disconnected until the next Connect.
	ReconnectAfterDisconnect bool
}

func enter(s State) Effect {
	return Effect{Kind: EffectEnter, State: s}
}

// lost is the common tail of every unexpected loss of the link
var lost = []Effect{
	enter(Disconnected),
	{Kind: EffectScheduleReconnect},
	enter(Reconnecting),
}

// Next is the session transition function. It has no side effects: the returned
// effects are applied in order by the caller. Events that do not apply to the
// current state return the state unchanged and no effects.
func Next(s State, e Event, p Policy) (State, []Effect) {
	switch e {
	case EventConnect:
		if s == Connecting || s == Connected {
			return s, nil
		}
		return Connecting, []Effect{
			{Kind: EffectCancelTimer},
			enter(Connecting),
			{Kind: EffectDial},
		}

	case EventOpened:
		if s != Connecting {
			return s, []Effect{{Kind: EffectCloseConn}}
		}
		return Connected, []Effect{
			enter(Connected),
			{Kind: EffectRequestSensors},
		}

	case EventDialFailed:
		if s != Connecting {
			return s, nil
		}
		return Reconnecting, append([]Effect(nil), lost...)

	case EventClosed:
		if s != Connected {
			return s, nil
		}
		return Reconnecting, append([]Effect(nil), lost...)

	case EventDisconnect:
		var effects []Effect
		switch s {
		case Connected:
			effects = []Effect{{Kind: EffectCloseConn}, enter(Disconnected)}
		case Connecting:
			effects = []Effect{{Kind: EffectCancelDial}, enter(Disconnected)}
		case Reconnecting:
			if p.ReconnectAfterDisconnect {
				return s, nil
			}
			return Disconnected, []Effect{{Kind: EffectCancelTimer}, enter(Disconnected)}
		default:
			return s, nil
		}
		if p.ReconnectAfterDisconnect {
			effects = append(effects, Effect{Kind: EffectScheduleReconnect}, enter(Reconnecting))
			return Reconnecting, effects
		}
		return Disconnected, effects

	case EventTimerFired:
		if s != Reconnecting {
			return s, nil
		}
		return Connecting, []Effect{
			enter(Connecting),
			{Kind: EffectDial},
		}
	}

	return s, nil
}
