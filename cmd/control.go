// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/roombactl/pkg/link"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	// batchInterval is how often session notifications are handed to the TUI
	batchInterval = 50 * time.Millisecond

	// maxBatchFrames bounds the frames held between batches; older ones are dropped
	maxBatchFrames = 100
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving the robot",
	Long: `Drive and monitor the robot via an interactive terminal UI.

Features:
  - Virtual joystick (arrow keys or WASD, space to stop)
  - Cleaning motor toggles, LED, horn and siren
  - START / SAFE / FULL / REBOOT / STOP
  - Custom command entry (decimal bytes)
  - Live sensor frame, statistics and event log
  - Automatic reconnection when the link drops

Logs go to --log-file when set and are otherwise suppressed so they do not
disturb the display.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	session, err := OpenSession(true)
	if err != nil {
		return err
	}
	defer session.Close()

	m := initialControlModel(session, session.Endpoint())
	p := tea.NewProgram(m, tea.WithAltScreen())

	batcher := newControlBatcher(p)
	session.Subscribe(batcher)
	go batcher.run()
	defer batcher.stop()

	session.Connect()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// controlBatcher collects session notifications and hands them to the TUI at a
// fixed rate so a fast frame stream cannot flood the update loop
type controlBatcher struct {
	p    *tea.Program
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending controlBatchMsg
}

func newControlBatcher(p *tea.Program) *controlBatcher {
	return &controlBatcher{p: p, done: make(chan struct{})}
}

func (b *controlBatcher) OnState(st link.State) {
	b.mu.Lock()
	b.pending.states = append(b.pending.states, st)
	b.mu.Unlock()
}

func (b *controlBatcher) OnFrame(f link.FrameEvent) {
	b.mu.Lock()
	b.pending.frames = append(b.pending.frames, f)
	if len(b.pending.frames) > maxBatchFrames {
		b.pending.dropped += len(b.pending.frames) - maxBatchFrames
		b.pending.frames = b.pending.frames[len(b.pending.frames)-maxBatchFrames:]
	}
	b.mu.Unlock()
}

func (b *controlBatcher) OnLog(line string) {
	b.mu.Lock()
	b.pending.logs = append(b.pending.logs, line)
	b.mu.Unlock()
}

func (b *controlBatcher) OnError(err error) {
	b.mu.Lock()
	b.pending.errs = append(b.pending.errs, err)
	b.mu.Unlock()
}

// take returns the pending batch and starts a new one
func (b *controlBatcher) take() controlBatchMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.pending
	b.pending = controlBatchMsg{}
	return batch
}

func (b *controlBatcher) run() {
	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if batch := b.take(); !batch.empty() {
				b.p.Send(batch)
			}
		}
	}
}

func (b *controlBatcher) stop() {
	b.once.Do(func() { close(b.done) })
}
