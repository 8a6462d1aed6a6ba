// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/roombactl/pkg/oi"
	"github.com/spf13/cobra"
)

var sendTimeout int

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send one command to the robot",
	Long: `Connect, send a single Open Interface command and disconnect.

Commands:
  start | safe | full | reboot | stop
  honk | siren | play <song>
  sensors
  led on|off
  pwm <right> <left>          wheel power, -255..255
  drive <velocity> <radius>   mm/s and mm, -32768..32767
  motors [side] [vac] [main] [side_dir] [main_dir]   (none = all off)
  raw <byte> [byte...]        decimal bytes, e.g. raw 140 3 1 64 16

Supports both serial and WebSocket connections.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendTimeout, "timeout", 10, "Timeout in seconds to connect")
}

var simpleCommands = map[string]func() oi.Command{
	"start":   oi.Start,
	"safe":    oi.Safe,
	"full":    oi.Full,
	"reboot":  oi.Reboot,
	"stop":    oi.Stop,
	"honk":    oi.Honk,
	"sensors": func() oi.Command { return oi.SensorsRequest(oi.SensorPacketAll) },
}

var motorFlagsByName = map[string]oi.MotorFlag{
	"side":     oi.FlagSideBrush,
	"vac":      oi.FlagVacuum,
	"main":     oi.FlagMainBrush,
	"side_dir": oi.FlagSideBrushClockwise,
	"main_dir": oi.FlagMainBrushOutward,
}

// buildCommand turns command-line words into a command
func buildCommand(args []string) (oi.Command, error) {
	name := strings.ToLower(args[0])
	rest := args[1:]

	if build, ok := simpleCommands[name]; ok {
		if len(rest) != 0 {
			return oi.Command{}, fmt.Errorf("%s takes no arguments", name)
		}
		return build(), nil
	}

	switch name {
	case "siren":
		return oi.PlaySong(oi.SirenSong)

	case "play":
		nums, err := parseInts(rest, 1)
		if err != nil {
			return oi.Command{}, err
		}
		if nums[0] < 0 || nums[0] > 255 {
			return oi.Command{}, fmt.Errorf("song %d out of range: %w", nums[0], oi.ErrInvalidArgument)
		}
		return oi.PlaySong(uint8(nums[0]))

	case "led":
		if len(rest) != 1 {
			return oi.Command{}, fmt.Errorf("led takes on or off")
		}
		switch strings.ToLower(rest[0]) {
		case "on":
			return oi.LED(true), nil
		case "off":
			return oi.LED(false), nil
		default:
			return oi.Command{}, fmt.Errorf("led takes on or off, got %q", rest[0])
		}

	case "pwm":
		nums, err := parseInts(rest, 2)
		if err != nil {
			return oi.Command{}, err
		}
		return oi.DrivePWM(nums[0], nums[1])

	case "drive":
		nums, err := parseInts(rest, 2)
		if err != nil {
			return oi.Command{}, err
		}
		return oi.DriveVelocityRadius(nums[0], nums[1])

	case "motors":
		var state oi.MotorState
		for _, arg := range rest {
			flag, ok := motorFlagsByName[strings.ToLower(arg)]
			if !ok {
				return oi.Command{}, fmt.Errorf("unknown motor %q (use side, vac, main, side_dir, main_dir)", arg)
			}
			state = state.With(flag, true)
		}
		return oi.Motors(state), nil

	case "raw":
		if len(rest) == 0 {
			return oi.Command{}, fmt.Errorf("raw needs at least one byte")
		}
		return oi.ParseCommand(strings.Join(rest, " "))

	default:
		return oi.Command{}, fmt.Errorf("unknown command %q", args[0])
	}
}

// parseInts parses exactly n decimal integers
func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d numbers, got %d", n, len(args))
	}
	nums := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", a)
		}
		nums[i] = v
	}
	return nums, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	command, err := buildCommand(args)
	if err != nil {
		return err
	}

	session, err := OpenSession(false)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := connectAndWait(session, time.Duration(sendTimeout)*time.Second); err != nil {
		return err
	}

	if !session.Send(command) {
		return fmt.Errorf("failed to send %s: link lost", oi.OpcodeName(command.Opcode()))
	}
	fmt.Printf("Sent %s\n", oi.FormatCommand(command))
	return nil
}
