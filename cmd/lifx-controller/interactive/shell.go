// Package interactive provides the interactive command-line interface
// for the LIFX controller.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/okabe-project/lifx-go/pkg/client"
	"github.com/okabe-project/lifx-go/pkg/registry"
	"github.com/okabe-project/lifx-go/pkg/wire"
)

// Shell handles interactive mode for lifx-controller.
type Shell struct {
	client *client.Client
	rl     *readline.Instance
}

// New creates a new interactive shell.
func New(c *client.Client) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "lifx> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{client: c, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output to avoid interfering with command input.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "discover", "d":
			s.cmdDiscover(ctx)

		case "list", "ls", "devices":
			s.cmdList()

		case "state", "s":
			s.cmdState(ctx, args)

		case "color", "c":
			s.cmdColor(ctx, args)

		case "power", "p":
			s.cmdPower(ctx, args)

		case "label":
			s.cmdLabel(ctx, args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
LIFX Controller Commands:
  Discovery:
    discover                    - Discover devices on the local network
    list                        - List known devices

  Control:
    state <device>              - Show color, power and label
    color <device> <hue> <sat> <bri> [kelvin] [duration]
                                - Set color (hue in degrees, sat/bri 0-1,
                                  kelvin 1500-9000, duration e.g. 500ms)
    power <device> on|off       - Switch power
    label <device> [name]       - Show or set the device label

  General:
    status                      - Show session status
    help                        - Show this help
    quit                        - Exit the controller

  Devices can be addressed by serial (aa:bb:cc:dd:ee:ff), a unique serial
  prefix, or their label.`)
}

// cmdDiscover handles the discover command.
func (s *Shell) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Discovering devices...")

	discoverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	devices, err := s.client.Discover(discoverCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Discovery error: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices found")
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "Found %d device(s):\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(s.rl.Stdout(), "  %d. %s at %s\n", i+1, d.Target, d.Addr)
	}
}

// cmdList handles the list command.
func (s *Shell) cmdList() {
	devices := s.client.Devices(0)
	if len(devices) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices known (try 'discover')")
		return
	}

	fmt.Fprintf(s.rl.Stdout(), "\nKnown Devices (%d):\n", len(devices))
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	for _, d := range devices {
		fmt.Fprintf(s.rl.Stdout(), "  Serial: %s\n", d.Target)
		fmt.Fprintf(s.rl.Stdout(), "      Address: %s\n", d.Addr)
		if d.Label != "" {
			fmt.Fprintf(s.rl.Stdout(), "      Label: %s\n", d.Label)
		}
		if d.Power != nil {
			fmt.Fprintf(s.rl.Stdout(), "      Power: %s\n", powerString(*d.Power))
		}
		fmt.Fprintf(s.rl.Stdout(), "      Last seen: %s\n", d.LastSeen.Format("15:04:05"))
		fmt.Fprintln(s.rl.Stdout())
	}
}

// cmdState handles the state command.
func (s *Shell) cmdState(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: state <device>")
		return
	}

	target, ok := s.resolveTarget(args[0])
	if !ok {
		return
	}

	state, err := s.client.GetState(ctx, target)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed to read state: %v\n", err)
		return
	}

	hue, sat, bri, kelvin := client.NormalizeColor(state.Color)
	fmt.Fprintf(s.rl.Stdout(), "\nDevice %s:\n", target)
	fmt.Fprintf(s.rl.Stdout(), "  Label:      %s\n", state.Label)
	fmt.Fprintf(s.rl.Stdout(), "  Power:      %s\n", powerString(state.Power))
	fmt.Fprintf(s.rl.Stdout(), "  Hue:        %.1f deg\n", hue)
	fmt.Fprintf(s.rl.Stdout(), "  Saturation: %.0f%%\n", sat*100)
	fmt.Fprintf(s.rl.Stdout(), "  Brightness: %.0f%%\n", bri*100)
	fmt.Fprintf(s.rl.Stdout(), "  Kelvin:     %d\n", kelvin)
	fmt.Fprintln(s.rl.Stdout())
}

// cmdColor handles the color command.
func (s *Shell) cmdColor(ctx context.Context, args []string) {
	if len(args) < 4 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: color <device> <hue> <sat> <bri> [kelvin] [duration]")
		fmt.Fprintln(s.rl.Stdout(), "  Example: color kitchen 120 1.0 0.8 3500 500ms")
		return
	}

	target, ok := s.resolveTarget(args[0])
	if !ok {
		return
	}

	hue, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid hue: %v\n", err)
		return
	}
	sat, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid saturation: %v\n", err)
		return
	}
	bri, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid brightness: %v\n", err)
		return
	}

	kelvin := uint16(3500)
	if len(args) > 4 {
		k, err := strconv.ParseUint(args[4], 10, 16)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid kelvin: %v\n", err)
			return
		}
		kelvin = uint16(k)
	}

	var duration time.Duration
	if len(args) > 5 {
		duration, err = time.ParseDuration(args[5])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid duration: %v\n", err)
			return
		}
	}

	color := client.ColorFromHSBK(hue, sat, bri, kelvin)
	if err := s.client.SetColor(ctx, target, color, duration); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed to set color: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

// cmdPower handles the power command.
func (s *Shell) cmdPower(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: power <device> on|off")
		return
	}

	target, ok := s.resolveTarget(args[0])
	if !ok {
		return
	}

	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "1", "true":
		on = true
	case "off", "0", "false":
		on = false
	default:
		fmt.Fprintf(s.rl.Stdout(), "Invalid power state: %s (use on or off)\n", args[1])
		return
	}

	if err := s.client.SetPower(ctx, target, on); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed to set power: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

// cmdLabel handles the label command.
func (s *Shell) cmdLabel(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: label <device> [new-name]")
		return
	}

	target, ok := s.resolveTarget(args[0])
	if !ok {
		return
	}

	if len(args) == 1 {
		label, err := s.client.GetLabel(ctx, target)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Failed to read label: %v\n", err)
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "%s\n", label)
		return
	}

	label := strings.Join(args[1:], " ")
	if err := s.client.SetLabel(ctx, target, label); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Failed to set label: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

// cmdStatus handles the status command.
func (s *Shell) cmdStatus() {
	sess := s.client.Session()
	fmt.Fprintln(s.rl.Stdout(), "\nSession Status")
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(s.rl.Stdout(), "  Session ID:    %s\n", sess.ID())
	fmt.Fprintf(s.rl.Stdout(), "  Source:        %d\n", sess.Source())
	fmt.Fprintf(s.rl.Stdout(), "  Local Address: %s\n", sess.LocalAddr())
	fmt.Fprintf(s.rl.Stdout(), "  Known Devices: %d\n", sess.Registry().Len())
	fmt.Fprintln(s.rl.Stdout())
}

// resolveTarget maps a serial, unique serial prefix or label to a device
// identity, printing a message when resolution fails.
func (s *Shell) resolveTarget(input string) (wire.Target, bool) {
	if target, err := wire.ParseTarget(input); err == nil {
		if _, err := s.client.Session().Registry().Get(target); err == nil {
			return target, true
		}
	}

	var matches []registry.Device
	for _, d := range s.client.Devices(0) {
		if strings.HasPrefix(d.Target.String(), strings.ToLower(input)) ||
			strings.EqualFold(d.Label, input) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0].Target, true
	case 0:
		fmt.Fprintf(s.rl.Stdout(), "Device not found: %s (try 'discover' or 'list')\n", input)
	default:
		fmt.Fprintf(s.rl.Stdout(), "Ambiguous device %q, matches:\n", input)
		for _, d := range matches {
			fmt.Fprintf(s.rl.Stdout(), "  %s %s\n", d.Target, d.Label)
		}
	}
	return wire.Target{}, false
}

func powerString(level uint16) string {
	if level == 0 {
		return "off"
	}
	return "on"
}
