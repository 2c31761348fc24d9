package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"rulerpicker/picker"
)

var errCtlUsage = errors.New("usage: rulerpicker ctl [-ipc-socket PATH] increment|decrement|set VALUE|unit INDEX|resize LENGTH|drag-start Y [ORIGIN]|drag-move Y|drag-end [Y]|state")

// parseCtlCommand turns ctl arguments into an event. "state" yields a nil
// event, which asks the daemon for its snapshot.
func parseCtlCommand(args []string) (picker.Event, error) {
	if len(args) == 0 {
		return nil, errCtlUsage
	}
	cmd, rest := args[0], args[1:]

	floats := func(lo, hi int) ([]float64, error) {
		if len(rest) < lo || len(rest) > hi {
			return nil, fmt.Errorf("%s: %w", cmd, errCtlUsage)
		}
		out := make([]float64, len(rest))
		for i, s := range rest {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid number %q", cmd, s)
			}
			out[i] = v
		}
		return out, nil
	}

	switch cmd {
	case "increment", "inc", "up":
		if _, err := floats(0, 0); err != nil {
			return nil, err
		}
		return picker.Increment{}, nil

	case "decrement", "dec", "down":
		if _, err := floats(0, 0); err != nil {
			return nil, err
		}
		return picker.Decrement{}, nil

	case "set":
		v, err := floats(1, 1)
		if err != nil {
			return nil, err
		}
		return picker.SetValue{Value: v[0]}, nil

	case "unit":
		if len(rest) != 1 {
			return nil, fmt.Errorf("%s: %w", cmd, errCtlUsage)
		}
		i, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, fmt.Errorf("%s: invalid index %q", cmd, rest[0])
		}
		return picker.SwitchUnit{Index: i}, nil

	case "resize":
		v, err := floats(1, 1)
		if err != nil {
			return nil, err
		}
		return picker.Resize{Length: v[0]}, nil

	case "drag-start":
		v, err := floats(1, 2)
		if err != nil {
			return nil, err
		}
		ev := picker.DragStart{PointerY: v[0]}
		if len(v) == 2 {
			ev.OriginY = &v[1]
		}
		return ev, nil

	case "drag-move":
		v, err := floats(1, 1)
		if err != nil {
			return nil, err
		}
		return picker.DragMove{PointerY: v[0]}, nil

	case "drag-end":
		v, err := floats(0, 1)
		if err != nil {
			return nil, err
		}
		var ev picker.DragEnd
		if len(v) == 1 {
			ev.PointerY = &v[0]
		}
		return ev, nil

	case "state":
		if _, err := floats(0, 0); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command %q: %w", cmd, errCtlUsage)
	}
}

// runCtl sends one command to the daemon and prints the outcome. It returns
// the process exit code.
func runCtl(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	socketPath := fs.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ev, err := parseCtlCommand(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	resp, err := SendIPCEvent(ExpandPath(*socketPath), ev)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if resp.State != nil {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp.State); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		return 0
	}
	if resp.Value != nil {
		fmt.Fprintf(stdout, "%g %s\n", *resp.Value, resp.Unit)
	}
	return 0
}
