package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rulerpicker/animate"
	"rulerpicker/units"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("rulerpicker v%s\n", version)
	fmt.Println("Vertical ruler value picker with magnifying ticks")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  rulerpicker [OPTIONS]")
	fmt.Println("  rulerpicker tui [OPTIONS]")
	fmt.Println("  rulerpicker ctl [-ipc-socket PATH] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that owns a ruler picker: touch input drags it, the IPC socket")
	fmt.Println("  steps and sets it, and a websocket streams its value, ticks and")
	fmt.Println("  animation frames to remote presentation layers.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device for a touchscreen (enables touch input)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Printf("        State websocket listen address (default %q)\n", defaultWSListen)
	fmt.Println()
	fmt.Println("  -ws")
	fmt.Println("        Enable the state websocket (default true)")
	fmt.Println()
	fmt.Println("  -update-hz int")
	fmt.Printf("        Animation frame rate in Hz (default %d)\n", defaultUpdateHz)
	fmt.Println()
	fmt.Println("  -min, -max, -step float")
	fmt.Println("        Value range and snapping step")
	fmt.Println()
	fmt.Println("  -length float")
	fmt.Println("        Ruler length in pixels")
	fmt.Println()
	fmt.Println("  -units string")
	fmt.Printf("        Unit preset: %s\n", strings.Join(units.PresetNames(), ", "))
	fmt.Println()
	fmt.Println("  -default-unit int")
	fmt.Println("        Index of the unit active at start")
	fmt.Println()
	fmt.Println("  -show-units")
	fmt.Println("        Show the unit switcher")
	fmt.Println()
	fmt.Println("  -no-magnify")
	fmt.Println("        Disable tick magnification")
	fmt.Println()
	fmt.Println("  -easing string")
	fmt.Println("        Settle easing: linear, ease-out, spring")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, json (default \"text\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  tui")
	fmt.Println("        Run the picker in the terminal (mouse drag, arrows, u, 1-9, q)")
	fmt.Println("        Options: as above; -log-file PATH to keep logs off the screen")
	fmt.Println()
	fmt.Println("  ctl")
	fmt.Println("        Send one command to a running daemon:")
	fmt.Println("          increment | decrement | set VALUE | unit INDEX | resize LENGTH")
	fmt.Println("          drag-start Y [ORIGIN] | drag-move Y | drag-end [Y] | state")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start daemon with a touchscreen")
	fmt.Println("  rulerpicker -input-device /dev/input/event2")
	fmt.Println()
	fmt.Println("  # Weight picker in kilograms and pounds")
	fmt.Println("  rulerpicker -units weight -min 30 -max 200 -step 0.5")
	fmt.Println()
	fmt.Println("  # Step the running daemon")
	fmt.Println("  rulerpicker ctl increment")
	fmt.Println()
}

// cliFlags registers the daemon/tui flags on fs and returns a function that
// collects the ones explicitly set into overrides.
func cliFlags(fs *flag.FlagSet) (configPath *string, collect func() FlagOverrides) {
	configPath = fs.String("config", "", "YAML config file")

	inputDevice := fs.String("input-device", "", "Linux input event device for a touchscreen")
	ipcSocket := fs.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
	wsListen := fs.String("ws-listen", defaultWSListen, "State websocket listen address")
	wsEnabled := fs.Bool("ws", true, "Enable the state websocket")
	updateHz := fs.Int("update-hz", defaultUpdateHz, "Animation frame rate in Hz")
	logLevel := fs.String("log-level", "info", "Log level: error, warn, info, debug")
	logFormat := fs.String("log-format", "text", "Log format: text, json")

	minValue := fs.Float64("min", 0, "Minimum value")
	maxValue := fs.Float64("max", 0, "Maximum value")
	step := fs.Float64("step", 0, "Snapping step")
	length := fs.Float64("length", 0, "Ruler length in pixels")
	preset := fs.String("units", "", "Unit preset")
	defaultUnit := fs.Int("default-unit", 0, "Index of the unit active at start")
	showUnits := fs.Bool("show-units", false, "Show the unit switcher")
	noMagnify := fs.Bool("no-magnify", false, "Disable tick magnification")
	easing := fs.String("easing", "", "Settle easing: linear, ease-out, spring")

	collect = func() FlagOverrides {
		var o FlagOverrides
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "input-device":
				o.InputDevice = inputDevice
			case "ipc-socket":
				o.IPCSocketPath = ipcSocket
			case "ws-listen":
				o.WSListen = wsListen
			case "ws":
				o.WSEnabled = wsEnabled
			case "update-hz":
				o.UpdateHz = updateHz
			case "log-level":
				o.LogLevel = logLevel
			case "log-format":
				o.LogFormat = logFormat
			case "min":
				o.Picker.MinValue = minValue
			case "max":
				o.Picker.MaxValue = maxValue
			case "step":
				o.Picker.Step = step
			case "length":
				o.Picker.Length = length
			case "units":
				o.Picker.UnitsPreset = preset
			case "default-unit":
				o.Picker.DefaultUnitIndex = defaultUnit
			case "show-units":
				o.Picker.ShowUnitSwitcher = showUnits
			case "no-magnify":
				enabled := !*noMagnify
				o.Picker.MagnificationEnabled = &enabled
			case "easing":
				o.Picker.Easing = easing
			}
		})
		return o
	}
	return configPath, collect
}

// loadConfig merges defaults, the optional config file and flag overrides,
// then validates the result.
func loadConfig(configPath string, o FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	o.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "ctl":
			os.Exit(runCtl(os.Args[2:], os.Stdout, os.Stderr))
		case "tui":
			runTUISubcommand(os.Args[2:])
			return
		}
	}

	// Check for version/help early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	fs := flag.NewFlagSet("rulerpicker", flag.ExitOnError)
	fs.Usage = printUsage
	configPath, collect := cliFlags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := loadConfig(*configPath, collect())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	format, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(level, format, os.Stderr)
	warnShadowedRange(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runDaemonMain(ctx, cfg, logger); err != nil {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// runDaemonMain wires the daemon loop to its inputs and outputs and runs them
// until ctx is canceled or one of them fails.
func runDaemonMain(ctx context.Context, cfg Config, logger *slog.Logger) error {
	requests := make(chan Request, 64)
	broadcasts := make(chan StateBroadcast, 256)

	// Without a websocket nobody consumes broadcasts; a nil channel disables them.
	var out chan<- StateBroadcast
	if cfg.WebSocket.Enabled {
		out = broadcasts
	}

	anim := animate.New(cfg.Animation.UpdateHz)
	ctrl, err := newPicker(cfg.Picker, anim, out, logger)
	if err != nil {
		return err
	}

	logger.Debug("configuration",
		"range_min", cfg.Picker.Range.Min,
		"range_max", cfg.Picker.Range.Max,
		"step", cfg.Picker.Range.Step,
		"length", cfg.Picker.Geometry.Length,
		"units", cfg.Picker.Units.Registry.Len(),
		"magnification", cfg.Picker.Magnification.Enabled,
		"update_hz", cfg.Animation.UpdateHz)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(ctx, requests, ctrl, anim, out, cfg.Animation.UpdateHz, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, ExpandPath(cfg.IPC.SocketPath), requests, logger)
	})

	listenInfo := []any{"ipc", cfg.IPC.SocketPath, "update_rate_hz", cfg.Animation.UpdateHz}

	if cfg.WebSocket.Enabled {
		srv := NewServer(logger, requests, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.WebSocket.Path)
		httpSrv := &http.Server{
			Addr:              cfg.WebSocket.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			srv.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, srv.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("state websocket server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		listenInfo = append(listenInfo, "ws", "ws://"+cfg.WebSocket.Listen+cfg.WebSocket.Path)
	} else {
		logger.Debug("state websocket disabled")
	}

	if cfg.Input.Enabled {
		g.Go(func() error {
			return runTouchInput(ctx, cfg.Input, requests, logger)
		})
		listenInfo = append(listenInfo, "input", strings.Join(cfg.Input.Devices, ","))
	}

	logger.Info("listening", listenInfo...)
	return g.Wait()
}

func printTUIUsage() {
	fmt.Printf("rulerpicker tui v%s\n", version)
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  rulerpicker tui [OPTIONS]")
	fmt.Println()
	fmt.Println("KEYS:")
	fmt.Println("  Up, +, k      increment")
	fmt.Println("  Down, -, j    decrement")
	fmt.Println("  u             next unit (with -show-units)")
	fmt.Println("  1-9           select unit (with -show-units)")
	fmt.Println("  q, Esc        quit")
	fmt.Println("  mouse drag    drag the ruler")
	fmt.Println()
	fmt.Println("Accepts the daemon options that configure the picker, plus:")
	fmt.Println("  -log-file string")
	fmt.Println("        Write logs to this file (logs are discarded by default)")
	fmt.Println()
}

func runTUISubcommand(args []string) {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	fs.Usage = printTUIUsage
	configPath, collect := cliFlags(fs)
	logFile := fs.String("log-file", "", "Write logs to this file")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath, collect())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	var w io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(ExpandPath(*logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	level, _ := parseLogLevel(cfg.Logging.Level)
	format, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(level, format, w)
	warnShadowedRange(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runTUI(ctx, cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
