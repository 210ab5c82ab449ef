package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/PixPMusic/gopher-keys/internal/binding"
	"github.com/PixPMusic/gopher-keys/internal/config"
	"github.com/PixPMusic/gopher-keys/internal/inject"
	"github.com/PixPMusic/gopher-keys/internal/midi"
	"github.com/PixPMusic/gopher-keys/internal/profile"
	"github.com/PixPMusic/gopher-keys/internal/prompt"
	"github.com/PixPMusic/gopher-keys/internal/session"
	"github.com/PixPMusic/gopher-keys/internal/startup"
)

var logger *slog.Logger

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

type options struct {
	configPath  string
	device      string
	profilePath string
	backend     string
	debug       bool
	set         map[string]bool
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  gopher-keys [flags]                         map MIDI notes to key toggles
  gopher-keys [flags] ports                   list MIDI inputs
  gopher-keys [flags] autostart enable|disable|status

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "config file (default: user config dir)")
	flag.StringVar(&opts.device, "device", "", "MIDI input name (default: last input)")
	flag.StringVar(&opts.profilePath, "profile", "", "profile to load, skipping the load prompt")
	flag.StringVar(&opts.backend, "backend", "", "key injection backend: auto|keybd|xdotool|log")
	flag.BoolVar(&opts.debug, "debug", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	opts.set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, opts)
	initLogger(cfg.Debug)

	switch flag.Arg(0) {
	case "":
		os.Exit(run(cfg, opts))
	case "ports":
		os.Exit(listPorts())
	case "autostart":
		os.Exit(autostart(cfg, flag.Arg(1)))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func saveConfig(cfg *config.Config, path string) error {
	if path != "" {
		return cfg.SaveTo(path)
	}
	return cfg.Save()
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config, opts options) {
	if opts.set["device"] {
		cfg.InPort = opts.device
	}
	if opts.set["backend"] {
		cfg.Backend = opts.backend
	}
	if opts.set["debug"] {
		cfg.Debug = opts.debug
	}
}

func listPorts() int {
	manager := midi.NewManager(logger)
	defer manager.Close()

	names := manager.ListInPorts()
	if len(names) == 0 {
		fmt.Println("No MIDI inputs found.")
		return 1
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return 0
}

func autostart(cfg *config.Config, action string) int {
	switch action {
	case "enable":
		if err := startup.Enable(cfg.LastProfile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to enable autostart: %v\n", err)
			return 1
		}
		fmt.Println("Autostart enabled.")
	case "disable":
		if err := startup.Disable(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to disable autostart: %v\n", err)
			return 1
		}
		fmt.Println("Autostart disabled.")
	case "status":
		if startup.IsEnabled() {
			fmt.Println("Autostart is enabled.")
		} else {
			fmt.Println("Autostart is disabled.")
		}
	default:
		usage()
		return 2
	}
	return 0
}

func run(cfg *config.Config, opts options) int {
	manager := midi.NewManager(logger)
	defer manager.Close()

	ports := manager.ListInPorts()
	for _, name := range ports {
		fmt.Println(name)
	}

	portName := cfg.InPort
	if portName == "" {
		name, err := manager.DefaultInPort()
		if err != nil {
			logger.Error("midi: no input", "err", err)
			fmt.Println("Failed to open MIDI. Is another program using it?")
			return 1
		}
		portName = name
	}

	notes, stopListening, err := manager.Listen(portName)
	if err != nil {
		logger.Error("midi: failed to open input", "port", portName, "err", err)
		fmt.Println("Failed to open MIDI. Is another program using it?")
		return 1
	}
	defer stopListening()

	injector, err := inject.New(inject.Backend(cfg.Backend), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up key injection: %v\n", err)
		return 1
	}

	profiles, err := profile.New(cfg.ProfileDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	console := prompt.NewConsole(os.Stdin, os.Stdout)
	store := binding.NewStore()

	loaded, err := loadProfile(console, store, opts.profilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load profile: %v\n", err)
		return 1
	}

	sess := session.New(store, injector, console, profiles, logger, session.Options{
		ForceLastDownOnLoad: cfg.ForceLastDownOnLoad,
		OnSaved: func(path string) {
			cfg.LastProfile = path
			if err := saveConfig(cfg, opts.configPath); err != nil {
				logger.Warn("config: failed to remember profile", "err", err)
			}
		},
	})
	sess.Start(loaded)
	defer sess.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = sess.Run(ctx, notes)
	if errors.Is(err, session.ErrTransportClosed) {
		logger.Warn("midi: input closed")
		return 0
	}
	if err != nil {
		logger.Error("session ended", "err", err)
		return 1
	}
	return 0
}

// loadProfile asks for a profile path unless one was given and loads it into
// store. It reports false when the session should go through setup. Only a
// malformed profile is an error.
func loadProfile(console *prompt.Console, store *binding.Store, path string) (bool, error) {
	if path == "" {
		console.Write("Type in a config file location. Leave it blank if you'd like to create a new one.\n")
		line, err := console.ReadLine()
		if err != nil {
			return false, nil
		}
		path = line
	}

	err := profile.Load(path, store)
	switch {
	case err == nil:
		console.Write(prompt.Success("Loaded and ready!") + "\n")
		return true, nil
	case profile.IsParseError(err):
		return false, err
	case errors.Is(err, profile.ErrNoProfile):
		return false, nil
	default:
		logger.Warn("profile: could not read, starting setup", "path", path, "err", err)
		console.Write(prompt.Notice("Could not open that file, starting setup.") + "\n")
		return false, nil
	}
}
