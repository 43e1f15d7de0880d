// gestured - gesture interaction routing daemon
//
//	gestured start          Run the daemon in the foreground
//	gestured status         Show daemon status over the control socket
//	gestured check-config   Validate a configuration file
//	gestured version        Print the version
package main

import (
	"flag"
	"fmt"
	"os"

	"gestured/internal/config"
	"gestured/internal/ipc"
)

// Version is the daemon version, overridable at link time.
var Version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		cmdStart()
	case "status":
		cmdStatus()
	case "check-config":
		cmdCheckConfig()
	case "version", "-v", "--version":
		fmt.Printf("gestured %s\n", Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`gestured - Gesture Interaction Routing Daemon

USAGE:
    gestured <command> [options]

COMMANDS:
    start           Run the daemon in the foreground
    status          Show status of a running daemon
    check-config    Validate a configuration file without starting
    version         Print the version
    help            Show this help message

START OPTIONS:
    -config <path>     Configuration file (TOML, JSON, or YAML)
    -source <name>     Sample source: none, synthetic, replay (default none)
    -replay <path>     Recording to play when -source=replay
    -seed <n>          Seed for the synthetic source

The daemon routes gesture samples through prioritized zones, arbitrates
conflicts between in-flight gestures, and records completions. Control it
with gesturectl over the unix socket.

Use 'gesturectl help' for the client commands.`)
}

func cmdStart() {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	sourceName := fs.String("source", "none", "sample source: none, synthetic, replay")
	replayPath := fs.String("replay", "", "recording file for -source=replay")
	seed := fs.Int64("seed", 0, "seed for the synthetic source")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	daemon, err := NewDaemon(DaemonOptions{
		Config:     cfg,
		Version:    Version,
		Source:     *sourceName,
		ReplayPath: *replayPath,
		Seed:       *seed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing daemon: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
		os.Exit(1)
	}
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	socketPath := fs.String("socket", "", "control socket path override")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	socket := cfg.IPC.SocketPath
	if *socketPath != "" {
		socket = *socketPath
	}

	client, err := ipc.Connect(socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Daemon not reachable at %s: %v\n", socket, err)
		os.Exit(1)
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying status: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== gestured Status ===")
	fmt.Printf("Version:         %s\n", status.Version)
	fmt.Printf("Detection:       %s\n", runningWord(status.Running))
	fmt.Printf("Uptime:          %s\n", status.Uptime)
	fmt.Printf("Zones:           %d\n", status.Zones)
	fmt.Printf("Active gestures: %d\n", status.ActiveGestures)
	fmt.Printf("Processed:       %d\n", status.TotalProcessed)
	if status.ArchiveEnabled {
		fmt.Printf("Archived:        %d\n", status.ArchivedCount)
	} else {
		fmt.Println("Archive:         disabled")
	}
}

func cmdCheckConfig() {
	fs := flag.NewFlagSet("check-config", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	fs.Parse(os.Args[2:])

	path := *configPath
	if path == "" && fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if _, err := cfg.GestureConfiguration(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration OK")
	fmt.Printf("  Socket:   %s\n", cfg.IPC.SocketPath)
	fmt.Printf("  Profiles: %s\n", cfg.Profiles.Dir)
	fmt.Printf("  Archive:  %s\n", archiveWord(cfg))
}

func runningWord(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func archiveWord(cfg *config.Config) string {
	if cfg.Archive.Enabled {
		return cfg.Archive.Path
	}
	return "disabled"
}
