// gesturectl is the control CLI for gestured.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"gioui.org/f32"

	"gestured/internal/config"
	"gestured/internal/gesture"
	"gestured/internal/ipc"
	"gestured/internal/zone"
)

// Version is the client version, overridable at link time.
var Version = "1.0.0"

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "control socket path override")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	switch cmd := flag.Arg(0); cmd {
	case "status":
		cmdStatus()
	case "ping":
		cmdPing()
	case "zones":
		cmdZones()
	case "zone-add":
		cmdZoneAdd(flag.Args()[1:])
	case "zone-remove":
		cmdZoneOp(cmd, func(c *ipc.IPCClient, id string) error { return c.RemoveZone(id) })
	case "zone-enable":
		cmdZoneOp(cmd, func(c *ipc.IPCClient, id string) error { return c.EnableZone(id) })
	case "zone-disable":
		cmdZoneOp(cmd, func(c *ipc.IPCClient, id string) error { return c.DisableZone(id) })
	case "zone-clear":
		cmdZoneClear()
	case "config":
		cmdConfig()
	case "config-set":
		cmdConfigSet(flag.Args()[1:])
	case "stats":
		cmdStats()
	case "history":
		cmdHistory(flag.Args()[1:])
	case "metrics":
		cmdMetrics()
	case "health":
		cmdHealth()
	case "archive":
		cmdArchive(flag.Args()[1:])
	case "cancel-all":
		cmdCancelAll()
	case "start":
		cmdDetection(true)
	case "stop":
		cmdDetection(false)
	case "watch":
		cmdWatch()
	case "replay":
		cmdReplay(flag.Args()[1:])
	case "version":
		fmt.Printf("gesturectl %s\n", Version)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `gesturectl - Control utility for gestured

Usage: gesturectl [options] <command> [args]

Commands:
  status                Show daemon status
  ping                  Check daemon liveness
  zones                 List registered zones
  zone-add [flags]      Register a zone (see zone-add -h)
  zone-remove <id>      Remove a zone
  zone-enable <id>      Enable a zone
  zone-disable <id>     Disable a zone
  zone-clear            Remove every zone
  config                Show the gesture configuration
  config-set [flags]    Update the gesture configuration
  stats                 Show engine statistics
  history [n]           Show recent completed gestures
  metrics               Dump the metrics snapshot
  health                Run health checks
  archive [n]           Show archive aggregates and recent rows
  cancel-all            Force-cancel every active gesture
  start                 Start gesture detection
  stop                  Stop gesture detection
  watch [types...]      Stream daemon events until interrupted
  replay <file>         Feed a JSONL sample recording to the daemon
  version               Print the version
  help                  Show this help message

Options:
  -config <path>   Path to config file
  -socket <path>   Control socket path override`)
}

func connect() *ipc.IPCClient {
	socket := *socketPath
	if socket == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		socket = cfg.IPC.SocketPath
	}

	client, err := ipc.Connect(socket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot connect to daemon at %s: %v\n", socket, err)
		fmt.Fprintln(os.Stderr, "Is the daemon running? Start it with: gestured start")
		os.Exit(1)
	}
	return client
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fail(err)
	}

	fmt.Println("=== gestured Status ===")
	fmt.Printf("Version:         %s\n", status.Version)
	fmt.Printf("Started:         %s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Printf("Uptime:          %s\n", status.Uptime.Round(time.Second))
	fmt.Printf("Detection:       %s\n", map[bool]string{true: "running", false: "stopped"}[status.Running])
	fmt.Printf("Zones:           %d\n", status.Zones)
	fmt.Printf("Active gestures: %d\n", status.ActiveGestures)
	fmt.Printf("Processed:       %d\n", status.TotalProcessed)
	if status.ArchiveEnabled {
		fmt.Printf("Archived:        %d\n", status.ArchivedCount)
	} else {
		fmt.Println("Archive:         disabled")
	}
}

func cmdPing() {
	client := connect()
	defer client.Close()

	start := time.Now()
	if err := client.Ping(); err != nil {
		fail(err)
	}
	fmt.Printf("pong (%s)\n", time.Since(start).Round(time.Microsecond))
}

func cmdZones() {
	client := connect()
	defer client.Close()

	zones, err := client.Zones()
	if err != nil {
		fail(err)
	}
	if len(zones) == 0 {
		fmt.Println("No zones registered.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tENABLED\tBOUNDS\tSENSITIVITY\tALLOWED")
	for _, z := range zones {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%.2f\t%s\n",
			z.ID, z.Name, z.Priority, z.Enabled,
			formatBounds(z.Bounds), z.Sensitivity, formatKinds(z.Allowed))
	}
	w.Flush()
}

func formatBounds(r gesture.Rect) string {
	return fmt.Sprintf("%.0f,%.0f %.0fx%.0f",
		r.Min.X, r.Min.Y, r.Max.X-r.Min.X, r.Max.Y-r.Min.Y)
}

func formatKinds(kinds []gesture.Kind) string {
	if len(kinds) == 0 {
		return "(none)"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

func cmdZoneAdd(args []string) {
	fs := flag.NewFlagSet("zone-add", flag.ExitOnError)
	id := fs.String("id", "", "zone id (required)")
	name := fs.String("name", "", "zone name")
	x := fs.Float64("x", 0, "bounds origin x")
	y := fs.Float64("y", 0, "bounds origin y")
	width := fs.Float64("width", 0, "bounds width")
	height := fs.Float64("height", 0, "bounds height")
	priority := fs.Int("priority", 0, "zone priority, higher wins")
	sensitivity := fs.Float64("sensitivity", 1.0, "sensitivity multiplier")
	allowed := fs.String("allowed", "", "comma-separated gesture kinds (empty blocks all)")
	fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "zone-add requires -id")
		os.Exit(1)
	}

	var kinds []gesture.Kind
	if *allowed != "" {
		for _, s := range strings.Split(*allowed, ",") {
			k, err := gesture.ParseKind(strings.TrimSpace(s))
			if err != nil {
				fail(err)
			}
			kinds = append(kinds, k)
		}
	}

	z := zone.Zone{
		ID:   *id,
		Name: *name,
		Bounds: gesture.Rect{
			Min: f32.Pt(float32(*x), float32(*y)),
			Max: f32.Pt(float32(*x+*width), float32(*y+*height)),
		},
		Sensitivity: *sensitivity,
		Enabled:     true,
		Priority:    *priority,
		Allowed:     kinds,
	}

	client := connect()
	defer client.Close()

	if err := client.AddZone(z); err != nil {
		fail(err)
	}
	fmt.Printf("Zone %s added.\n", z.ID)
}

func cmdZoneOp(name string, op func(*ipc.IPCClient, string) error) {
	if flag.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: gesturectl %s <id>\n", name)
		os.Exit(1)
	}
	id := flag.Arg(1)

	client := connect()
	defer client.Close()

	if err := op(client, id); err != nil {
		fail(err)
	}
	fmt.Printf("Zone %s: ok\n", id)
}

func cmdZoneClear() {
	client := connect()
	defer client.Close()

	removed, err := client.ClearZones()
	if err != nil {
		fail(err)
	}
	fmt.Printf("Removed %d zones.\n", removed)
}

func cmdConfig() {
	client := connect()
	defer client.Close()

	cfg, err := client.Configuration()
	if err != nil {
		fail(err)
	}

	fmt.Println("=== Gesture Configuration ===")
	fmt.Printf("Enabled:           %s\n", formatKinds(cfg.Enabled))
	fmt.Printf("Touches:           %d-%d\n", cfg.MinTouches, cfg.MaxTouches)
	fmt.Printf("Recognition delay: %s\n", cfg.RecognitionDelay)
	fmt.Printf("Simultaneous:      %v\n", cfg.Simultaneous)
	fmt.Printf("Pressure support:  %v\n", cfg.PressureSupport)
}

func cmdConfigSet(args []string) {
	fs := flag.NewFlagSet("config-set", flag.ExitOnError)
	enabled := fs.String("enabled", "", "comma-separated gesture kinds, or 'all'")
	minTouches := fs.Int("min-touches", -1, "minimum touch count")
	maxTouches := fs.Int("max-touches", -1, "maximum touch count")
	delay := fs.Duration("recognition-delay", -1, "recognition delay")
	simultaneous := fs.String("simultaneous", "", "allow simultaneous gestures: true or false")
	pressure := fs.String("pressure", "", "pressure support: true or false")
	fs.Parse(args)

	client := connect()
	defer client.Close()

	// Read-modify-write against the daemon's current configuration.
	cfg, err := client.Configuration()
	if err != nil {
		fail(err)
	}

	if *enabled != "" {
		if *enabled == "all" {
			cfg.Enabled = gesture.Kinds()
		} else {
			cfg.Enabled = nil
			for _, s := range strings.Split(*enabled, ",") {
				k, err := gesture.ParseKind(strings.TrimSpace(s))
				if err != nil {
					fail(err)
				}
				cfg.Enabled = append(cfg.Enabled, k)
			}
		}
	}
	if *minTouches >= 0 {
		cfg.MinTouches = *minTouches
	}
	if *maxTouches >= 0 {
		cfg.MaxTouches = *maxTouches
	}
	if *delay >= 0 {
		cfg.RecognitionDelay = *delay
	}
	if *simultaneous != "" {
		v, err := strconv.ParseBool(*simultaneous)
		if err != nil {
			fail(err)
		}
		cfg.Simultaneous = v
	}
	if *pressure != "" {
		v, err := strconv.ParseBool(*pressure)
		if err != nil {
			fail(err)
		}
		cfg.PressureSupport = v
	}

	if err := client.SetConfiguration(cfg); err != nil {
		fail(err)
	}
	fmt.Println("Configuration updated.")
}

func cmdStats() {
	client := connect()
	defer client.Close()

	resp, err := client.Stats()
	if err != nil {
		fail(err)
	}
	s := resp.Stats

	fmt.Println("=== Engine Statistics ===")
	fmt.Printf("Total processed:  %d\n", s.TotalProcessed)
	fmt.Printf("Active now:       %d\n", s.ActiveCount)
	fmt.Printf("Window size:      %d\n", s.WindowSize)
	fmt.Printf("Average duration: %s\n", s.AverageDuration.Round(time.Millisecond))
	fmt.Printf("Success rate:     %.1f%%\n", s.SuccessRate*100)
	if s.MostUsedCount > 0 {
		fmt.Printf("Most used:        %s (%d)\n", s.MostUsed, s.MostUsedCount)
	}
}

func cmdHistory(args []string) {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Usage: gesturectl history [n]")
			os.Exit(1)
		}
		limit = n
	}

	client := connect()
	defer client.Close()

	entries, err := client.History(limit)
	if err != nil {
		fail(err)
	}
	if len(entries) == 0 {
		fmt.Println("No completed gestures.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDED\tKIND\tZONE\tDURATION\tRESULT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.EndedAt.Format("15:04:05.000"),
			e.Kind, zoneOrDash(e.ZoneID),
			e.Duration.Round(time.Millisecond),
			resultWord(e.Successful))
	}
	w.Flush()
}

func zoneOrDash(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

func resultWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "cancelled"
}

func cmdMetrics() {
	client := connect()
	defer client.Close()

	resp, err := client.Metrics()
	if err != nil {
		fail(err)
	}

	data, err := json.MarshalIndent(resp.Metrics, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

func cmdHealth() {
	client := connect()
	defer client.Close()

	resp, err := client.Health()
	if err != nil {
		fail(err)
	}

	fmt.Printf("Overall: %s (ready: %v)\n", resp.Overall, resp.Ready)
	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tMESSAGE\tDURATION")
	for _, r := range resp.Components {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Component, r.Status, r.Message, r.Duration.Round(time.Microsecond))
	}
	w.Flush()

	if resp.Overall != "healthy" {
		os.Exit(1)
	}
}

func cmdArchive(args []string) {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Usage: gesturectl archive [n]")
			os.Exit(1)
		}
		limit = n
	}

	client := connect()
	defer client.Close()

	resp, err := client.Archive(limit)
	if err != nil {
		fail(err)
	}

	fmt.Println("=== Gesture Archive ===")
	fmt.Printf("Total:        %d\n", resp.Count)
	fmt.Printf("Success rate: %.1f%%\n", resp.SuccessRate*100)
	if len(resp.ByKind) > 0 {
		fmt.Println()
		fmt.Println("By kind:")
		for _, kc := range resp.ByKind {
			fmt.Printf("  %-12s %d\n", kc.Kind, kc.Count)
		}
	}
	if len(resp.Recent) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ENDED\tKIND\tZONE\tDURATION\tRESULT")
		for _, e := range resp.Recent {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.EndedAt.Format("2006-01-02 15:04:05"),
				e.Kind, zoneOrDash(e.ZoneID),
				e.Duration.Round(time.Millisecond),
				resultWord(e.Successful))
		}
		w.Flush()
	}
}

func cmdCancelAll() {
	client := connect()
	defer client.Close()

	n, err := client.CancelAll()
	if err != nil {
		fail(err)
	}
	fmt.Printf("Cancelled %d active gestures.\n", n)
}

func cmdDetection(start bool) {
	client := connect()
	defer client.Close()

	var err error
	if start {
		err = client.StartDetection()
	} else {
		err = client.StopDetection()
	}
	if err != nil {
		fail(err)
	}
	if start {
		fmt.Println("Detection started.")
	} else {
		fmt.Println("Detection stopped.")
	}
}

// eventTypeNames maps watch arguments to event types. The "detection"
// argument covers both the started and stopped events.
var eventTypeNames = map[string][]ipc.EventType{
	"zones":     {ipc.EventZoneChanged},
	"processed": {ipc.EventGestureProcessed},
	"updated":   {ipc.EventGestureUpdated},
	"completed": {ipc.EventGestureCompleted},
	"rejected":  {ipc.EventGestureRejected},
	"config":    {ipc.EventConfigUpdated},
	"detection": {ipc.EventDetectionStarted, ipc.EventDetectionStopped},
}

func cmdWatch() {
	var types []ipc.EventType
	for _, arg := range flag.Args()[1:] {
		ts, ok := eventTypeNames[arg]
		if !ok {
			fmt.Fprintf(os.Stderr, "Unknown event type: %s\n", arg)
			os.Exit(1)
		}
		types = append(types, ts...)
	}

	client := connect()
	defer client.Close()

	client.OnEvent(func(ev *ipc.Event) {
		ts := ev.Timestamp.Format("15:04:05.000")
		if len(ev.Data) > 0 {
			fmt.Printf("[%s] %s %s\n", ts, eventName(ev.Type), string(ev.Data))
		} else {
			fmt.Printf("[%s] %s\n", ts, eventName(ev.Type))
		}
	})

	if err := client.Subscribe(types...); err != nil {
		fail(err)
	}
	fmt.Fprintln(os.Stderr, "Watching events. Press Ctrl+C to stop.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	client.Unsubscribe()
}

func eventName(t ipc.EventType) string {
	switch t {
	case ipc.EventZoneChanged:
		return "zone"
	case ipc.EventGestureProcessed:
		return "processed"
	case ipc.EventGestureUpdated:
		return "updated"
	case ipc.EventGestureCompleted:
		return "completed"
	case ipc.EventGestureRejected:
		return "rejected"
	case ipc.EventConfigUpdated:
		return "config"
	case ipc.EventDetectionStarted:
		return "detection-started"
	case ipc.EventDetectionStopped:
		return "detection-stopped"
	default:
		return fmt.Sprintf("event-%d", t)
	}
}

// cmdReplay feeds a JSONL recording to the daemon, pacing submissions by
// the recorded timestamps.
func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	speed := fs.Float64("speed", 1.0, "playback speed multiplier")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: gesturectl replay [-speed n] <file>")
		os.Exit(1)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fail(err)
	}
	defer f.Close()

	client := connect()
	defer client.Close()

	var (
		sent int
		prev time.Time
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var s gesture.Sample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping malformed line: %v\n", err)
			continue
		}

		if !prev.IsZero() && !s.Timestamp.IsZero() && *speed > 0 {
			if gap := s.Timestamp.Sub(prev); gap > 0 {
				time.Sleep(time.Duration(float64(gap) / *speed))
			}
		}
		prev = s.Timestamp

		if _, err := client.Submit([]gesture.Sample{s}); err != nil {
			fail(err)
		}
		sent++
	}
	if err := scanner.Err(); err != nil {
		fail(err)
	}

	fmt.Printf("Replayed %d samples.\n", sent)
}
