// synack drives the handshake conformance engine from the command line.
//
// It runs directed and random sessions, auto-runs a session on a fixed interval, executes
// Lua test plans, replays recorded traces and prints checksums. Driver defaults come from
// a YAML configuration file and are overridden by flags.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/arloliu/go-synack/config"
	"github.com/arloliu/go-synack/fsm"
)

// version is reported by --version.
const version = "0.1.0"

type command string

const (
	cmdRun      command = "run"
	cmdAuto     command = "auto"
	cmdScript   command = "script"
	cmdReplay   command = "replay"
	cmdChecksum command = "checksum"
)

// directedEvent is a directed event given as DATA[:CHECKSUM[:VALID]].
// An empty checksum is replaced by the valid checksum of DATA.
type directedEvent struct {
	data     string
	checksum string
	valid    bool
}

func parseEvent(s string) (directedEvent, error) {
	parts := strings.SplitN(s, ":", 3)
	ev := directedEvent{data: parts[0], valid: true}
	if _, err := fsm.ParseSymbol(ev.data); err != nil {
		return ev, errors.Errorf("event %q: %s", s, err)
	}
	if len(parts) > 1 {
		ev.checksum = parts[1]
	}
	if len(parts) > 2 {
		valid, err := strconv.ParseBool(parts[2])
		if err != nil {
			return ev, errors.Errorf("event %q: invalid valid flag %q", s, parts[2])
		}
		ev.valid = valid
	}

	return ev, nil
}

type arguments struct {
	command command
	cfg     *config.Config

	events    []directedEvent
	duration  time.Duration
	maxEvents int
	path      string
	symbols   []string
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("synack", "Conformance test driver for the SYN/ACK handshake model.")
	app.Version(version)
	configPath := app.Flag("config", "YAML configuration file (defaults to the first of synack.yaml, .synack.yaml, ~/.config/synack/config.yaml).").String()
	logLevel := app.Flag("log-level", "Log level.").Enum("debug", "info", "warn", "error")
	seed := app.Flag("seed", "Seed of the random generator (defaults to a time-based seed).").String()
	validProb := app.Flag("valid-prob", "Probability of a correct checksum on random events.").Default("-1").Float64()
	window := app.Flag("window", "Number of recent packets shown in the report.").Int()

	run := app.Command("run", "Run directed events followed by random events and print the report.")
	runEvents := run.Flag("event", "Directed event DATA[:CHECKSUM[:VALID]], may be repeated.").Short('e').Strings()
	runCount := run.Flag("count", "Number of random events after the directed ones.").Default("-1").Int()
	runTrace := run.Flag("trace", "Record the session into a new trace log at this path.").String()
	runPcap := run.Flag("pcap", "Export the session as a pcap capture at this path.").String()

	auto := app.Command("auto", "Run random events on a fixed interval until interrupted.")
	autoInterval := auto.Flag("interval", "Interval between events.").Duration()
	autoDuration := auto.Flag("duration", "Stop after this long (0 runs until SIGINT).").Default("0s").Duration()
	autoMax := auto.Flag("max-events", "Stop after this many events (0 is unlimited).").Default("0").Int()
	autoMetrics := auto.Flag("metrics-addr", "Serve Prometheus metrics on this address.").String()
	autoTrace := auto.Flag("trace", "Record the session into a new trace log at this path.").String()

	script := app.Command("script", "Run a Lua test plan.")
	scriptPath := script.Arg("path", "Plan file.").Required().String()
	scriptTrace := script.Flag("trace", "Record the session into a new trace log at this path.").String()

	replay := app.Command("replay", "Replay a trace log into a fresh runner and report divergences.")
	replayPath := replay.Arg("path", "Trace log directory.").Required().String()
	replayPcap := replay.Flag("pcap", "Export the recorded packets as a pcap capture at this path.").String()

	cs := app.Command("checksum", "Print the checksum of each symbol.")
	csSymbols := cs.Arg("symbol", "Symbols, only the first character of each is used.").Required().Strings()

	selected, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	a := &arguments{command: command(selected), cfg: cfg}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *seed != "" {
		v, err := strconv.ParseUint(*seed, 0, 64)
		if err != nil {
			return nil, errors.Errorf("invalid seed %q", *seed)
		}
		cfg.Seed = &v
	}
	if *validProb >= 0 {
		cfg.ValidProbability = *validProb
	}
	if *window > 0 {
		cfg.WindowSize = *window
	}

	switch a.command {
	case cmdRun:
		for _, s := range *runEvents {
			ev, err := parseEvent(s)
			if err != nil {
				return nil, err
			}
			a.events = append(a.events, ev)
		}
		if *runCount >= 0 {
			cfg.Count = *runCount
		}
		overrideString(&cfg.TracePath, *runTrace)
		overrideString(&cfg.PcapPath, *runPcap)
	case cmdAuto:
		if *autoInterval > 0 {
			cfg.TickInterval = *autoInterval
		}
		if *autoMax < 0 {
			return nil, errors.Errorf("cannot set a negative --max-events")
		}
		a.duration = *autoDuration
		a.maxEvents = *autoMax
		overrideString(&cfg.MetricsAddr, *autoMetrics)
		overrideString(&cfg.TracePath, *autoTrace)
	case cmdScript:
		a.path = *scriptPath
		overrideString(&cfg.TracePath, *scriptTrace)
	case cmdReplay:
		a.path = *replayPath
		overrideString(&cfg.PcapPath, *replayPcap)
	case cmdChecksum:
		a.symbols = *csSymbols
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func main() {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments, %s, try --help", err)
	}

	if err := args.execute(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr)
		kingpin.Fatalf("%s", err)
	}
}
