package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-synack/checksum"
	"github.com/arloliu/go-synack/fsm"
	"github.com/arloliu/go-synack/logger"
	"github.com/arloliu/go-synack/report"
	"github.com/arloliu/go-synack/runner"
	"github.com/arloliu/go-synack/scheduler"
	"github.com/arloliu/go-synack/script"
	"github.com/arloliu/go-synack/trace"
)

const metricsNamespace = "synack"

func (a *arguments) execute(out io.Writer, errOut io.Writer) error {
	l := logger.NewSlogWithOutput(errOut, a.cfg.Level(), false)
	logger.SetLogger(l)

	switch a.command {
	case cmdRun:
		return a.run(out, l)
	case cmdAuto:
		return a.auto(out, l)
	case cmdScript:
		return a.script(out, l)
	case cmdReplay:
		return a.replay(out, l)
	case cmdChecksum:
		return a.checksum(out)
	default:
		return errors.Errorf("unknown command %q", a.command)
	}
}

func (a *arguments) seed() uint64 {
	if a.cfg.Seed != nil {
		return *a.cfg.Seed
	}

	return uint64(time.Now().UnixNano())
}

// session builds a runner and, when a trace path is configured, the trace recording it.
// The returned closer must be called when the session ends.
func (a *arguments) session(l logger.Logger) (*runner.Runner, func() error, error) {
	seed := a.seed()
	opts := []runner.Option{
		runner.WithSeed(seed),
		runner.WithValidProbability(a.cfg.ValidProbability),
		runner.WithLogger(l),
	}

	closer := func() error { return nil }
	if a.cfg.TracePath != "" {
		tl, err := trace.Create(a.cfg.TracePath, trace.Header{
			Seed:             seed,
			ValidProbability: a.cfg.ValidProbability,
			Note:             string(a.command),
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, runner.WithRecorder(tl))
		closer = func() error {
			if err := tl.Sync(); err != nil {
				_ = tl.Close()
				return err
			}
			return tl.Close()
		}
		l.Info("recording trace", "path", a.cfg.TracePath)
	}

	r, err := runner.New(opts...)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}

	return r, closer, nil
}

func (a *arguments) run(out io.Writer, l logger.Logger) (err error) {
	r, closeTrace, err := a.session(l)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeTrace(); err == nil {
			err = cerr
		}
	}()

	for _, ev := range a.events {
		cs := ev.checksum
		if cs == "" {
			if cs, err = checksum.ForString(ev.data); err != nil {
				return err
			}
		}
		if _, err := r.Submit(ev.data, cs, ev.valid); err != nil {
			return err
		}
	}

	for range a.cfg.Count {
		r.RunRandom()
	}

	if err := a.exportPcap(r.History()); err != nil {
		return err
	}

	fmt.Fprintln(out, renderSummary(r.Seed(), report.Build(r, a.cfg.Goals, a.cfg.WindowSize)))

	return nil
}

func (a *arguments) auto(out io.Writer, l logger.Logger) (err error) {
	r, closeTrace, err := a.session(l)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeTrace(); err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if a.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.duration)
		defer cancel()
	}

	if a.cfg.MetricsAddr != "" {
		shutdown := serveMetrics(a.cfg.MetricsAddr, r, l)
		defer shutdown()
	}

	sched := scheduler.New(ctx, l)
	done := make(chan struct{})
	var once sync.Once
	err = sched.Every("auto-run", a.cfg.TickInterval, func() bool {
		r.RunRandom()
		if a.maxEvents > 0 && r.Len() >= a.maxEvents {
			once.Do(func() { close(done) })
			return false
		}
		return true
	}, false)
	if err != nil {
		return err
	}

	l.Info("auto-run started", "interval", a.cfg.TickInterval, "max_events", a.maxEvents)
	select {
	case <-ctx.Done():
	case <-done:
	}
	sched.Stop()
	sched.Wait()
	l.Info("auto-run stopped", "events", r.Len())

	if err := a.exportPcap(r.History()); err != nil {
		return err
	}

	fmt.Fprintln(out, renderSummary(r.Seed(), report.Build(r, a.cfg.Goals, a.cfg.WindowSize)))

	return nil
}

func serveMetrics(addr string, r *runner.Runner, l logger.Logger) (shutdown func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(r.Collectors(metricsNamespace, nil)...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	l.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *arguments) script(out io.Writer, l logger.Logger) (err error) {
	plan, err := script.Load(a.path)
	if err != nil {
		return err
	}

	r, closeTrace, err := a.session(l)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeTrace(); err == nil {
			err = cerr
		}
	}()

	res, err := plan.Run(r)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderScript(res))
	fmt.Fprintln(out, renderSummary(r.Seed(), report.Build(r, a.cfg.Goals, a.cfg.WindowSize)))

	if !res.OK() {
		return errors.Errorf("plan %q: %d of %d steps failed", res.Plan, res.Failed, len(res.Steps))
	}

	return nil
}

func (a *arguments) replay(out io.Writer, l logger.Logger) error {
	tl, err := trace.Open(a.path)
	if err != nil {
		return err
	}
	defer tl.Close()

	h := tl.Header()
	r, err := runner.New(
		runner.WithSeed(h.Seed),
		runner.WithValidProbability(h.ValidProbability),
		runner.WithLogger(l),
	)
	if err != nil {
		return err
	}

	res, err := trace.Replay(tl.Iterator(), r)
	if err != nil {
		return err
	}

	if a.cfg.PcapPath != "" {
		packets, err := tl.Packets()
		if err != nil {
			return err
		}
		if err := a.exportPcap(packets); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, renderReplay(h, res))
	fmt.Fprintln(out, renderSummary(r.Seed(), report.Build(r, a.cfg.Goals, a.cfg.WindowSize)))

	if !res.OK() {
		return errors.Errorf("replay diverged on %d of %d packets", len(res.Divergences), res.Packets)
	}

	return nil
}

func (a *arguments) checksum(out io.Writer) error {
	for _, s := range a.symbols {
		sym, err := fsm.ParseSymbol(s)
		if err != nil {
			return errors.WithMessagef(err, "symbol %q", s)
		}
		fmt.Fprintf(out, "%s %s\n", sym, checksum.Compute(byte(sym)))
	}

	return nil
}

func (a *arguments) exportPcap(packets []runner.Packet) error {
	if a.cfg.PcapPath == "" {
		return nil
	}

	f, err := os.Create(a.cfg.PcapPath)
	if err != nil {
		return errors.WithMessage(err, "could not create pcap file")
	}
	defer f.Close()

	if err := trace.WritePcap(f, packets); err != nil {
		return err
	}

	return f.Close()
}
