// Command smartxctl loads a runtime configuration, builds a Runtime, runs
// its scheduler for a fixed number of steps, and prints a summary of fault
// log and idle activity. It exists to exercise the runtime end to end from
// a single binary, the way the teacher's cmd/modcli exercises its own
// framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/spf13/pflag"

	smartx "github.com/ferrethan485/SmartX"
	"github.com/ferrethan485/SmartX/activeobject"
	"github.com/ferrethan485/SmartX/config"
	"github.com/ferrethan485/SmartX/event"
	"github.com/ferrethan485/SmartX/hsm"
	"github.com/ferrethan485/SmartX/logging"
	"github.com/ferrethan485/SmartX/telemetry"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to a TOML runtime configuration file")
		steps      = pflag.IntP("steps", "n", 100, "number of scheduler steps to run")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug-level logging")
		listen     = pflag.String("listen", "", "address to serve diagnostics HTTP endpoints on (empty disables it)")
		statsCron  = pflag.String("stats-cron", "", "cron schedule for periodic idle/fault snapshot logging (empty disables it)")
	)
	pflag.Parse()

	if err := run(*configPath, *steps, *verbose, *listen, *statsCron); err != nil {
		fmt.Fprintf(os.Stderr, "smartxctl: %s\n", err)
		os.Exit(1)
	}
}

const sigTick uint16 = 1

func run(configPath string, steps int, verbose bool, listen, statsCron string) error {
	opts, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logger logging.Logger
	if verbose {
		logger, err = logging.NewDevelopment()
	} else {
		logger, err = logging.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	rt, err := smartx.New(opts, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	exporter := telemetry.NewExporter("smartxctl", telemetry.SinkFunc(func(_ context.Context, evt cloudevents.Event) error {
		logger.Debug("telemetry", "type", evt.Type(), "id", evt.ID())
		return nil
	}))

	tickCtx, stopTicker := context.WithCancel(context.Background())
	defer stopTicker()
	periodCh := make(chan time.Duration, 1)
	go runTicker(tickCtx, rt, periodCh, time.Duration(opts.TickerMillis)*time.Millisecond, logger)

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(reloaded config.Options, err error) {
			if err != nil {
				logger.Warn("config reload failed", "path", configPath, "error", err.Error())
				return
			}
			logger.Info("config reloaded", "path", configPath, "tickerMillis", reloaded.TickerMillis)
			periodCh <- time.Duration(reloaded.TickerMillis) * time.Millisecond
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	ticks := 0
	f := hsm.NewFSM()
	counting := f.NewState("counting")
	f.SetInitial(counting)
	counting.AddReaction(sigTick, nil, func(*event.Event) error {
		ticks++
		logger.Debug("tick", "count", ticks)
		return nil
	}, nil, false)
	if err := f.Start(); err != nil {
		return fmt.Errorf("start fsm: %w", err)
	}

	ao := activeObjectFor(rt, f)
	tmpl, err := rt.EventPool().New(sigTick, 1, 1)
	if err != nil {
		return fmt.Errorf("build subscribe template: %w", err)
	}
	if err := rt.Subscribe(tmpl, 1, ao); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	rt.OnIdle(func() {
		evt, err := rt.EventPool().New(sigTick, 1, 1)
		if err != nil {
			return
		}
		_ = rt.Post(evt)
	})

	if listen != "" {
		startDiagnosticsServer(listen, rt, logger, exporter)
	}
	if statsCron != "" {
		c, err := startStatsCron(statsCron, rt, logger, exporter)
		if err != nil {
			return fmt.Errorf("start stats cron: %w", err)
		}
		defer c.Stop()
	}

	for i := 0; i < steps; i++ {
		if _, err := rt.Step(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}

	logger.Info("run complete", "ticks", ticks, "idleWraps", rt.IdleCount())
	for {
		rec, ok := rt.FaultLog().Get()
		if !ok {
			break
		}
		logger.Warn("fault recorded", "file", rec.File, "line", rec.Line, "time", rec.Time)
		if err := exporter.ExportFault(context.Background(), rec); err != nil {
			logger.Warn("export fault telemetry failed", "error", err.Error())
		}
	}
	return nil
}

// runTicker drives rt.Tick() at period, adjusting its own cadence whenever a
// new duration arrives on periodCh — the hook config.Watcher's hot reload
// uses to change TICKER without restarting the process. Returns when ctx is
// cancelled.
func runTicker(ctx context.Context, rt *smartx.Runtime, periodCh <-chan time.Duration, period time.Duration, logger logging.Logger) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-periodCh:
			t.Reset(d)
		case <-t.C:
			if err := rt.Tick(); err != nil {
				logger.Warn("tick failed", "error", err.Error())
			}
		}
	}
}

func activeObjectFor(rt *smartx.Runtime, f *hsm.FSM) *activeobject.Active {
	ao := activeobject.New("ticker", 1, f, rt.CellPool())
	if err := rt.Register(ao); err != nil {
		// A fresh runtime's registry can never already hold "ticker".
		panic(err)
	}
	return ao
}
