package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"

	smartx "github.com/ferrethan485/SmartX"
	"github.com/ferrethan485/SmartX/logging"
	"github.com/ferrethan485/SmartX/telemetry"
)

// diagnosticsRouter builds the read-only HTTP surface an operator points
// curl or a browser at while smartxctl is driving a runtime: a liveness
// probe and a fault-log dump, the way the teacher's chimux module exposes a
// RouterService in front of a module's own state. Every fault drained by
// /faults is also handed to exporter, so a request against this endpoint
// doubles as this runtime's fault telemetry feed.
func diagnosticsRouter(rt *smartx.Runtime, logger logging.Logger, exporter *telemetry.Exporter) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"idleWraps": rt.IdleCount(),
			"faults":    rt.FaultLog().Len(),
		})
	})

	r.Get("/faults", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var recs []map[string]any
		for {
			rec, ok := rt.FaultLog().Get()
			if !ok {
				break
			}
			recs = append(recs, map[string]any{
				"file": rec.File,
				"line": rec.Line,
				"time": rec.Time,
			})
			if err := exporter.ExportFault(req.Context(), rec); err != nil {
				logger.Warn("export fault telemetry failed", "error", err.Error())
			}
		}
		_ = json.NewEncoder(w).Encode(recs)
	})

	return r
}

// startDiagnosticsServer listens on addr and serves diagnosticsRouter until
// the process exits. Errors are logged, not returned, since a diagnostics
// endpoint failing to bind should never take the runtime itself down.
func startDiagnosticsServer(addr string, rt *smartx.Runtime, logger logging.Logger, exporter *telemetry.Exporter) {
	go func() {
		if err := http.ListenAndServe(addr, diagnosticsRouter(rt, logger, exporter)); err != nil {
			logger.Warn("diagnostics server stopped", "addr", addr, "error", err.Error())
		}
	}()
	logger.Info("diagnostics server listening", "addr", addr)
}

// startStatsCron schedules a periodic idle/fault snapshot on schedule (a
// standard five-field cron expression), the way the teacher's scheduler
// module drives its own jobstore off a *cron.Cron, and exports each
// snapshot as a telemetry CloudEvent. Returns the running cron.Cron so the
// caller can Stop it on shutdown.
func startStatsCron(schedule string, rt *smartx.Runtime, logger logging.Logger, exporter *telemetry.Exporter) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		idle := rt.IdleCount()
		logger.Info("periodic snapshot", "idleWraps", idle, "faults", rt.FaultLog().Len())
		if err := exporter.ExportSchedulerIdle(context.Background(), idle); err != nil {
			logger.Warn("export idle telemetry failed", "error", err.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule stats snapshot: %w", err)
	}
	c.Start()
	return c, nil
}
