// Command femlogctl loads a femtolog configuration, installs it into the
// process-wide manager, and emits a sample record through one logger
// (-logger, default root) so the operator can see a configuration take
// effect end to end. With -watch it stays resident and hot-reloads on file
// change, following the teacher's context-driven graceful shutdown
// pattern (cmd/etl/main.go) built around signal.NotifyContext.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"femtolog/internal/configbuilder"
	"femtolog/internal/configfile"
	"femtolog/internal/configwatch"
	"femtolog/internal/diag"
	"femtolog/internal/manager"
	"femtolog/internal/record"
	"femtolog/internal/warner"
)

func main() {
	flagConfig := flag.String("config", "", "path to a femtolog YAML/TOML/JSON config file")
	flagWatch := flag.Bool("watch", false, "stay resident and hot-reload on config file change")
	flagLogger := flag.String("logger", "", "dotted logger name to emit the sample record through (default root)")
	flagLevel := flag.String("level", "info", "severity of the sample record")
	flagMessage := flag.String("message", "femlogctl sample record", "message of the sample record")
	flag.Parse()

	if *flagConfig == "" {
		fmt.Fprintln(os.Stderr, "femlogctl: -config is required")
		os.Exit(2)
	}

	w := warner.New(warner.DefaultInterval)
	mgr := manager.New()

	sev, err := record.ParseSeverity(*flagLevel)
	if err != nil {
		diag.Error("invalid -level", "level", *flagLevel, "error", err)
		os.Exit(2)
	}

	if *flagWatch {
		runWatching(*flagConfig, mgr, w, *flagLogger, sev, *flagMessage)
		return
	}

	cfg, err := configfile.Load(*flagConfig)
	if err != nil {
		diag.Error("load config", "path", *flagConfig, "error", err)
		os.Exit(1)
	}
	if err := configbuilder.Build(cfg, mgr, w); err != nil {
		diag.Error("apply config", "path", *flagConfig, "error", err)
		os.Exit(1)
	}

	emitSample(mgr, *flagLogger, sev, *flagMessage)
	closeAll(mgr)
}

func runWatching(path string, mgr *manager.Manager, w *warner.Warner, loggerName string, sev record.Severity, message string) {
	watcher, err := configwatch.New(path, mgr, w,
		configwatch.WithOnReload(func(cfg *configbuilder.Config) {
			diag.Info("configuration reloaded", "path", path)
		}),
		configwatch.WithOnError(func(err error) {
			diag.Warn("configuration reload failed", "path", path, "error", err)
		}),
	)
	if err != nil {
		diag.Error("start config watch", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emitSample(mgr, loggerName, sev, message)
			}
		}
	}()

	watcher.Run(ctx)
	closeAll(mgr)
}

func emitSample(mgr *manager.Manager, loggerName string, sev record.Severity, message string) {
	l := mgr.GetLogger(loggerName)
	l.Log(sev, message)
}

// closeAll flushes and closes every distinct handler currently attached
// anywhere in the hierarchy. Reset already does this dedup-by-identity
// walk; reuse it here rather than repeat the logic.
func closeAll(mgr *manager.Manager) {
	mgr.Reset()
}
