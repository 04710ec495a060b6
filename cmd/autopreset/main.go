package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jameshartig/autopreset/pkg/config"
	"github.com/jameshartig/autopreset/pkg/ess"
	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/preset"
	"github.com/jameshartig/autopreset/pkg/scheduler"
	"github.com/jameshartig/autopreset/pkg/server"
	"github.com/jameshartig/autopreset/pkg/types"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// init packages
	netzero := ess.Configured()
	morning := preset.NewMorning(config.Environ(), netzero)
	evening := preset.NewEvening(config.Environ(), netzero)

	// init server and scheduler
	srv := server.Configured(morning, evening)
	sched := scheduler.Configured(morning, evening)

	apply := lflag.String("apply", "", "apply a single preset (morning or evening), print the result and exit")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	log.SetDefaultLogLevel(level)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))
	slog.Debug("netzero configured", slog.Duration("timeout", netzero.Timeout()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *apply != "" {
		os.Exit(applyOnce(ctx, *apply, morning, evening))
	}

	eg, ctx := errgroup.WithContext(ctx)
	// Run will block until context is canceled or error happens
	eg.Go(func() error {
		return srv.Run(ctx)
	})
	eg.Go(func() error {
		return sched.Run(ctx)
	})
	if err := eg.Wait(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited cleanly")
}

// applyOnce runs a single invocation of the named preset and writes the
// response to stdout. It returns the process exit code.
func applyOnce(ctx context.Context, name string, handlers ...*preset.Handler) int {
	p, ok := types.PresetByName(name)
	if !ok {
		slog.Error("unknown preset", slog.String("preset", name))
		return 2
	}
	for _, h := range handlers {
		if h.Preset().Name != p.Name {
			continue
		}
		ctx = log.WithAttrs(ctx, slog.String("preset", p.Name), slog.String("trigger", "cli"))
		resp := h.Handle(ctx)
		if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
			slog.Error("failed to write response", "error", err)
			return 1
		}
		if resp.StatusCode != 200 {
			return 1
		}
		return 0
	}
	return 2
}
