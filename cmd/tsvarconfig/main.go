// Command tsvarconfig demonstrates the use case spec.md calls out
// first: a hot-reloadable configuration cell. One goroutine "reloads"
// a config file on a jittered interval and publishes the result;
// several worker goroutines read the latest config on every iteration
// of their own loop, at no cost beyond a version check on the common
// path.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/valyala/fastrand"

	"github.com/aradilov/tsvar"
)

// config is the opaque payload workers read. Real programs would parse
// this from a file or a remote source; here it just carries a counter
// and a randomized timeout, which workers log.
type config struct {
	generation int
	timeout    time.Duration
}

func loadConfig(generation int) *config {
	return &config{
		generation: generation,
		timeout:    time.Duration(1+fastrand.Uint32n(5)) * time.Second,
	}
}

func reloader(ctx context.Context, logger *slog.Logger, v tsvar.Var[*config]) {
	generation := 0
	for {
		generation++
		cfg := loadConfig(generation)
		ver, err := v.Set(cfg)
		if err != nil {
			logger.Error("reload failed", "error", err)
		} else {
			logger.Info("reloaded", "version", ver, "timeout", cfg.timeout)
		}

		wait := time.Duration(200+fastrand.Uint32n(800)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func worker(ctx context.Context, id int, logger *slog.Logger, v tsvar.Var[*config]) {
	r := v.Reader()
	defer r.Release()

	if err := v.Wait(ctx); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		cfg, ver := r.Get()
		logger.Debug("worker tick", "worker", id, "version", ver, "timeout", cfg.timeout)
		time.Sleep(50 * time.Millisecond)
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := newLoggingVar[*config](tsvar.NewPair[*config](nil), withLogger(logger), withName("app-config"))
	defer v.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reloader(ctx, logger, v)
	}()

	const workers = 4
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(id int) {
			defer wg.Done()
			worker(ctx, id, logger, v)
		}(i)
	}

	wg.Wait()
}
