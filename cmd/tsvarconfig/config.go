package main

import (
	"log/slog"
	"os"

	"github.com/aradilov/tsvar"
)

// options holds this program's own configuration, kept out of the
// tsvar package proper — the core stays dependency-free and
// unopinionated about logging, the way the teacher's own library never
// touches log/slog either.
type options struct {
	logger *slog.Logger
	name   string
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})),
		name:   "tsvar",
	}
}

// Option configures a loggingVar.
type Option func(*options)

func withLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }
func withName(name string) Option      { return func(o *options) { o.name = name } }

// loggingVar wraps a tsvar.Var with structured logging on every Set and
// Close, grounded on Jekaa-go-mvcc-map's options.go/map.go pairing of
// functional options with a slog.Logger field. It changes nothing about
// the wrapped Var's semantics.
type loggingVar[T any] struct {
	tsvar.Var[T]
	opts options
}

func newLoggingVar[T any](v tsvar.Var[T], opts ...Option) *loggingVar[T] {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}
	return &loggingVar[T]{Var: v, opts: cfg}
}

func (v *loggingVar[T]) Set(value T) (uint64, error) {
	ver, err := v.Var.Set(value)
	if err != nil {
		v.opts.logger.Warn("set failed", "var", v.opts.name, "error", err)
		return ver, err
	}
	v.opts.logger.Info("published", "var", v.opts.name, "version", ver)
	return ver, nil
}

func (v *loggingVar[T]) Close() error {
	err := v.Var.Close()
	if err != nil {
		v.opts.logger.Warn("close failed", "var", v.opts.name, "error", err)
		return err
	}
	v.opts.logger.Info("closed", "var", v.opts.name)
	return nil
}
