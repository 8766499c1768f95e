package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/stormglass/weemirror/internal/config"
	"github.com/stormglass/weemirror/internal/logging"
	"github.com/stormglass/weemirror/internal/mirror"
	"github.com/stormglass/weemirror/internal/observability"
	"github.com/stormglass/weemirror/internal/relay/dispatch"
	"github.com/stormglass/weemirror/internal/relay/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "weemirror: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "weemirror.toml", "path to the TOML configuration file")
	flag.Parse()

	logging.ConfigureRuntime()
	log := logging.Logger("weemirror")
	observability.RegisterMetrics()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := mirror.New(
		mirror.WithMaxLines(cfg.Relay.Lines),
		mirror.WithLogger(logging.Logger("mirror")),
		mirror.WithListener(&eventLogger{log: logging.Logger("events")}),
	)

	sess := session.New(cfg.Session(), logging.Logger("session"))
	disp := dispatch.New(m, sess, logging.Logger("dispatch"))

	if err := sess.Connect(ctx); err != nil {
		if !cfg.Relay.Autoconnect {
			return err
		}
		log.Warn().Err(err).Msg("initial connect failed, retrying")
	}
	defer sess.Disconnect()

	log.Info().
		Str("host", cfg.Relay.Host).
		Int("port", cfg.Relay.Port).
		Bool("tls", cfg.Relay.TLS).
		Msg("relay mirror running")

	return sess.Run(ctx, disp)
}

// eventLogger reports mirror changes on the event log. It stands in for
// a UI layer: anything rendering buffers would implement the same hooks.
type eventLogger struct {
	log zerolog.Logger
}

func (e *eventLogger) BufferInserted(rec *mirror.BufferRecord, index int) {
	e.log.Info().Str("buffer", rec.FullName).Int("index", index).Msg("buffer opened")
}

func (e *eventLogger) BufferRemoved(ptr mirror.Pointer) {
	e.log.Info().Str("ptr", string(ptr)).Msg("buffer closed")
}

func (e *eventLogger) BuffersReordered() {
	e.log.Debug().Msg("buffers renumbered")
}

func (e *eventLogger) AttrsChanged(rec *mirror.BufferRecord) {
	e.log.Debug().Str("buffer", rec.FullName).Msg("buffer attributes changed")
}

func (e *eventLogger) LinesAppended(rec *mirror.BufferRecord, lines []mirror.Line) {
	for _, ln := range lines {
		e.log.Info().
			Str("buffer", rec.Name()).
			Str("prefix", ln.Prefix).
			Str("message", ln.Message).
			Msg("line")
	}
}

func (e *eventLogger) NicklistChanged(rec *mirror.BufferRecord) {
	e.log.Debug().Str("buffer", rec.FullName).Msg("nicklist changed")
}

func (e *eventLogger) HotChanged(rec *mirror.BufferRecord) {
	e.log.Debug().Str("buffer", rec.FullName).Int("hot", rec.Hot).Msg("hotlist changed")
}
