// Command logcabin runs a log-processing pipeline described by a YAML
// configuration document, generalized from the teacher's top-level
// main.go + pkg/bgpipe/bgpipe.go's NewBgpipe bring-up (CLI flags, console
// logger, admin HTTP server).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	_ "github.com/haginara/logcabin/pkg/stages/elasticsearch"
	_ "github.com/haginara/logcabin/pkg/stages/fileoutput"
	_ "github.com/haginara/logcabin/pkg/stages/graphite"
	_ "github.com/haginara/logcabin/pkg/stages/jsonfilter"
	_ "github.com/haginara/logcabin/pkg/stages/kafka"
	_ "github.com/haginara/logcabin/pkg/stages/logoutput"
	_ "github.com/haginara/logcabin/pkg/stages/mongodb"
	_ "github.com/haginara/logcabin/pkg/stages/mutate"
	_ "github.com/haginara/logcabin/pkg/stages/perf"
	_ "github.com/haginara/logcabin/pkg/stages/regexfilter"
	_ "github.com/haginara/logcabin/pkg/stages/s3output"
	_ "github.com/haginara/logcabin/pkg/stages/stats"
	_ "github.com/haginara/logcabin/pkg/stages/stdininput"
	_ "github.com/haginara/logcabin/pkg/stages/syslogparse"
	_ "github.com/haginara/logcabin/pkg/stages/tailinput"
	_ "github.com/haginara/logcabin/pkg/stages/udpinput"
	_ "github.com/haginara/logcabin/pkg/stages/websocket"

	"github.com/haginara/logcabin/pkg/config"
	"github.com/haginara/logcabin/pkg/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("logcabin exited with error")
	}
}

func run() error {
	f := pflag.NewFlagSet("logcabin", pflag.ExitOnError)
	f.SortFlags = false
	f.Usage = func() { usage(f) }

	configPath := f.StringP("config", "c", "", "path to the pipeline YAML document")
	logLevel := f.StringP("log", "L", "info", "log level (debug/info/warn/error/disabled)")
	listen := f.String("listen", "", "admin HTTP server address (/metrics, /healthz, /pipeline); empty disables it")
	if err := f.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("could not parse CLI flags: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("--log: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	if *configPath == "" {
		f.Usage()
		return fmt.Errorf("logcabin needs --config PATH")
	}

	pipeline, err := config.Load(*configPath, logger)
	if err != nil {
		return fmt.Errorf("could not build pipeline: %w", err)
	}
	pipeline.Setup(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var admin *http.Server
	if *listen != "" {
		admin = &http.Server{Addr: *listen, Handler: adminRouter()}
		go func() {
			logger.Info().Str("addr", *listen).Msg("admin server listening")
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("admin server failed")
			}
		}()
	}

	logger.Info().Str("config", *configPath).Msg("starting pipeline")
	pipeline.Start()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	pipeline.Stop()
	if admin != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		admin.Shutdown(shutdownCtx)
	}
	return nil
}

func adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	r.Get("/pipeline", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for _, name := range registry.Names() {
			fmt.Fprintln(w, name)
		}
	})
	return r
}

func usage(f *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: logcabin --config PATH [OPTIONS]\n\nOptions:\n")
	f.PrintDefaults()
}
