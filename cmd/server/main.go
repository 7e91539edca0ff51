package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gostones/mediavault/internal/config"
	"github.com/gostones/mediavault/internal/logging"
	"github.com/gostones/mediavault/internal/server"
	"github.com/gostones/mediavault/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:          "mediavault-server",
		Short:        "Signing server for direct-to-bucket image uploads",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":4000", "listen address")
	f.String("store", config.StoreS3, "object store backend: s3 or memory")
	f.String("log_level", "info", "log level")
	f.Bool("server_multipart", false, "enable the multipart endpoints")
	_ = v.BindPFlags(f)

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.LogLevel, os.Stderr)

	var (
		st      store.ObjectStore
		objects http.Handler
	)
	switch cfg.Store {
	case config.StoreMemory:
		if cfg.PublicBaseURL == "" {
			cfg.PublicBaseURL = localBaseURL(cfg.Addr) + "/objects"
		}
		mem := store.NewMemoryStore(cfg.PublicBaseURL, cfg.PutExpiry, cfg.PartExpiry)
		st, objects = mem, http.StripPrefix("/objects", mem.Handler())
	default:
		s3st, err := store.NewS3Store(store.S3Options{
			Bucket:         cfg.Bucket,
			Region:         cfg.Region,
			Endpoint:       cfg.Endpoint,
			ForcePathStyle: cfg.ForcePathStyle,
			PutExpiry:      cfg.PutExpiry,
			PartExpiry:     cfg.PartExpiry,
		})
		if err != nil {
			return err
		}
		st = s3st
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := server.New(cfg, st, log, reg).Router()
	if objects != nil {
		router.PathPrefix("/objects/").Handler(objects)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, cfg, log)
}

func serve(ctx context.Context, srv *http.Server, cfg *config.Config, log zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("store", cfg.Store).
			Str("prefix", cfg.ObjectPrefix).
			Bool("multipart", cfg.ServerMultipart).
			Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// localBaseURL is the URL the memory store's signed URLs point back to.
func localBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
