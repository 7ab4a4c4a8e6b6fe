package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spigell/crewzy/internal/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatch and chat HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default is :5000)")
	serveCmd.Flags().String("store", "", "store driver: sqlite or memory")
	serveCmd.Flags().String("seed-file", "", "JSON documents to load into the store on start")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("store.driver", serveCmd.Flags().Lookup("store"))
	viper.BindPFlag("store.seed-file", serveCmd.Flags().Lookup("seed-file"))
}

func serve() {
	log, config := bootstrap()

	log.Info("starting the crewzy api", zap.String("version", version))

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupGracefulShutdown(cancel, log)

	deps, err := buildComponents(rootCtx, config, log)
	if err != nil {
		log.Fatal("building components", zap.Error(err))
	}
	defer deps.Close()

	tracerShutdown := setupTracing(config, log)
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Warn("failed to shutdown tracer", zap.Error(err))
		}
	}()

	for _, status := range deps.dispatcher.Describe() {
		fields := []zap.Field{
			zap.String("stage", status.Name),
			zap.Bool("enabled", status.Enabled),
		}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		for key, value := range status.Details {
			fields = append(fields, zap.String(key, value))
		}
		log.Info("dispatch stage", fields...)
	}

	handler := api.NewHandler(deps.dispatcher, deps.assistant, log)

	server := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down gracefully")

	timeout := config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("shut down")
}

func setupGracefulShutdown(cancel context.CancelFunc, log *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
}
