package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apihttp "github.com/GriffinCanCode/filedeck/internal/api/http"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/config"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/server"
)

var serveFlags struct {
	host     string
	port     string
	dataDir  string
	logLevel string
	dev      bool
	roots    []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the FileDeck HTTP API and the /stream WebSocket endpoint.

Document folders listed with --root (or DOCUMENT_ROOTS) are granted at
startup; grants made through the API persist in the data directory.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.host, "host", "", "listen host (env HOST)")
	f.StringVar(&serveFlags.port, "port", "", "listen port (env PORT)")
	f.StringVar(&serveFlags.dataDir, "data-dir", "", "data directory (env DATA_DIR)")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	f.BoolVar(&serveFlags.dev, "dev", false, "development logging (env LOG_DEV)")
	f.StringSliceVar(&serveFlags.roots, "root", nil, "document folder to grant, repeatable (env DOCUMENT_ROOTS)")
}

// loadConfig reads the environment and applies flags the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serveFlags.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = serveFlags.port
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = serveFlags.dataDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = serveFlags.logLevel
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = serveFlags.dev
	}
	if flags.Changed("root") {
		cfg.Storage.Roots = append(cfg.Storage.Roots, serveFlags.roots...)
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	apihttp.Version = version
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errChan:
		_ = srv.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
