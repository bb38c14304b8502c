package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/incident-pulse/internal/app"
	"github.com/bissquit/incident-pulse/internal/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("init application: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- application.Run()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return application.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
