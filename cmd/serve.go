package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
	"github.com/spf13/cobra"

	"github.com/Julianb233/acre-notebook-lm/internal/database"
	"github.com/Julianb233/acre-notebook-lm/internal/server"
)

// serveCmd runs the HTTP API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the retrieval and sync API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		handlers := []server.RouteRegistrar{
			server.NewSearchHandler(a.retrieval, a.cfg.Retrieval.SimilarityThreshold),
			server.NewSyncHandler(a.syncEngine, a.statusSvc, a.cfg.Airtable.BaseID),
		}
		if a.dispatcher != nil {
			handlers = append(handlers, server.NewWebhookHandler(a.dispatcher, a.logsSvc))
		}

		srv := server.NewHTTPServer(a.cfg, handlers...)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-quit:
			logx.Info("Received signal %s, shutting down", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
