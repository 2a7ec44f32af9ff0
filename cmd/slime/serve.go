package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"slime/internal/server"
	"slime/internal/store"
)

var (
	serveAddr     string
	serveDataset  string
	serveLabelCol string
)

// serveCmd runs the HTTP explanation service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve explanations over HTTP",
	Long: `Starts the HTTP service. POST a precomputed neighborhood to
/v1/explain, or configure --dataset to serve /v1/explain/background
against a CSV file that is hot-reloaded on change. Prometheus metrics
are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveDataset != "" {
			cfg.Server.Dataset = serveDataset
		}
		if serveLabelCol != "" {
			cfg.Server.LabelColumn = serveLabelCol
		}

		var runs *store.Store
		if cfg.Storage.DatabasePath != "" {
			var err error
			runs, err = store.Open(cfg.Storage.DatabasePath)
			if err != nil {
				return err
			}
			defer runs.Close()
		}

		srv, err := server.New(cfg, logger, runs)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveDataset, "dataset", "", "background dataset CSV")
	serveCmd.Flags().StringVar(&serveLabelCol, "label-col", "", "prediction column of the background dataset")
}
