package cli

import (
	"github.com/spf13/cobra"

	"github.com/viewgrid/viewgrid/pkg/server"
)

// serveCommand creates the serve command: snapshot persistence and the
// delta stream over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve view snapshots and the delta stream over HTTP",
		Long: `Serve starts the viewgrid HTTP server.

Endpoints per view:
  GET    /views/{viewID}/snapshot   load the persisted snapshot
  POST   /views/{viewID}/snapshot   save a snapshot
  DELETE /views/{viewID}/snapshot   drop the snapshot
  POST   /views/{viewID}/deltas     ingest one graph delta
  GET    /views/{viewID}/stream     websocket delta subscription

The snapshot backend (memory, file, redis, mongo) comes from the config
file; with the redis backend, ingested deltas also fan out through Redis
so every server instance streams them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			store, err := openStore(cmd, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := server.New(server.Config{
				Store:     store,
				Logger:    logger,
				Publisher: openPublisher(cfg),
			})

			logger.Info("starting server", "addr", cfg.Addr, "store", cfg.Store)
			return srv.ListenAndServe(cmd.Context(), cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.config/viewgrid/config.toml)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
