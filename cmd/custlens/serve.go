package main

import (
	"github.com/spf13/cobra"

	"github.com/custlens-org/custlens/dataset"
	"github.com/custlens-org/custlens/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capability-routing HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		dataset.SetLogger(log)
		return server.New(cfg, log).ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
