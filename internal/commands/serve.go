package commands

import (
	"github.com/spf13/cobra"

	"github.com/mkoziy/biomed-miners/internal/server"
)

func (a *App) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve search terms, harvest runs and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := server.New(a.cfg.DataDir, SourceNames(), a.metrics, a.logger)
			return srv.ListenAndServe(cmd.Context(), a.cfg.HTTPAddr)
		},
	}
}
