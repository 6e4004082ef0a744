package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/keepsake/internal/bootstrap"
	"github.com/PabloGalante/keepsake/internal/configutil"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if configutil.Changed(cmd, "port", "port") {
				cfg.Port = configutil.FlagOrViperString(cmd, "port", "port")
			}
			if configutil.Changed(cmd, "reveal-mode", "reveal_mode") {
				cfg.RevealMode = configutil.FlagOrViperString(cmd, "reveal-mode", "reveal_mode")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if configutil.Changed(cmd, "session-ttl", "session_ttl") {
				cfg.SessionTTL = configutil.FlagOrViperDuration(cmd, "session-ttl", "session_ttl")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bootstrap.Serve(ctx, cfg)
		},
	}
	cmd.Flags().String("port", "8080", "Listen port.")
	cmd.Flags().String("reveal-mode", "background", "background|sequential")
	cmd.Flags().Duration("session-ttl", 0, "Evict sessions idle for longer (0 keeps the configured value).")
	return cmd
}
