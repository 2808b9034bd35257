package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		noDevices bool
		noAdmin   bool
		adminAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge, its devices and the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			if noDevices {
				cfg.Device.Enabled = false
			}
			if noAdmin {
				cfg.Admin.Enabled = false
			}
			if cmd.Flags().Changed("admin-addr") {
				host, port, err := splitAddr(adminAddr)
				if err != nil {
					return err
				}
				cfg.Admin.Host, cfg.Admin.Port = host, port
			}

			descs, err := opts.channels(cfg)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			app, err := NewApp(cfg, descs, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&noDevices, "no-devices", false, "do not create pty devices")
	flags.BoolVar(&noAdmin, "no-admin", false, "do not start the admin API")
	flags.StringVar(&adminAddr, "admin-addr", "", "admin API listen address (host:port)")
	return cmd
}
