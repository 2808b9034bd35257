package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/chanbridge/internal/transport/websocket"
)

func newPeerCmd(opts *rootOptions) *cobra.Command {
	var (
		listen string
		window int
	)

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Run a WebSocket echo peer for the channel table",
		Long: `Run a WebSocket peer that serves /channels/{name} for every channel in
the table and echoes whatever the bridge writes. Point a bridge at it with
TRANSPORT_KIND=websocket TRANSPORT_PEER_URL=ws://<listen>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
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

			names := make([]string, 0, len(descs))
			for _, d := range descs {
				names = append(names, d.Name)
			}
			peer := websocket.NewEchoPeer(names...).WithLogger(logger)
			if window > 0 {
				peer.Window = window
			}

			srv := &http.Server{
				Addr:              listen,
				Handler:           peer,
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("echo peer listening", zap.String("addr", listen), zap.Strings("channels", names))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8091", "listen address")
	cmd.Flags().IntVar(&window, "window", 0, "credit window per channel (default 16384)")
	return cmd
}
