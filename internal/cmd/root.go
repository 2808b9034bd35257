package cmd

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
)

// rootOptions are the flags shared by every subcommand. Set flags override
// the environment.
type rootOptions struct {
	channelsFile string
	wince        bool
	keepOpen     bool
	logLevel     string
}

// NewRootCmd builds the chanbridge command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chanbridge",
		Short: "Bridge named transport channels to host devices",
		Long: `chanbridge multiplexes named channels from a transport (an in-memory
loopback or a WebSocket peer) onto pseudo-terminal devices, with reference
counted opens, flow control and suspend inhibition while data moves.

Configuration is read from the environment (BRIDGE_*, TRANSPORT_*, INHIBIT_*,
DEVICE_*, ADMIN_*, LOG_*). Flags override it.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.channelsFile, "channels", "c", "", "channel table file (.yaml, .yml or .toml)")
	flags.BoolVar(&opts.wince, "wince", false, "register the WinCE firmware channels")
	flags.BoolVar(&opts.keepOpen, "keep-open", false, "keep every channel open after its last close")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newChannelsCmd(opts))
	root.AddCommand(newPeerCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newUnthrottleCmd(opts))
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("channels") {
		cfg.Bridge.ChannelsFile = o.channelsFile
	}
	if flags.Changed("keep-open") {
		cfg.Bridge.KeepOpen = o.keepOpen
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// channels resolves the channel table: a file when configured, otherwise
// the built-in table.
func (o *rootOptions) channels(cfg *config.Config) ([]registry.ChannelDescriptor, error) {
	if cfg.Bridge.ChannelsFile != "" {
		descs, err := registry.LoadFile(cfg.Bridge.ChannelsFile, cfg.Bridge.KeepOpen)
		if err != nil {
			return nil, err
		}
		if err := registry.Validate(descs, cfg.Bridge.MaxChannels); err != nil {
			return nil, err
		}
		return descs, nil
	}

	descs := registry.DefaultChannels()
	if o.wince {
		descs = registry.WinCEChannels()
	}
	return registry.WithKeepOpen(descs, cfg.Bridge.KeepOpen), nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
}
