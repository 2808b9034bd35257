package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/chanbridge/internal/api/client"
	"github.com/GriffinCanCode/chanbridge/internal/domain/bridge"
)

// adminFlag is shared by the commands that talk to a running bridge.
type adminFlag struct {
	url     string
	timeout time.Duration
}

func (a *adminFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.url, "admin", "", "admin API base URL (default http://ADMIN_HOST:ADMIN_PORT)")
	cmd.Flags().DurationVar(&a.timeout, "timeout", 5*time.Second, "request timeout")
}

func (a *adminFlag) client(opts *rootOptions, cmd *cobra.Command) (*client.Client, error) {
	url := a.url
	if url == "" {
		cfg, err := opts.config(cmd)
		if err != nil {
			return nil, err
		}
		url = "http://" + cfg.AdminAddr()
	}
	return client.New(url, a.timeout), nil
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var admin adminFlag

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show channel state from a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := admin.client(opts, cmd)
			if err != nil {
				return err
			}

			channels, err := c.Channels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(channels))
			return nil
		},
	}
	admin.register(cmd)
	return cmd
}

func newUnthrottleCmd(opts *rootOptions) *cobra.Command {
	var admin adminFlag

	cmd := &cobra.Command{
		Use:   "unthrottle INDEX",
		Short: "Re-arm delivery on a channel of a running bridge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			c, err := admin.client(opts, cmd)
			if err != nil {
				return err
			}
			if err := c.Unthrottle(cmd.Context(), index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "channel %d: pump scheduled\n", index)
			return nil
		},
	}
	admin.register(cmd)
	return cmd
}

func renderStatus(channels []bridge.ChannelStatus) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INDEX", "NAME", "OPEN", "COUNT", "RX", "TX", "FAULTS", "BREAKER").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, s := range channels {
		open := "no"
		switch {
		case s.HungUp:
			open = "hung up"
		case s.Open:
			open = "yes"
		case s.Parked:
			open = "parked"
		}
		t.Row(
			strconv.Itoa(s.Index),
			s.Name,
			open,
			strconv.Itoa(s.OpenCount),
			strconv.FormatUint(s.RxBytes, 10),
			strconv.FormatUint(s.TxBytes, 10),
			strconv.FormatUint(s.ProtocolFaults, 10),
			s.Breaker,
		)
	}
	return t.Render()
}
