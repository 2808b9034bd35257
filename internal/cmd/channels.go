package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/chanbridge/internal/domain/registry"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newChannelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "Print the channel table",
		Long: `Print the channel table that serve would register, with the device
link each channel gets.`,
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

			link := func(index int) string {
				if !cfg.Device.Enabled {
					return "-"
				}
				return cfg.Device.Dir + "/" + cfg.Device.Prefix + strconv.Itoa(index)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderChannels(descs, link))
			return nil
		},
	}
}

func renderChannels(descs []registry.ChannelDescriptor, link func(int) string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("INDEX", "NAME", "KEEP OPEN", "DEVICE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, d := range descs {
		keep := "no"
		if d.KeepOpen {
			keep = "yes"
		}
		t.Row(strconv.Itoa(d.Index), d.Name, keep, link(d.Index))
	}
	return t.Render()
}

func splitAddr(addr string) (string, string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return host, port, nil
}
