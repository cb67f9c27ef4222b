package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Register and list channels for local testing",
	}
	cmd.AddCommand(newChannelAddCommand(ctx))
	cmd.AddCommand(newChannelListCommand(ctx))
	return cmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var ch models.Channel
	var kind string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ch.Type = models.ChannelType(kind)
			return ctx.withService(func(svc airplay.Service, _ *logger.Logger) error {
				if err := svc.RegisterChannel(cmd.Context(), &ch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s channel %q with ID %s\n", ch.Type, ch.Name, ch.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ch.ID, "id", "", "Channel ID (generated when empty)")
	cmd.Flags().StringVar(&ch.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&ch.StreamURL, "url", "", "Stream URL or local file path")
	cmd.Flags().StringVar(&kind, "type", string(models.ChannelRadio), "radio or tv")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := airplay.NewSQLiteStorage(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			channels, err := store.(airplay.ChannelWriter).ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(channels) == 0 {
				fmt.Fprintln(out, "No channels registered")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tSTREAM")
			for _, c := range channels {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Type, c.Status, c.StreamURL)
			}
			return tw.Flush()
		},
	}
}
