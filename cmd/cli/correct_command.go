package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
)

func newCorrectCommand(ctx *commandContext) *cobra.Command {
	var reason, by string

	cmd := &cobra.Command{
		Use:   "correct <detection-id> <song-id>",
		Short: "Attribute a detection to a different song",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc airplay.Service, _ *logger.Logger) error {
				c, err := svc.ApplyCorrection(cmd.Context(), args[0], args[1], reason, by)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Correction %s recorded: detection %s -> song %s\n",
					c.ID, c.DetectionID, c.CorrectedSongID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the detection was wrong")
	cmd.Flags().StringVar(&by, "by", "", "Operator making the correction")
	return cmd
}
