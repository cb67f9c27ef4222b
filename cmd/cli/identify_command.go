package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/audio"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var channelID string

	cmd := &cobra.Command{
		Use:   "identify [audio-file]",
		Short: "Identify what a channel is playing right now, or a local clip",
		Long: `Identify captures a sample from the channel's stream and records a detection
when a provider recognizes it. With a file argument the clip is read from disk
instead and attributed to the channel.

Examples:
  airplaydna identify --channel nova
  airplaydna identify --channel nova clip.wav`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(channelID) == "" {
				return fmt.Errorf("--channel is required")
			}
			return ctx.withService(func(svc airplay.Service, log *logger.Logger) error {
				var outcome airplay.Outcome
				var err error
				if len(args) == 1 {
					sample, loadErr := audio.LoadSample(args[0], "file:"+args[0], time.Now().UTC())
					if errors.Is(loadErr, audio.ErrSilence) {
						fmt.Fprintln(cmd.OutOrStdout(), "Sample is silent, nothing to identify")
						return nil
					}
					if loadErr != nil {
						return loadErr
					}
					outcome, err = svc.IdentifyFromCapturedSample(cmd.Context(), channelID, sample)
				} else {
					outcome, err = svc.Identify(cmd.Context(), channelID)
				}
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), outcome)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Channel ID to attribute the detection to")
	return cmd
}

func printOutcome(w io.Writer, outcome airplay.Outcome) {
	if !outcome.Matched {
		fmt.Fprintln(w, "No match")
		return
	}
	printDetection(w, outcome.Result)
}

func printDetection(w io.Writer, r *models.DetectionResult) {
	fmt.Fprintf(w, "Detected: %s - %s\n", r.Song.Artist, r.Song.Title)
	if r.Song.Album != "" {
		fmt.Fprintf(w, "   Album:      %s\n", r.Song.Album)
	}
	if r.Song.ISRC != "" {
		fmt.Fprintf(w, "   ISRC:       %s\n", r.Song.ISRC)
	}
	fmt.Fprintf(w, "   Channel:    %s\n", r.Channel.Name)
	fmt.Fprintf(w, "   Provider:   %s (confidence %.1f%%)\n", r.Provider, r.Confidence)
	fmt.Fprintf(w, "   Started:    %s\n", r.PlayTimestamp.Format(time.RFC3339))
	if r.EndTimestamp != nil {
		fmt.Fprintf(w, "   Ends:       %s\n", r.EndTimestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "   Detection:  %s\n", r.DetectionID)
}
