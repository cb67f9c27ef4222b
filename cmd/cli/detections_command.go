package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

func newDetectionsCommand(ctx *commandContext) *cobra.Command {
	var page, limit int
	var channelID, since, until string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detections",
		Short: "List recent detections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := models.DetectionQuery{Page: page, Limit: limit, ChannelID: channelID}
			var err error
			if q.StartDate, err = parseDay(since, false); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			if q.EndDate, err = parseDay(until, true); err != nil {
				return fmt.Errorf("--until: %w", err)
			}

			return ctx.withService(func(svc airplay.Service, _ *logger.Logger) error {
				result, err := svc.GetRecentDetections(cmd.Context(), q)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				if len(result.Items) == 0 {
					fmt.Fprintln(out, "No detections")
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PLAYED\tCHANNEL\tARTIST\tTITLE\tCONF\tPROVIDER\tID")
				for _, d := range result.Items {
					song := d.CurrentSong
					marker := ""
					if d.Correction != nil {
						marker = " *"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\t%.0f\t%s\t%s\n",
						d.PlayTimestamp.Local().Format(time.DateTime), d.ChannelName,
						song.Artist, song.Title, marker, d.Confidence, d.Provider, d.ID)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Page %d of %d (%d total, * = corrected)\n", result.Page, result.Pages, result.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", airplay.DefaultPageLimit, "Page size")
	cmd.Flags().StringVar(&channelID, "channel", "", "Only show this channel")
	cmd.Flags().StringVar(&since, "since", "", "Earliest play date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Latest play date (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the page as JSON")
	return cmd
}

func parseDay(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
