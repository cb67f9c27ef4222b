package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var channelID, callbackURL string
	var interval int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Monitor a channel in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(channelID) == "" {
				return fmt.Errorf("--channel is required")
			}
			return ctx.withService(func(svc airplay.Service, log *logger.Logger) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				session, err := svc.StartMonitoring(runCtx, channelID, interval, callbackURL)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Monitoring %s every %ds (session %s). Press Ctrl+C to stop.\n",
					session.ChannelName, session.IntervalSeconds, session.ID)

				ticker := time.NewTicker(time.Duration(session.IntervalSeconds) * time.Second)
				defer ticker.Stop()
				seen := 0
				for {
					select {
					case <-runCtx.Done():
						stopped, err := svc.StopMonitoring(cmd.Context(), channelID)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Stopped session %s with %d detection(s)\n", stopped.ID, stopped.DetectionCount)
						return nil
					case <-ticker.C:
						details, err := svc.GetSessionDetails(cmd.Context(), session.ID)
						if err != nil {
							log.Warnf("Could not read session %s: %v", session.ID, err)
							continue
						}
						if details.Session.DetectionCount > seen && len(details.RecentDetections) > 0 {
							d := details.RecentDetections[0]
							fmt.Fprintf(out, "[%s] %s - %s (%.0f%%, %s)\n",
								d.DetectedAt.Local().Format(time.TimeOnly), d.Song.Artist, d.Song.Title, d.Confidence, d.Provider)
							seen = details.Session.DetectionCount
						}
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&channelID, "channel", "", "Channel ID to monitor")
	cmd.Flags().IntVar(&interval, "interval", 0, "Sampling interval in seconds (default from config)")
	cmd.Flags().StringVar(&callbackURL, "callback", "", "Webhook URL notified on every detection")
	return cmd
}
