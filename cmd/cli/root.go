package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/AirplayDNA/internal/config"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
)

type commandContext struct {
	configFlag *string
	dbFlag     *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if db := strings.TrimSpace(*c.dbFlag); db != "" {
			cfg.Database.Path = db
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withService opens the engine for the duration of fn.
func (c *commandContext) withService(fn func(airplay.Service, *logger.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	log := cfg.Logger()
	logger.SetDefault(log)
	defer log.Sync()

	svc, err := airplay.NewService(append(cfg.ServiceOptions(), airplay.WithLogger(log))...)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := svc.Close(ctx); err != nil {
			log.Errorf("Shutdown: %v", err)
		}
	}()
	return fn(svc, log)
}

func newRootCommand() *cobra.Command {
	var configFlag, dbFlag string
	ctx := &commandContext{configFlag: &configFlag, dbFlag: &dbFlag}

	rootCmd := &cobra.Command{
		Use:           "airplaydna",
		Short:         "Broadcast airplay detection CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Path to the SQLite database (overrides config)")

	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newMonitorCommand(ctx))
	rootCmd.AddCommand(newDetectionsCommand(ctx))
	rootCmd.AddCommand(newCorrectCommand(ctx))
	rootCmd.AddCommand(newChannelCommand(ctx))

	return rootCmd
}
