package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/handlers"
	"github.com/sonroyaalmerol/kumaplayer/internal/i18n"
	"github.com/sonroyaalmerol/kumaplayer/internal/logging"
	"github.com/sonroyaalmerol/kumaplayer/internal/repository"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve slash commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			tr, err := i18n.Load(cfg.Language)
			if err != nil {
				return err
			}

			db, err := repository.OpenDB(cfg.DataDir)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			bot, err := handlers.NewBot(cfg, repository.NewRepo(db), buildEngines(ctx, cfg, log), tr, log)
			if err != nil {
				return err
			}
			log.Info("starting", "version", appVersion(), "language", tr.Language(), "dataDir", cfg.DataDir)
			return bot.Run(ctx)
		},
	}
}

