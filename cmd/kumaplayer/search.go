package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/logging"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
	"github.com/spf13/cobra"
)

// searchCmd resolves a query through the same engines the bot uses,
// without connecting to Discord.
func searchCmd() *cobra.Command {
	var (
		source string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve a query and print the matching tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			log, err := logging.NewWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			query := strings.Join(args, " ")
			router := engine.NewRouter(buildEngines(ctx, cfg, log), nil)
			ecfg := engine.Config{Quality: cfg.Quality, FileRoot: cfg.FileRoot}
			if source == "" {
				source = router.Detect(ctx, query, ecfg)
			}
			eng, ok := router.Engine(source)
			if !ok {
				return fmt.Errorf("unknown source %q (available: %s)", source, strings.Join(router.Sources(), ", "))
			}

			results, err := eng.Search(ctx, query, ecfg, engine.SearchOptions{Limit: limit})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			n := 0
			for _, res := range results {
				if res.Playlist != nil {
					fmt.Fprintf(w, "# %s\t%s\n", res.Playlist.Title, res.Playlist.URL)
				}
				for _, t := range res.Tracks {
					n++
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n, utils.FormatDuration(t.Duration), t.Title, t.URL)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "no tracks found on %s\n", source)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "force an engine instead of detecting one")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of tracks, 0 for all")
	return cmd
}
