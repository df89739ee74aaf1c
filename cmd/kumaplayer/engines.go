package main

import (
	"context"
	"log/slog"

	"github.com/sonroyaalmerol/kumaplayer/internal/config"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/spotify"
	"github.com/sonroyaalmerol/kumaplayer/internal/youtube"
)

// buildEngines returns the built-in engines. Spotify is skipped without
// credentials since it only resolves metadata.
func buildEngines(ctx context.Context, cfg *config.Config, log *slog.Logger) []engine.Engine {
	yt := engine.NewYouTube(youtube.NewClient(youtube.Options{
		CookiesPath: cfg.YouTubeCookiesPath,
		POToken:     cfg.YouTubePOToken,
	}), log)
	engines := []engine.Engine{yt}

	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		client, err := spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		if err != nil {
			log.Warn("spotify disabled", "err", err)
		} else {
			engines = append(engines, engine.NewSpotify(client, yt, log))
		}
	}
	return append(engines, engine.NewFile(nil, log))
}
