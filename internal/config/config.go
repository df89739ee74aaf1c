package config

import (
	"fmt"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/engine"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }

// Parse reads the environment without requiring bot credentials.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if !slices.Contains([]engine.Quality{engine.QualityLow, engine.QualityMedium, engine.QualityHigh}, cfg.Quality) {
		return nil, ErrConfig(fmt.Sprintf("QUALITY must be low, medium or high, got %q", cfg.Quality))
	}
	if !utils.ValidateVolume(cfg.DefaultVolume) {
		return nil, ErrConfig(fmt.Sprintf("DEFAULT_VOLUME must be between %d and %d", utils.MinVolume, utils.MaxVolume))
	}
	return cfg, nil
}

// LoadConfig is Parse for running the bot.
func LoadConfig() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	return cfg, nil
}

// PlayerOptions are the manager wide player defaults.
func (c *Config) PlayerOptions() player.Options {
	return player.Options{
		Quality:             c.Quality,
		InlineVolume:        lo.ToPtr(c.InlineVolume),
		InitialVolume:       lo.ToPtr(c.DefaultVolume),
		FileRoot:            c.FileRoot,
		AllowSwitchChannels: lo.ToPtr(c.AllowSwitchChannels),
		StopOnEnd:           lo.ToPtr(c.StopOnEnd),
	}
}
