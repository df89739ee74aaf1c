package config

import "github.com/sonroyaalmerol/kumaplayer/internal/engine"

type Config struct {
	DiscordToken          string         `env:"DISCORD_TOKEN"`
	SpotifyClientID       string         `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string         `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string         `env:"DATA_DIR" envDefault:"./data"`
	FileRoot              string         `env:"FILE_ROOT"`
	Quality               engine.Quality `env:"QUALITY" envDefault:"high"`
	DefaultVolume         int            `env:"DEFAULT_VOLUME" envDefault:"100"`
	InlineVolume          bool           `env:"INLINE_VOLUME" envDefault:"true"`
	AllowSwitchChannels   bool           `env:"ALLOW_SWITCH_CHANNELS" envDefault:"true"`
	StopOnEnd             bool           `env:"STOP_ON_END" envDefault:"true"`
	Language              string         `env:"LANGUAGE" envDefault:"en"`
	LogLevel              string         `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string         `env:"LOG_FORMAT" envDefault:"text"`
	RegisterCommandsOnBot bool           `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	BotStatus             string         `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string         `env:"BOT_ACTIVITY" envDefault:"music"`
	YouTubeCookiesPath    string         `env:"YOUTUBE_COOKIES_PATH"`
	YouTubePOToken        string         `env:"YOUTUBE_PO_TOKEN"`
}
