package repository

import "database/sql"

type Repo struct {
	db *sql.DB
	// defaults stand in for guilds without a settings row and seed new rows.
	defaults Settings
}

// Settings are the per guild player defaults.
type Settings struct {
	GuildID       string
	DefaultVolume int
	StopOnEnd     bool
}

// Favorite is a saved search query.
type Favorite struct {
	ID      int64
	GuildID string
	Author  string
	Name    string
	Query   string
}
