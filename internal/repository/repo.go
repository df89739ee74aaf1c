package repository

import (
	"context"
	"database/sql"
	"errors"
)

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db, defaults: Settings{DefaultVolume: 100, StopOnEnd: true}}
}

// WithDefaults returns a Repo that falls back to the given volume and
// stop-on-end value for guilds that never saved settings.
func (r *Repo) WithDefaults(volume int, stopOnEnd bool) *Repo {
	out := *r
	out.defaults = Settings{DefaultVolume: volume, StopOnEnd: stopOnEnd}
	return &out
}

// UpsertSettings makes sure the guild has a settings row and returns it.
func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id, default_volume, stop_on_end) VALUES (?, ?, ?)`,
		guild, r.defaults.DefaultVolume, boolToInt(r.defaults.StopOnEnd),
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

// GetSettings returns sql.ErrNoRows for guilds that never saved settings.
func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT guild_id, default_volume, stop_on_end FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var stop int
	if err := row.Scan(&s.GuildID, &s.DefaultVolume, &stop); err != nil {
		return nil, err
	}
	s.StopOnEnd = stop != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings(guild_id, default_volume, stop_on_end) VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
		  default_volume = excluded.default_volume,
		  stop_on_end    = excluded.stop_on_end,
		  updated_at     = unixepoch()`,
		s.GuildID, s.DefaultVolume, boolToInt(s.StopOnEnd),
	)
	return err
}

func (r *Repo) SetDefaultVolume(ctx context.Context, guild string, volume int) error {
	s, err := r.UpsertSettings(ctx, guild)
	if err != nil {
		return err
	}
	s.DefaultVolume = volume
	return r.UpdateSettings(ctx, s)
}

// DefaultVolume resolves the starting volume of a guild's player. Guilds
// without settings get the repo default.
func (r *Repo) DefaultVolume(ctx context.Context, guild string) (int, error) {
	s, err := r.GetSettings(ctx, guild)
	if errors.Is(err, sql.ErrNoRows) {
		return r.defaults.DefaultVolume, nil
	}
	if err != nil {
		return 0, err
	}
	return s.DefaultVolume, nil
}

func (r *Repo) AddFavorite(ctx context.Context, f *Favorite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites(guild_id, author_id, name, query) VALUES (?,?,?,?)`,
		f.GuildID, f.Author, f.Name, f.Query,
	)
	return err
}

func (r *Repo) RemoveFavorite(ctx context.Context, guild, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) FindFavorite(ctx context.Context, guild, name string) (*Favorite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? AND name=?`, guild, name)
	var f Favorite
	if err := row.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *Repo) ListFavorites(ctx context.Context, guild string) ([]Favorite, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, guild_id, author_id, name, query FROM favorites WHERE guild_id=? ORDER BY name ASC`, guild)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.GuildID, &f.Author, &f.Name, &f.Query); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
