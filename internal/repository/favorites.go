package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

var (
	ErrEmptyFavorite  = errors.New("favorite name and query must not be empty")
	ErrFavoriteExists = errors.New("favorite already exists")
)

// FavoritesService trims user input before it reaches the favorites table.
type FavoritesService struct {
	repo *Repo
}

func NewFavoritesService(repo *Repo) *FavoritesService {
	return &FavoritesService{repo: repo}
}

func (f *FavoritesService) Create(ctx context.Context, guild, author, name, query string) error {
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if name == "" || query == "" {
		return ErrEmptyFavorite
	}
	if _, err := f.repo.FindFavorite(ctx, guild, name); err == nil {
		return ErrFavoriteExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return f.repo.AddFavorite(ctx, &Favorite{
		GuildID: guild, Author: author, Name: name, Query: query,
	})
}

func (f *FavoritesService) Remove(ctx context.Context, guild, name string) (int64, error) {
	return f.repo.RemoveFavorite(ctx, guild, strings.TrimSpace(name))
}

func (f *FavoritesService) Use(ctx context.Context, guild, name string) (*Favorite, error) {
	return f.repo.FindFavorite(ctx, guild, strings.TrimSpace(name))
}

func (f *FavoritesService) List(ctx context.Context, guild string) ([]Favorite, error) {
	return f.repo.ListFavorites(ctx, guild)
}
