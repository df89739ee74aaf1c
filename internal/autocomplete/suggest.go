package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/player"
)

// Discord rejects choice names and values longer than this.
const maxChoiceLen = 100

var suggestURL = "https://suggestqueries.google.com/complete/search"

// Searcher is satisfied by *player.Player.
type Searcher interface {
	Search(ctx context.Context, query string, opts player.SearchOptions) []media.SearchResult
}

func GetYouTubeSuggestions(ctx context.Context, client *http.Client, query string) ([]string, error) {
	u, _ := url.Parse(suggestURL)
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestions: %s", resp.Status)
	}
	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	return lo.FilterMap(arr, func(v any, _ int) (string, bool) {
		s, ok := v.(string)
		return s, ok
	}), nil
}

// Choices puts direct search hits first and fills up with YouTube query
// suggestions. Failed suggestions only shorten the list.
func Choices(ctx context.Context, client *http.Client, s Searcher, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 {
		limit = 10
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)

	if s != nil {
		for _, res := range s.Search(ctx, query, player.SearchOptions{Limit: limit / 2}) {
			if res.Playlist != nil && len(out) < limit && len(res.Playlist.URL) <= maxChoiceLen {
				out = append(out, choice("💿 "+res.Playlist.Title, res.Playlist.URL))
			}
			for _, t := range res.Tracks {
				if len(out) >= limit/2 {
					break
				}
				if t.URL == "" || len(t.URL) > maxChoiceLen {
					continue
				}
				name := "🎵 " + t.Title
				if t.Artist != "" {
					name += " - " + t.Artist
				}
				out = append(out, choice(name, t.URL))
			}
		}
	}

	if client != nil && len(out) < limit {
		yt, _ := GetYouTubeSuggestions(ctx, client, query)
		for _, q := range yt {
			if len(out) >= limit {
				break
			}
			out = append(out, choice("YouTube: "+q, q))
		}
	}
	return out
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	if r := []rune(name); len(r) > maxChoiceLen {
		name = string(r[:maxChoiceLen-1]) + "…"
	}
	if len(value) > maxChoiceLen {
		value = value[:maxChoiceLen]
	}
	return &discordgo.ApplicationCommandOptionChoice{Name: name, Value: value}
}
