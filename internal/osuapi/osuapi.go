// Package osuapi is a very small client for the official osu! API v1, used
// only as a fallback for beatmap set lookups the mirror cannot answer.
package osuapi

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/xnyo/fokabot/internal/backend"
)

// Client talks to the official API; the key travels as a query parameter.
type Client struct {
	backend.Client
	key string
}

// New creates an osu! API v1 client.
func New(key string, logger *slog.Logger) *Client {
	return &Client{
		Client: backend.NewClient("https://osu.ppy.sh/api", "", "", logger),
		key:    key,
	}
}

// BeatmapRow is one row of the get_beatmaps handler.
type BeatmapRow struct {
	BeatmapID    string `json:"beatmap_id"`
	BeatmapSetID string `json:"beatmapset_id"`
	Title        string `json:"title"`
}

// GetBeatmapSetID resolves a beatmap id to its set id. Returns 0 when the
// API does not know the beatmap.
func (c *Client) GetBeatmapSetID(ctx context.Context, beatmapID int) (int, error) {
	params := url.Values{
		"k":     {c.key},
		"b":     {strconv.Itoa(beatmapID)},
		"limit": {"1"},
	}
	var rows []BeatmapRow
	if err := c.Get(ctx, "get_beatmaps", params, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	setID, err := strconv.Atoi(rows[0].BeatmapSetID)
	if err != nil {
		return 0, &backend.FatalError{Err: err}
	}
	return setID, nil
}
