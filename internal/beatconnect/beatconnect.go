// Package beatconnect is the client for the beatconnect.io download mirror.
package beatconnect

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/xnyo/fokabot/internal/backend"
)

// Client talks to the beatconnect API, authenticated with a Token header.
type Client struct {
	backend.Client
	siteBase string
}

// New creates a beatconnect client. base defaults to the public site.
func New(base, token string, logger *slog.Logger) *Client {
	if base == "" {
		base = "https://beatconnect.io"
	}
	return &Client{
		Client:   backend.NewClient(base+"/api", token, "Token", logger),
		siteBase: base,
	}
}

// BeatmapSet is one search result.
type BeatmapSet struct {
	ID       int    `json:"id"`
	UniqueID string `json:"unique_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
}

// Search queries the mirror. The query may be free text or a set id.
func (c *Client) Search(ctx context.Context, query string) ([]BeatmapSet, error) {
	params := url.Values{
		"s": {"all"},
		"m": {"all"},
		"q": {query},
		"p": {"0"},
	}
	var out struct {
		Beatmaps []BeatmapSet `json:"beatmaps"`
	}
	if err := c.Get(ctx, "search/", params, &out); err != nil {
		return nil, err
	}
	return out.Beatmaps, nil
}

// GetBySetID looks a set up by its id. Returns nil when not mirrored.
func (c *Client) GetBySetID(ctx context.Context, setID int) (*BeatmapSet, error) {
	sets, err := c.Search(ctx, strconv.Itoa(setID))
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, nil
	}
	return &sets[0], nil
}

// DownloadLink builds a direct download link for the set, or "" when the
// mirror does not have it.
func (c *Client) DownloadLink(ctx context.Context, setID int) (string, error) {
	set, err := c.GetBySetID(ctx, setID)
	if err != nil {
		return "", err
	}
	if set == nil {
		return "", nil
	}
	return fmt.Sprintf("%s/b/%d/%s", c.siteBase, setID, set.UniqueID), nil
}
