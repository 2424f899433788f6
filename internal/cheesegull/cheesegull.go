// Package cheesegull is the client for the beatmap mirror's metadata API.
package cheesegull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xnyo/fokabot/internal/backend"
)

// Client talks to the mirror metadata API.
type Client struct {
	backend.Client
}

// New creates a mirror metadata client rooted at base (e.g.
// "https://storage.ripple.moe").
func New(base string, logger *slog.Logger) *Client {
	return &Client{Client: backend.NewClient(base+"/api", "", "", logger)}
}

// BeatmapInfo is one difficulty's metadata.
type BeatmapInfo struct {
	BeatmapID   int    `json:"BeatmapID"`
	ParentSetID int    `json:"ParentSetID"`
	DiffName    string `json:"DiffName"`
}

// SetInfo is a beatmap set's metadata.
type SetInfo struct {
	SetID        int    `json:"SetID"`
	Title        string `json:"Title"`
	Artist       string `json:"Artist"`
	RankedStatus int    `json:"RankedStatus"`
}

// GetBeatmap looks up one difficulty by beatmap id. Returns nil when the
// mirror does not know the map.
func (c *Client) GetBeatmap(ctx context.Context, beatmapID int) (*BeatmapInfo, error) {
	var out BeatmapInfo
	if err := c.Get(ctx, fmt.Sprintf("b/%d", beatmapID), nil, &out); err != nil {
		var respErr *backend.ResponseError
		if errors.As(err, &respErr) && respErr.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	if out.BeatmapID == 0 {
		return nil, nil
	}
	return &out, nil
}

// GetSet looks up a beatmap set by set id. Returns nil when unknown.
func (c *Client) GetSet(ctx context.Context, setID int) (*SetInfo, error) {
	var out SetInfo
	if err := c.Get(ctx, fmt.Sprintf("s/%d", setID), nil, &out); err != nil {
		var respErr *backend.ResponseError
		if errors.As(err, &respErr) && respErr.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	if out.SetID == 0 {
		return nil, nil
	}
	return &out, nil
}
