// Package ripple is the client for the platform API (v1): user lookups,
// moderation edits and score listings.
package ripple

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/xnyo/fokabot/internal/backend"
)

// Client talks to the platform API, authenticated with X-Ripple-Token.
type Client struct {
	backend.Client
}

// New creates a platform API client rooted at base (e.g.
// "https://ripple.moe").
func New(base, token string, logger *slog.Logger) *Client {
	c := backend.NewClient(base+"/api/v1", token, "X-Ripple-Token", logger)
	return &Client{Client: c}
}

// User is the subset of the platform user document the bot consumes.
type User struct {
	ID         int    `json:"id"`
	Username   string `json:"username"`
	Privileges int64  `json:"privileges"`
}

// Score is one submitted score as listed by the scores handlers.
type Score struct {
	Beatmap struct {
		BeatmapID   int                `json:"beatmap_id"`
		SongName    string             `json:"song_name"`
		MaxCombo    int                `json:"max_combo"`
		Difficulty2 map[string]float64 `json:"difficulty2"`
	} `json:"beatmap"`
	Mods      int64   `json:"mods"`
	PlayMode  int     `json:"play_mode"`
	Accuracy  float64 `json:"accuracy"`
	PP        float64 `json:"pp"`
	Rank      string  `json:"rank"`
	MaxCombo  int     `json:"max_combo"`
	FullCombo bool    `json:"full_combo"`
}

// WhatID resolves a username to a user id. Returns 0 when no such user
// exists.
func (c *Client) WhatID(ctx context.Context, username string) (int, error) {
	var out struct {
		ID int `json:"id"`
	}
	params := url.Values{"name": {username}}
	if err := c.Get(ctx, "users/whatid", params, &out); err != nil {
		var respErr *backend.ResponseError
		if errors.As(err, &respErr) {
			return 0, nil
		}
		return 0, err
	}
	return out.ID, nil
}

// GetUser fetches users matching the given username. The platform returns a
// list; an exact lookup yields zero or one entries.
func (c *Client) GetUser(ctx context.Context, username string) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	params := url.Values{"name": {username}}
	if err := c.Get(ctx, "users", params, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// GetUserByID fetches a single user by id. Returns nil when not found.
func (c *Client) GetUserByID(ctx context.Context, userID int) (*User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	params := url.Values{"ids": {strconv.Itoa(userID)}}
	if err := c.Get(ctx, "users", params, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, nil
	}
	return &out.Users[0], nil
}

// SetAllowed changes a user's allowed flag (0 = banned, 1 = allowed,
// 2 = restricted).
func (c *Client) SetAllowed(ctx context.Context, userID, allowed int) error {
	return c.Post(ctx, "users/setallowed", map[string]any{
		"user_id": userID,
		"allowed": allowed,
	}, nil)
}

// Silence silences a user until the given time with a reason.
func (c *Client) Silence(ctx context.Context, userID int, end time.Time, reason string) error {
	return c.Post(ctx, "users/edit", map[string]any{
		"id":             userID,
		"silence_end":    end.UTC().Format(time.RFC3339),
		"silence_reason": reason,
	}, nil)
}

// RemoveSilence lifts a user's silence.
func (c *Client) RemoveSilence(ctx context.Context, userID int) error {
	return c.Post(ctx, "users/edit", map[string]any{
		"id":          userID,
		"silence_end": time.Unix(0, 0).UTC().Format(time.RFC3339),
	}, nil)
}

// RecentScores lists a user's most recent scores, newest first.
func (c *Client) RecentScores(ctx context.Context, username string) ([]Score, error) {
	var out struct {
		Scores []Score `json:"scores"`
	}
	params := url.Values{"name": {username}}
	if err := c.Get(ctx, "users/scores/recent", params, &out); err != nil {
		return nil, err
	}
	return out.Scores, nil
}

// BestScores lists a user's top scores.
func (c *Client) BestScores(ctx context.Context, username string) ([]Score, error) {
	var out struct {
		Scores []Score `json:"scores"`
	}
	params := url.Values{"name": {username}}
	if err := c.Get(ctx, "users/scores/best", params, &out); err != nil {
		return nil, err
	}
	return out.Scores, nil
}

// Ping verifies the token and returns the privileges granted to it.
func (c *Client) Ping(ctx context.Context) (int64, error) {
	var out struct {
		Privileges int64 `json:"privileges"`
	}
	if err := c.Get(ctx, "ping", nil, &out); err != nil {
		return 0, err
	}
	return out.Privileges, nil
}
