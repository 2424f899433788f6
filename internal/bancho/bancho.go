// Package bancho is the client for the presence/match API (v2): connected
// clients, chat channels, alerts, multiplayer match control and system
// operations.
package bancho

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xnyo/fokabot/internal/backend"
	"github.com/xnyo/fokabot/internal/osu"
)

// Client talks to the presence server API, authenticated with
// X-Ripple-Token.
type Client struct {
	backend.Client
}

// New creates a presence API client rooted at base (e.g.
// "https://c.ripple.moe").
func New(base, token string, logger *slog.Logger) *Client {
	c := backend.NewClient(base+"/api/v2", token, "X-Ripple-Token", logger)
	return &Client{Client: c}
}

// ConnectedClient describes one client attached to the presence server.
type ConnectedClient struct {
	APIIdentifier string `json:"api_identifier"`
	UserID        int    `json:"user_id"`
	Username      string `json:"username"`
	Type          int    `json:"type"`
	Privileges    int64  `json:"privileges"`
}

// Channel is a public chat channel.
type Channel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Temporary   bool   `json:"temporary"`
}

// Slot is one slot of a multiplayer match.
type Slot struct {
	Status int              `json:"status"`
	Team   int              `json:"team"`
	User   *ConnectedClient `json:"user"`
}

// MatchInfo is the presence server's view of a multiplayer match.
type MatchInfo struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	HostAPIIdentifier string `json:"host_api_identifier"`
	APIOwnerUserID    int    `json:"api_owner_user_id"`
	Slots             []Slot `json:"slots"`
}

// Beatmap identifies the map pinned on a match.
type Beatmap struct {
	ID       int    `json:"id"`
	MD5      string `json:"md5"`
	SongName string `json:"song_name"`
}

// GetChannels lists all public chat channels.
func (c *Client) GetChannels(ctx context.Context) ([]Channel, error) {
	var out struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.Get(ctx, "chat_channels", nil, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// GetClients lists the clients of one user.
func (c *Client) GetClients(ctx context.Context, userID int) ([]ConnectedClient, error) {
	var out struct {
		Clients []ConnectedClient `json:"clients"`
	}
	if err := c.Get(ctx, fmt.Sprintf("clients/%d", userID), nil, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// GetClient returns one client of the user, preferring game clients when
// gameOnly is set. Returns nil when the user has no (matching) client
// online.
func (c *Client) GetClient(ctx context.Context, userID int, gameOnly bool) (*ConnectedClient, error) {
	clients, err := c.GetClients(ctx, userID)
	if err != nil {
		var respErr *backend.ResponseError
		if errors.As(err, &respErr) && respErr.Code == 400 {
			return nil, nil
		}
		return nil, err
	}
	for i := range clients {
		if !gameOnly || osu.ClientType(clients[i].Type) == osu.ClientTypeOsu {
			return &clients[i], nil
		}
	}
	return nil, nil
}

// IsOnline reports whether the user has a client online.
func (c *Client) IsOnline(ctx context.Context, userID int, gameOnly bool) (bool, error) {
	client, err := c.GetClient(ctx, userID, gameOnly)
	return client != nil, err
}

// MassAlert sends a server-wide notification.
func (c *Client) MassAlert(ctx context.Context, message string) error {
	return c.Post(ctx, "system/mass_alert", map[string]any{"message": message}, nil)
}

// Alert sends a notification to a single client.
func (c *Client) Alert(ctx context.Context, apiIdentifier, message string) error {
	return c.Post(ctx, "clients/"+apiIdentifier+"/alert", map[string]any{"message": message}, nil)
}

// Kick disconnects a client. Returns false when it was already gone.
func (c *Client) Kick(ctx context.Context, apiIdentifier string) (bool, error) {
	err := c.Post(ctx, "clients/"+apiIdentifier+"/kick", nil, nil)
	var respErr *backend.ResponseError
	if errors.As(err, &respErr) && respErr.Code == 400 {
		return false, nil
	}
	return err == nil, err
}

// RTX sends the infamous rtx packet. Returns false when the client is gone.
func (c *Client) RTX(ctx context.Context, apiIdentifier, message string) (bool, error) {
	err := c.Post(ctx, "clients/"+apiIdentifier+"/rtx", map[string]any{"message": message}, nil)
	var respErr *backend.ResponseError
	if errors.As(err, &respErr) && respErr.Code == 400 {
		return false, nil
	}
	return err == nil, err
}

// Moderated toggles a channel's moderated mode.
func (c *Client) Moderated(ctx context.Context, channel string, moderated bool) error {
	for len(channel) > 0 && channel[0] == '#' {
		channel = channel[1:]
	}
	return c.Post(ctx, "chat_channels/"+channel, map[string]any{"moderated": moderated}, nil)
}

// CreateMatch creates a multiplayer match and returns its id.
func (c *Client) CreateMatch(
	ctx context.Context, name, password string, slots int, gameMode osu.GameMode, beatmap Beatmap,
) (int, error) {
	var out struct {
		MatchID int `json:"match_id"`
	}
	body := map[string]any{
		"name":      name,
		"password":  password,
		"game_mode": int(gameMode),
		"beatmap":   beatmap,
	}
	if slots > 0 {
		body["slots"] = slots
	}
	if err := c.Post(ctx, "matches", body, &out); err != nil {
		return 0, err
	}
	return out.MatchID, nil
}

// EditMatch updates team type and scoring rules on a match.
func (c *Client) EditMatch(ctx context.Context, matchID int, teamType osu.TeamType, scoring osu.ScoringType) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d", matchID), map[string]any{
		"team_type":    int(teamType),
		"scoring_type": int(scoring),
	}, nil)
}

// Freeze freezes or unfreezes a match's settings.
func (c *Client) Freeze(ctx context.Context, matchID int, enable bool) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/freeze", matchID), map[string]any{"enable": enable}, nil)
}

// DeleteMatch disposes a match.
func (c *Client) DeleteMatch(ctx context.Context, matchID int) error {
	return c.Do(ctx, "DELETE", fmt.Sprintf("matches/%d", matchID), nil, nil, nil)
}

// GetMatchInfo returns the full state of one match.
func (c *Client) GetMatchInfo(ctx context.Context, matchID int) (*MatchInfo, error) {
	var out struct {
		Match *MatchInfo `json:"match"`
	}
	if err := c.Get(ctx, fmt.Sprintf("matches/%d", matchID), nil, &out); err != nil {
		return nil, err
	}
	return out.Match, nil
}

// GetAllMatches lists every match currently alive.
func (c *Client) GetAllMatches(ctx context.Context) ([]MatchInfo, error) {
	var out struct {
		Matches []MatchInfo `json:"matches"`
	}
	if err := c.Get(ctx, "matches", nil, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// JoinMatch makes a client join a match.
func (c *Client) JoinMatch(ctx context.Context, apiIdentifier string, matchID int) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/join", matchID), map[string]any{
		"api_identifier": apiIdentifier,
	}, nil)
}

// Invite invites a user into a match.
func (c *Client) Invite(ctx context.Context, matchID, userID int) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/invite", matchID), map[string]any{"user_id": userID}, nil)
}

// MatchKick removes a client from a match.
func (c *Client) MatchKick(ctx context.Context, matchID int, apiIdentifier string) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/kick", matchID), map[string]any{
		"api_identifier": apiIdentifier,
	}, nil)
}

// MoveUser moves a client to a specific slot.
func (c *Client) MoveUser(ctx context.Context, matchID int, apiIdentifier string, slot int) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/move", matchID), map[string]any{
		"api_identifier": apiIdentifier,
		"slot":           slot,
	}, nil)
}

// SetTeam assigns a client's team colour.
func (c *Client) SetTeam(ctx context.Context, matchID int, apiIdentifier string, team osu.Team) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/team", matchID), map[string]any{
		"api_identifier": apiIdentifier,
		"team":           int(team),
	}, nil)
}

// TransferHost hands the match host to a client.
func (c *Client) TransferHost(ctx context.Context, matchID int, apiIdentifier string) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/host", matchID), map[string]any{
		"api_identifier": apiIdentifier,
	}, nil)
}

// ClearHost removes the current host.
func (c *Client) ClearHost(ctx context.Context, matchID int) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/clear_host", matchID), nil, nil)
}

// LockSlot describes one slot's lock state for Lock.
type LockSlot struct {
	ID     int  `json:"id"`
	Locked bool `json:"locked"`
}

// Lock locks/unlocks slots, effectively resizing the match.
func (c *Client) Lock(ctx context.Context, matchID int, slots []LockSlot) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/lock", matchID), map[string]any{"slots": slots}, nil)
}

// StartMatch starts the match, optionally forcing past not-ready players.
func (c *Client) StartMatch(ctx context.Context, matchID int, force bool) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/start", matchID), map[string]any{"force": force}, nil)
}

// AbortMatch aborts a match in progress.
func (c *Client) AbortMatch(ctx context.Context, matchID int) error {
	return c.Post(ctx, fmt.Sprintf("matches/%d/abort", matchID), nil, nil)
}

// SystemInfo describes the running presence server.
type SystemInfo struct {
	DeltaVersion       string `json:"delta_version"`
	PythonVersion      string `json:"python_version"`
	InterpreterVersion string `json:"interpreter_version"`
	UptimeSeconds      int    `json:"uptime_seconds"`
	ScoresServer       struct {
		Type    string `json:"type"`
		Version string `json:"version"`
	} `json:"scores_server"`
}

// GetSystemInfo fetches version and uptime information.
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	var out SystemInfo
	if err := c.Get(ctx, "system", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Shutdown asks the presence server to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.Post(ctx, "system/graceful_shutdown", nil, nil)
}

// Recycle asks the presence server to recycle itself.
func (c *Client) Recycle(ctx context.Context) error {
	return c.Post(ctx, "system/recycle", nil, nil)
}
