// Package kvstore wraps the shared key/value store. The store is shared
// with other services: it holds the ephemeral "now playing" context consumed
// by follow-up commands and carries the pub/sub channels other services use
// to reach the bot.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/xnyo/fokabot/internal/osu"
)

// NpTTL is how long a now-playing context stays visible to follow-up
// commands.
const NpTTL = 180 * time.Second

// NpInfo is the cached now-playing context of one client.
type NpInfo struct {
	BeatmapID int          `json:"beatmap_id"`
	GameMode  osu.GameMode `json:"game_mode"`
	Mods      osu.Mod      `json:"mods"`
	// Accuracy is 0 when the standard accuracy steps should be used.
	Accuracy float64 `json:"accuracy,omitempty"`
}

// Store is the process-wide handle on the key/value store.
type Store struct {
	client valkey.Client
	logger *slog.Logger
}

// Options configure the connection.
type Options struct {
	Addr     string
	Password string
	Database int
}

// New connects to the store.
func New(opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect key/value store: %w", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// Close releases the connection.
func (s *Store) Close() {
	s.client.Close()
}

// Client exposes the raw client for the pub/sub ingress.
func (s *Store) Client() valkey.Client { return s.client }

func npKey(apiIdentifier string) string { return "fokabot:np:" + apiIdentifier }

// SetNp stores a client's now-playing context with the standard TTL.
func (s *Store) SetNp(ctx context.Context, apiIdentifier string, info NpInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode np info: %w", err)
	}
	cmd := s.client.B().Set().Key(npKey(apiIdentifier)).Value(string(raw)).Ex(NpTTL).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("store np info: %w", err)
	}
	return nil
}

// GetNp fetches a client's now-playing context. Returns nil without error
// when there is none (or it has expired).
func (s *Store) GetNp(ctx context.Context, apiIdentifier string) (*NpInfo, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(npKey(apiIdentifier)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch np info: %w", err)
	}
	var info NpInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil || info.BeatmapID == 0 {
		// A foreign or corrupt document; drop it so the client re-sends /np.
		_ = s.DeleteNp(ctx, apiIdentifier)
		return nil, nil
	}
	return &info, nil
}

// DeleteNp clears a client's now-playing context.
func (s *Store) DeleteNp(ctx context.Context, apiIdentifier string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(npKey(apiIdentifier)).Build()).Error()
}

// Publish publishes a raw payload on a channel. Used by tests and tooling;
// the bot itself is normally on the consuming end.
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	return s.client.Do(ctx, s.client.B().Publish().Channel(channel).Message(payload).Build()).Error()
}
