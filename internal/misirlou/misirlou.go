// Package misirlou is the client for the tournament API plus the data model
// of a scheduled tournament match as the API reports it: teams, captains and
// the beatmap pool grouped by mods.
package misirlou

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xnyo/fokabot/internal/backend"
	"github.com/xnyo/fokabot/internal/osu"
)

// Client talks to the tournament API, authenticated with a bearer token.
type Client struct {
	backend.Client
}

// New creates a tournament API client rooted at base (e.g.
// "https://tourn.ripple.moe").
func New(base, token string, logger *slog.Logger) *Client {
	return &Client{Client: backend.NewClient(base+"/api/fokabot", token, "Authorization", logger)}
}

// TeamSide identifies team A or team B.
type TeamSide string

const (
	SideA TeamSide = "a"
	SideB TeamSide = "b"
)

// Other returns the opposite side.
func (s TeamSide) Other() TeamSide {
	if s == SideA {
		return SideB
	}
	return SideA
}

// BanchoTeam maps the side to its match colour: A plays blue, B plays red.
func (s TeamSide) BanchoTeam() osu.Team {
	if s == SideA {
		return osu.TeamBlue
	}
	return osu.TeamRed
}

// Beatmap is one pool entry.
type Beatmap struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Mods       osu.Mod `json:"mods"`
	Tiebreaker bool    `json:"tiebreaker"`
}

// Tournament is the tournament a match belongs to.
type Tournament struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	GameMode     int    `json:"game_mode"`
	TeamSize     int    `json:"team_size"`

	// Pool holds the non-tiebreaker maps grouped by mod combination;
	// PoolOrder lists the groups in a stable rendering order.
	Pool      map[osu.Mod][]Beatmap
	PoolOrder []osu.Mod
	// Tiebreaker is the single map flagged as such in the raw pool.
	Tiebreaker Beatmap
}

// Solo reports whether this is a 1v1 tournament.
func (t *Tournament) Solo() bool { return t.TeamSize == 1 }

// Team is one side of a match.
type Team struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Members []int  `json:"members"`
	Captain int    `json:"captain"`
}

// Match is one scheduled match as the tournament API reports it.
type Match struct {
	ID         int
	When       time.Time
	Tournament *Tournament
	TeamA      *Team
	TeamB      *Team
}

// rawMatch mirrors the API document before pool grouping.
type rawMatch struct {
	ID         int    `json:"id"`
	Timestamp  string `json:"timestamp"`
	Tournament struct {
		ID           int       `json:"id"`
		Name         string    `json:"name"`
		Abbreviation string    `json:"abbreviation"`
		GameMode     int       `json:"game_mode"`
		TeamSize     int       `json:"team_size"`
		Pool         []Beatmap `json:"pool"`
	} `json:"tournament"`
	TeamA Team `json:"team_a"`
	TeamB Team `json:"team_b"`
}

// GetMatches lists the pending matches the bot should create rooms for.
func (c *Client) GetMatches(ctx context.Context) ([]*Match, error) {
	var raw []rawMatch
	if err := c.Get(ctx, "matches", nil, &raw); err != nil {
		return nil, err
	}
	matches := make([]*Match, 0, len(raw))
	for i := range raw {
		m, err := fromRaw(&raw[i])
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func fromRaw(r *rawMatch) (*Match, error) {
	t := &Tournament{
		ID:           r.Tournament.ID,
		Name:         r.Tournament.Name,
		Abbreviation: r.Tournament.Abbreviation,
		GameMode:     r.Tournament.GameMode,
		TeamSize:     r.Tournament.TeamSize,
		Pool:         make(map[osu.Mod][]Beatmap),
	}
	haveTiebreaker := false
	for _, b := range r.Tournament.Pool {
		if b.Tiebreaker {
			t.Tiebreaker = b
			haveTiebreaker = true
			continue
		}
		if _, seen := t.Pool[b.Mods]; !seen {
			t.PoolOrder = append(t.PoolOrder, b.Mods)
		}
		t.Pool[b.Mods] = append(t.Pool[b.Mods], b)
	}
	if !haveTiebreaker {
		return nil, fmt.Errorf("match %d: pool has no tiebreaker", r.ID)
	}
	sort.Slice(t.PoolOrder, func(i, j int) bool { return t.PoolOrder[i] < t.PoolOrder[j] })

	for _, team := range []*Team{&r.TeamA, &r.TeamB} {
		if !contains(team.Members, team.Captain) {
			return nil, fmt.Errorf("match %d: captain %d not in team %q", r.ID, team.Captain, team.Name)
		}
	}

	when, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("match %d: bad timestamp: %w", r.ID, err)
	}
	teamA, teamB := r.TeamA, r.TeamB
	return &Match{
		ID:         r.ID,
		When:       when,
		Tournament: t,
		TeamA:      &teamA,
		TeamB:      &teamB,
	}, nil
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
