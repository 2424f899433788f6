// Package tournament implements the per-match orchestration state machine:
// room creation from the tournament API, join classification, rolls, the
// ban/pick flow with confirmation, and play tracking driven by match-update
// events.
package tournament

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xnyo/fokabot/internal/misirlou"
)

// State is the phase a tournament match is in.
type State int

const (
	StateWaiting State = iota
	StateRolling
	StateBanning
	StatePicking
	StateConfirming
	StatePlaying
	StateEnd
	StateMissingPlayers
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRolling:
		return "rolling"
	case StateBanning:
		return "banning"
	case StatePicking:
		return "picking"
	case StateConfirming:
		return "confirming"
	case StatePlaying:
		return "playing"
	case StateEnd:
		return "end"
	case StateMissingPlayers:
		return "missing players"
	}
	return "unknown"
}

// Operation is what a candidate beatmap is being selected for.
type Operation int

const (
	OpBan Operation = iota
	OpPick
)

func (o Operation) String() string {
	if o == OpBan {
		return "ban"
	}
	return "pick"
}

// TeamState is the live state of one side.
type TeamState struct {
	*misirlou.Team
	Side misirlou.TeamSide

	// InMatch holds the user ids currently present in the room.
	InMatch map[int]struct{}
	// Roll is nil until the team's roll has been recorded; it transitions
	// nil → value exactly once per match.
	Roll *int
}

// CaptainInMatch reports whether the captain is present in the room.
func (t *TeamState) CaptainInMatch() bool {
	_, ok := t.InMatch[t.Captain]
	return ok
}

// Match is one orchestrated tournament match. All mutation goes through the
// engine while holding mu; the engine's event handlers are the only writers.
type Match struct {
	mu sync.Mutex

	// ID is the tournament API's match id; BanchoMatchID the room id.
	ID            int
	BanchoMatchID int
	Password      string

	Tournament *misirlou.Tournament
	TeamA      *TeamState
	TeamB      *TeamState

	State State
	// prevState is restored when a missing player returns.
	prevState State

	// Bans holds the beatmap ids committed as bans.
	Bans map[int]struct{}
	// Picking is the side that owns the next ban/pick.
	Picking misirlou.TeamSide
	// Candidate is the map awaiting confirmation, with its operation.
	Candidate   *misirlou.Beatmap
	CandidateOp Operation

	// Usernames caches user id → username for everyone seen in the room.
	Usernames map[int]string

	// playsDone counts finished picks; sawPlaying marks that the current
	// play actually started, so a match_update with nobody playing means it
	// finished.
	playsDone  int
	sawPlaying bool
	bansDone   int
}

func newMatch(m *misirlou.Match, banchoMatchID int, password string) *Match {
	return &Match{
		ID:            m.ID,
		BanchoMatchID: banchoMatchID,
		Password:      password,
		Tournament:    m.Tournament,
		TeamA: &TeamState{
			Team:    m.TeamA,
			Side:    misirlou.SideA,
			InMatch: make(map[int]struct{}),
		},
		TeamB: &TeamState{
			Team:    m.TeamB,
			Side:    misirlou.SideB,
			InMatch: make(map[int]struct{}),
		},
		State:     StateWaiting,
		Bans:      make(map[int]struct{}),
		Usernames: make(map[int]string),
	}
}

// ChatChannel is the room's chat channel name.
func (m *Match) ChatChannel() string {
	return fmt.Sprintf("#multi_%d", m.BanchoMatchID)
}

// Side returns the team playing the given side.
func (m *Match) Side(s misirlou.TeamSide) *TeamState {
	if s == misirlou.SideA {
		return m.TeamA
	}
	return m.TeamB
}

// UserTeam returns the team a user plays for, or nil for outsiders.
func (m *Match) UserTeam(userID int) *TeamState {
	for _, t := range []*TeamState{m.TeamA, m.TeamB} {
		for _, member := range t.Members {
			if member == userID {
				return t
			}
		}
	}
	return nil
}

// bothRolled reports whether both teams have recorded rolls.
func (m *Match) bothRolled() bool {
	return m.TeamA.Roll != nil && m.TeamB.Roll != nil
}

// rollWinner returns the side with the higher roll, valid only once both
// teams rolled with distinct values.
func (m *Match) rollWinner() *TeamState {
	if !m.bothRolled() {
		return nil
	}
	if *m.TeamA.Roll > *m.TeamB.Roll {
		return m.TeamA
	}
	return m.TeamB
}

// CaptainOrTeamName renders "who is responsible": the captain's username
// when present, "Team <name>" otherwise.
func (m *Match) CaptainOrTeamName(t *TeamState) string {
	if t.CaptainInMatch() {
		return m.Usernames[t.Captain]
	}
	return "Team " + t.Name
}

// CaptainOrTeamMembers renders the addressees for a prompt: the captain, or
// the present members with the team name.
func (m *Match) CaptainOrTeamMembers(t *TeamState) string {
	if t.CaptainInMatch() {
		return m.Usernames[t.Captain]
	}
	names := make([]string, 0, len(t.InMatch))
	for id := range t.InMatch {
		names = append(names, m.Usernames[id])
	}
	return strings.Join(names, ", ") + fmt.Sprintf(" (%s's members)", t.Name)
}

// resolvePool maps a "<group><index>" reference (NM1, HD2, TB1, ...) to a
// pool beatmap. The group acronym is matched against each pool group's
// tournament rendering; TB addresses the tiebreaker.
func (m *Match) resolvePool(group string, index int) (*misirlou.Beatmap, error) {
	group = strings.ToUpper(group)
	if group == "TB" {
		if index != 1 {
			return nil, fmt.Errorf("there is only one tiebreaker")
		}
		tb := m.Tournament.Tiebreaker
		return &tb, nil
	}
	for _, mods := range m.Tournament.PoolOrder {
		if mods.TournamentString() != group {
			continue
		}
		maps := m.Tournament.Pool[mods]
		if index < 1 || index > len(maps) {
			return nil, fmt.Errorf("no map %s%d in the pool", group, index)
		}
		b := maps[index-1]
		return &b, nil
	}
	return nil, fmt.Errorf("no %s group in the pool", group)
}

// poolSize is the number of non-tiebreaker maps.
func (m *Match) poolSize() int {
	n := 0
	for _, maps := range m.Tournament.Pool {
		n += len(maps)
	}
	return n
}

// mayActFor reports whether the user may commit bans/picks for the team:
// the captain when present in the room, any present member otherwise.
func (m *Match) mayActFor(t *TeamState, userID int) bool {
	if _, present := t.InMatch[userID]; !present {
		return false
	}
	if t.CaptainInMatch() {
		return userID == t.Captain
	}
	return true
}
