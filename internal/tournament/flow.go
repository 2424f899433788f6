package tournament

import (
	"context"
	"fmt"
	"strings"

	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/osu"
)

// HandleRoll integrates with the global roll command: when a roll happens in
// a tracked room during the rolling phase, the value is recorded for the
// roller's team. Each team rolls exactly once; a tie clears both rolls and
// both teams are asked to roll again.
func (e *Engine) HandleRoll(ctx context.Context, banchoMatchID, userID, value int) {
	m := e.Get(banchoMatchID)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State != StateRolling {
		return
	}
	team := m.UserTeam(userID)
	if team == nil {
		return
	}
	if _, present := team.InMatch[userID]; !present {
		return
	}
	if team.Roll != nil {
		e.send(fmt.Sprintf("%s, your team has already rolled (%d).", m.Usernames[userID], *team.Roll), m.ChatChannel())
		return
	}

	other := m.Side(team.Side.Other())
	if other.Roll != nil && *other.Roll == value {
		// Tie: neither roll is kept.
		other.Roll = nil
		e.send("It's a tie! Please roll again.", m.ChatChannel())
		return
	}

	v := value
	team.Roll = &v

	if !m.bothRolled() {
		e.bus.Trigger(ctx, events.TournamentFirstRolled, events.Payload{"match_id": m.BanchoMatchID})
		return
	}

	winner := m.rollWinner()
	m.Picking = winner.Side
	m.State = StateBanning
	e.bus.Trigger(ctx, events.TournamentBothRolled, events.Payload{"match_id": m.BanchoMatchID})
}

// HandleFirstRolled prompts the team that has not rolled yet.
func (e *Engine) HandleFirstRolled(banchoMatchID int) {
	m := e.Get(banchoMatchID)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	other := m.TeamA
	if m.TeamA.Roll != nil {
		other = m.TeamB
	}
	e.send(fmt.Sprintf("%s, please roll.", m.CaptainOrTeamName(other)), m.ChatChannel())
}

// HandleBothRolled announces the winner, shows the pool and asks for the
// first ban.
func (e *Engine) HandleBothRolled(banchoMatchID int) {
	m := e.Get(banchoMatchID)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	winner := m.Side(m.Picking)
	e.send(fmt.Sprintf("%s won the roll!", m.CaptainOrTeamName(winner)), m.ChatChannel())
	e.send("Please pick your first ban. Here's the pool:", m.ChatChannel())
	e.sendPoolLocked(m)
	e.askBeatmapLocked(m, winner, OpBan, true)
}

func (e *Engine) sendPoolLocked(m *Match) {
	for _, mods := range m.Tournament.PoolOrder {
		for i, beatmap := range m.Tournament.Pool[mods] {
			e.send(fmt.Sprintf("► %s%d: %s", mods.TournamentString(), i+1, beatmap.Name), m.ChatChannel())
		}
	}
	e.send(fmt.Sprintf("► TB1: %s", m.Tournament.Tiebreaker.Name), m.ChatChannel())
}

func (e *Engine) askBeatmapLocked(m *Match, team *TeamState, op Operation, confirmation bool) {
	who := m.CaptainOrTeamMembers(team)
	if !team.CaptainInMatch() {
		who += ", any of you"
	}
	not := " "
	if !confirmation {
		not = " not "
	}
	e.send(fmt.Sprintf(
		"%s, please type one beatmap you want to %s (eg: NM1, HD2, etc). I will%sask for confirmation.",
		who, op, not,
	), m.ChatChannel())
}

// HandleMapSelection resolves a "<group><index>" message from a tracked room
// into a ban or pick candidate. It returns the reply lines for the room.
func (e *Engine) HandleMapSelection(ctx context.Context, banchoMatchID, userID int, group string, index int) []string {
	m := e.Get(banchoMatchID)
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State != StateBanning && m.State != StatePicking {
		return nil
	}
	team := m.Side(m.Picking)
	if !m.mayActFor(team, userID) {
		return nil
	}

	op := OpPick
	if m.State == StateBanning {
		op = OpBan
	}
	beatmap, err := m.resolvePool(group, index)
	if err != nil {
		return []string{upperFirst(err.Error())}
	}
	if _, banned := m.Bans[beatmap.ID]; banned {
		m.Candidate = nil
		if op == OpBan {
			return []string{fmt.Sprintf("%s is already banned.", beatmap.Name)}
		}
		return []string{fmt.Sprintf("%s has been banned, please pick another map.", beatmap.Name)}
	}
	if op == OpPick && strings.ToUpper(group) == "TB" {
		return []string{"The tiebreaker is played only when the match is tied."}
	}

	m.Candidate = beatmap
	m.CandidateOp = op

	if op == OpBan {
		// Bans require confirmation.
		m.prevState = m.State
		m.State = StateConfirming
		return []string{fmt.Sprintf(
			"You are about to ban %s. Please type 'yes' to confirm or 'no' to change your mind.",
			beatmap.Name,
		)}
	}
	return e.commitCandidateLocked(ctx, m)
}

// HandleConfirmation processes a yes/no reply in the confirming state.
func (e *Engine) HandleConfirmation(ctx context.Context, banchoMatchID, userID int, yes bool) []string {
	m := e.Get(banchoMatchID)
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State != StateConfirming || m.Candidate == nil {
		return nil
	}
	team := m.Side(m.Picking)
	if !m.mayActFor(team, userID) {
		return nil
	}
	if !yes {
		m.Candidate = nil
		m.State = m.prevState
		e.askBeatmapLocked(m, team, m.CandidateOp, true)
		return nil
	}
	m.State = m.prevState
	return e.commitCandidateLocked(ctx, m)
}

// commitCandidateLocked applies the pending candidate and advances the flow:
// winner ban → loser ban → winner pick → play → alternating picks.
func (e *Engine) commitCandidateLocked(ctx context.Context, m *Match) []string {
	beatmap := m.Candidate
	m.Candidate = nil

	if m.CandidateOp == OpBan {
		m.Bans[beatmap.ID] = struct{}{}
		m.bansDone++
		replies := []string{fmt.Sprintf("%s has been banned by %s.", beatmap.Name, m.Side(m.Picking).Name)}
		if m.bansDone < 2 {
			m.Picking = m.Picking.Other()
			m.State = StateBanning
			e.askBeatmapLocked(m, m.Side(m.Picking), OpBan, true)
			return replies
		}
		// Bans over; the roll winner picks first.
		m.Picking = m.rollWinner().Side
		m.State = StatePicking
		e.askBeatmapLocked(m, m.Side(m.Picking), OpPick, false)
		return replies
	}

	m.State = StatePlaying
	m.sawPlaying = false
	return []string{
		fmt.Sprintf("%s picked %s.", m.Side(m.Picking).Name, beatmap.Name),
		"Please get ready, the map is about to start.",
	}
}

// HandleMatchUpdate tracks play completion and missing players from the
// room's match_update events.
func (e *Engine) HandleMatchUpdate(ctx context.Context, p events.Payload) {
	m := e.Get(p.Int("id"))
	if m == nil {
		return
	}
	slots := p.Slice("slots")

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.State {
	case StatePlaying:
		playing := false
		for _, s := range slots {
			if slotStatus(s).Has(osu.SlotPlaying) {
				playing = true
				break
			}
		}
		if playing {
			m.sawPlaying = true
			return
		}
		if !m.sawPlaying {
			return
		}
		// The play finished: alternate the pick or wrap up.
		m.playsDone++
		if m.playsDone >= m.poolSize()-len(m.Bans) {
			m.State = StateEnd
			e.send("That was the last map, the match is over. Thank you all for playing!", m.ChatChannel())
			return
		}
		m.Picking = m.Picking.Other()
		m.State = StatePicking
		e.askBeatmapLocked(m, m.Side(m.Picking), OpPick, false)

	case StateRolling, StateBanning, StatePicking, StateConfirming:
		// A registered player vanishing from the slots suspends the flow.
		present := make(map[int]bool)
		for _, s := range slots {
			if id := slotUserID(s); id != 0 {
				present[id] = true
			}
		}
		missing := e.missingPlayersLocked(m, present)
		if len(missing) > 0 {
			m.prevState = m.State
			m.State = StateMissingPlayers
			e.send(fmt.Sprintf(
				"Waiting for %s to come back before the match can continue.",
				strings.Join(missing, ", "),
			), m.ChatChannel())
		}
	}
}

// missingPlayersLocked drops departed players from the team rosters and
// returns their usernames.
func (e *Engine) missingPlayersLocked(m *Match, present map[int]bool) []string {
	var missing []string
	for _, team := range []*TeamState{m.TeamA, m.TeamB} {
		for id := range team.InMatch {
			if !present[id] {
				delete(team.InMatch, id)
				missing = append(missing, m.Usernames[id])
			}
		}
	}
	return missing
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
