package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/misirlou"
	"github.com/xnyo/fokabot/internal/osu"
)

// placeholder beatmap pinned on freshly created rooms until the first pick.
var lobbyBeatmap = bancho.Beatmap{
	ID:       2116202,
	MD5:      "06b536749d5a59536983854be90504ee",
	SongName: "Tournament lobby",
}

// API is the slice of the presence/match API the engine drives.
// *bancho.Client implements it.
type API interface {
	CreateMatch(ctx context.Context, name, password string, slots int, gameMode osu.GameMode, beatmap bancho.Beatmap) (int, error)
	EditMatch(ctx context.Context, matchID int, teamType osu.TeamType, scoring osu.ScoringType) error
	Freeze(ctx context.Context, matchID int, enable bool) error
	GetClient(ctx context.Context, userID int, gameOnly bool) (*bancho.ConnectedClient, error)
	MatchKick(ctx context.Context, matchID int, apiIdentifier string) error
	MoveUser(ctx context.Context, matchID int, apiIdentifier string, slot int) error
	SetTeam(ctx context.Context, matchID int, apiIdentifier string, team osu.Team) error
	Alert(ctx context.Context, apiIdentifier, message string) error
}

// MatchLister is the slice of the tournament API the engine consumes.
type MatchLister interface {
	GetMatches(ctx context.Context) ([]*misirlou.Match, error)
}

// SendFunc delivers a chat message to a channel or user.
type SendFunc func(message, target string)

// Engine owns the registry of live tournament matches and advances each
// one's state machine from incoming events.
type Engine struct {
	logger   *slog.Logger
	api      API
	lister   MatchLister
	bus      *events.Bus
	send     SendFunc

	mu      sync.Mutex
	matches map[int]*Match // keyed by bancho match id
}

// New creates an engine.
func New(api API, lister MatchLister, bus *events.Bus, send SendFunc, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger,
		api:      api,
		lister:   lister,
		bus:      bus,
		send:     send,
		matches:  make(map[int]*Match),
	}
}

// Get returns the tracked match for a room id, or nil.
func (e *Engine) Get(banchoMatchID int) *Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matches[banchoMatchID]
}

// Tracks reports whether the room belongs to a tracked tournament match.
func (e *Engine) Tracks(banchoMatchID int) bool { return e.Get(banchoMatchID) != nil }

func (e *Engine) tracked(misirlouID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.matches {
		if m.ID == misirlouID {
			return true
		}
	}
	return false
}

// CreateMatches fetches the pending matches from the tournament API and
// creates a room for each one not seen before, inviting every member who is
// online. It returns the bancho ids of the rooms it created.
func (e *Engine) CreateMatches(ctx context.Context) ([]int, error) {
	pending, err := e.lister.GetMatches(ctx)
	if err != nil {
		return nil, err
	}
	var created []int
	for _, pm := range pending {
		if e.tracked(pm.ID) {
			continue
		}
		m, err := e.createMatch(ctx, pm)
		if err != nil {
			e.logger.Error("cannot create tournament match", "misirlou_id", pm.ID, "error", err)
			continue
		}
		created = append(created, m.BanchoMatchID)
	}
	return created, nil
}

func (e *Engine) createMatch(ctx context.Context, pm *misirlou.Match) (*Match, error) {
	password := osu.RandomSecureString(8)
	name := fmt.Sprintf("%s: (%s) vs (%s)", pm.Tournament.Abbreviation, pm.TeamA.Name, pm.TeamB.Name)
	// One extra slot for a human referee, just in case.
	slots := pm.Tournament.TeamSize*2 + 1
	banchoID, err := e.api.CreateMatch(ctx, name, password, slots, osu.GameMode(pm.Tournament.GameMode), lobbyBeatmap)
	if err != nil {
		return nil, err
	}
	if err := e.api.EditMatch(ctx, banchoID, osu.TeamTypeTeamVS, osu.ScoringScoreV2); err != nil {
		return nil, err
	}
	if err := e.api.Freeze(ctx, banchoID, true); err != nil {
		return nil, err
	}

	m := newMatch(pm, banchoID, password)
	e.mu.Lock()
	e.matches[banchoID] = m
	e.mu.Unlock()

	for _, member := range append(append([]int{}, pm.TeamA.Members...), pm.TeamB.Members...) {
		client, err := e.api.GetClient(ctx, member, true)
		if err != nil || client == nil {
			continue
		}
		e.send(fmt.Sprintf(
			"Your match on tournament %s is ready! \"[osump://%d/%s Click here to join it]\"",
			pm.Tournament.Name, banchoID, password,
		), client.Username)
	}

	e.logger.Info("tournament match created",
		"misirlou_id", pm.ID,
		"bancho_id", banchoID,
		"tournament", pm.Tournament.Abbreviation,
	)
	return m, nil
}

// Forget drops a tracked match (room disposed or match over).
func (e *Engine) Forget(banchoMatchID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.matches, banchoMatchID)
}

// HandleUserJoined classifies a user who entered a tracked room: assigned
// players go to their team's half, tournament staff to the last free slot,
// anyone else is kicked.
func (e *Engine) HandleUserJoined(ctx context.Context, p events.Payload) {
	matchData := p.Map("match")
	user := p.Map("user")
	if matchData == nil || user == nil {
		return
	}
	m := e.Get(matchData.Int("id"))
	if m == nil {
		return
	}
	slots := matchData.Slice("slots")
	userID := user.Int("user_id")
	username := user.String("username")
	apiIdentifier := user.String("api_identifier")

	m.mu.Lock()
	defer m.mu.Unlock()

	team := m.UserTeam(userID)
	if team == nil {
		// Outsiders are tolerated only when they are tournament staff.
		if !osu.Privileges(user.Int64("privileges")).Has(osu.PrivilegeUserTournamentStaff) {
			_ = e.api.MatchKick(ctx, m.BanchoMatchID, apiIdentifier)
			_ = e.api.Alert(ctx, apiIdentifier, "This is a tournament match and you are not allowed to be in there.")
			return
		}
		if idx, ok := lastFreeSlot(slots); ok {
			_ = e.api.MoveUser(ctx, m.BanchoMatchID, apiIdentifier, idx)
		} else {
			e.logger.Warn("no free slot for tournament staff", "match", m.BanchoMatchID)
		}
		return
	}

	if len(team.InMatch) >= m.Tournament.TeamSize {
		if _, already := team.InMatch[userID]; !already {
			_ = e.api.MatchKick(ctx, m.BanchoMatchID, apiIdentifier)
			e.send("Your team is full, please ask one of your teammates "+
				"to leave the match if you want to play instead.", username)
			return
		}
	}

	// Team A gets the first half of the slots, team B the second.
	first := 0
	if team.Side == misirlou.SideB {
		first = m.Tournament.TeamSize
	}
	if idx, ok := freeSlotInRange(slots, first, m.Tournament.TeamSize, apiIdentifier); ok {
		if currentSlot(slots, apiIdentifier) != idx {
			_ = e.api.MoveUser(ctx, m.BanchoMatchID, apiIdentifier, idx)
		}
	}
	_ = e.api.SetTeam(ctx, m.BanchoMatchID, apiIdentifier, team.Side.BanchoTeam())

	team.InMatch[userID] = struct{}{}
	m.Usernames[userID] = username

	_ = e.api.Alert(ctx, apiIdentifier, fmt.Sprintf(
		"@@@ %s @@@\n\nWelcome to your tournament match!\n"+
			"The match will begin as soon as all the players show up. "+
			"Please be ready to start playing and don't go afk. The match is managed by an automated bot. "+
			"If you need any kind of assistance you can call a human referee with the command '!t humanref'.\n\n"+
			"Have fun and good luck!",
		m.Tournament.Name,
	))

	if m.State == StateMissingPlayers {
		m.State = m.prevState
		e.send("All players are back, the match can continue.", m.ChatChannel())
	}

	if m.State == StateWaiting &&
		len(m.TeamA.InMatch) == m.Tournament.TeamSize &&
		len(m.TeamB.InMatch) == m.Tournament.TeamSize {
		m.State = StateRolling
		e.bus.Trigger(ctx, events.TournamentMatchFull, events.Payload{"match_id": m.BanchoMatchID})
	}
}

// HandleMatchFull greets the room and prompts both teams to roll.
func (e *Engine) HandleMatchFull(ctx context.Context, banchoMatchID int) {
	m := e.Get(banchoMatchID)
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range []string{
		fmt.Sprintf("Welcome to your %s tournament match! Please be ready to start playing and don't go afk.", m.Tournament.Name),
		"I am the referee bot and I will guide you through your match.",
		"If you need any assistance with the match, you can call a human referee with the command '!t humanref'",
		"All players are present, we can now roll to determine who will pick their first ban.",
	} {
		e.send(msg, m.ChatChannel())
	}
	prompt := m.CaptainOrTeamMembers(m.TeamA) + " - " + m.CaptainOrTeamMembers(m.TeamB)
	e.send(prompt+", any of you, please roll with the !roll command.", m.ChatChannel())
}

// slot scanning helpers over the raw match_update payload.

func slotStatus(s any) osu.SlotStatus {
	m, _ := s.(map[string]any)
	return osu.SlotStatus(events.Payload(m).Int("status"))
}

func slotUserID(s any) int {
	m, _ := s.(map[string]any)
	user := events.Payload(m).Map("user")
	if user == nil {
		return 0
	}
	return user.Int("user_id")
}

func slotUserIdentifier(s any) string {
	m, _ := s.(map[string]any)
	user := events.Payload(m).Map("user")
	if user == nil {
		return ""
	}
	return user.String("api_identifier")
}

func currentSlot(slots []any, apiIdentifier string) int {
	for i, s := range slots {
		if slotUserIdentifier(s) == apiIdentifier {
			return i
		}
	}
	return -1
}

func freeSlotInRange(slots []any, first, size int, apiIdentifier string) (int, bool) {
	for i := first; i < first+size && i < len(slots); i++ {
		if slotStatus(slots[i]).Has(osu.SlotOpen) || slotUserIdentifier(slots[i]) == apiIdentifier {
			return i, true
		}
	}
	return 0, false
}

func lastFreeSlot(slots []any) (int, bool) {
	for i := len(slots) - 1; i >= 0; i-- {
		if slotStatus(slots[i]).Has(osu.SlotOpen) {
			return i, true
		}
	}
	return 0, false
}
