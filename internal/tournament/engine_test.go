package tournament

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xnyo/fokabot/internal/bancho"
	"github.com/xnyo/fokabot/internal/events"
	"github.com/xnyo/fokabot/internal/misirlou"
	"github.com/xnyo/fokabot/internal/osu"
)

// fakeAPI records the presence API calls the engine makes.
type fakeAPI struct {
	mu        sync.Mutex
	nextMatch int
	created   []string
	kicked    []string
	moved     map[string]int
	teams     map[string]osu.Team
	alerts    []string
	online    map[int]*bancho.ConnectedClient
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextMatch: 100,
		moved:     make(map[string]int),
		teams:     make(map[string]osu.Team),
		online:    make(map[int]*bancho.ConnectedClient),
	}
}

func (f *fakeAPI) CreateMatch(ctx context.Context, name, password string, slots int, gameMode osu.GameMode, beatmap bancho.Beatmap) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMatch++
	f.created = append(f.created, name)
	return f.nextMatch, nil
}

func (f *fakeAPI) EditMatch(ctx context.Context, matchID int, teamType osu.TeamType, scoring osu.ScoringType) error {
	return nil
}
func (f *fakeAPI) Freeze(ctx context.Context, matchID int, enable bool) error { return nil }

func (f *fakeAPI) GetClient(ctx context.Context, userID int, gameOnly bool) (*bancho.ConnectedClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID], nil
}

func (f *fakeAPI) MatchKick(ctx context.Context, matchID int, apiIdentifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, apiIdentifier)
	return nil
}

func (f *fakeAPI) MoveUser(ctx context.Context, matchID int, apiIdentifier string, slot int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved[apiIdentifier] = slot
	return nil
}

func (f *fakeAPI) SetTeam(ctx context.Context, matchID int, apiIdentifier string, team osu.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teams[apiIdentifier] = team
	return nil
}

func (f *fakeAPI) Alert(ctx context.Context, apiIdentifier, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, apiIdentifier)
	return nil
}

type fakeLister struct {
	matches []*misirlou.Match
}

func (f *fakeLister) GetMatches(ctx context.Context) ([]*misirlou.Match, error) {
	return f.matches, nil
}

// sendRecorder captures outbound chat messages.
type sendRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (s *sendRecorder) send(message, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, target+"|"+message)
}

func (s *sendRecorder) contains(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func testMisirlouMatch() *misirlou.Match {
	return &misirlou.Match{
		ID:   7,
		When: time.Now(),
		Tournament: &misirlou.Tournament{
			ID:           1,
			Name:         "Test Cup",
			Abbreviation: "TC",
			TeamSize:     2,
			Pool: map[osu.Mod][]misirlou.Beatmap{
				osu.ModNoMod:  {{ID: 11, Name: "NoMod One"}, {ID: 12, Name: "NoMod Two"}},
				osu.ModHidden: {{ID: 21, Name: "Hidden One", Mods: osu.ModHidden}},
			},
			PoolOrder:  []osu.Mod{osu.ModNoMod, osu.ModHidden},
			Tiebreaker: misirlou.Beatmap{ID: 99, Name: "The Tiebreaker", Tiebreaker: true},
		},
		TeamA: &misirlou.Team{ID: 1, Name: "Reds", Members: []int{1, 2}, Captain: 1},
		TeamB: &misirlou.Team{ID: 2, Name: "Blues", Members: []int{3, 4}, Captain: 3},
	}
}

// newTestEngine builds an engine with one tracked match whose players are
// all present, in the given state.
func newTestEngine(t *testing.T, state State) (*Engine, *Match, *fakeAPI, *sendRecorder) {
	t.Helper()
	api := newFakeAPI()
	rec := &sendRecorder{}
	e := New(api, &fakeLister{}, events.New(nil), rec.send, nil)

	m := newMatch(testMisirlouMatch(), 101, "pw")
	m.State = state
	for _, id := range []int{1, 2} {
		m.TeamA.InMatch[id] = struct{}{}
	}
	for _, id := range []int{3, 4} {
		m.TeamB.InMatch[id] = struct{}{}
	}
	m.Usernames = map[int]string{1: "alice", 2: "bob", 3: "carol", 4: "dave"}
	e.matches[101] = m
	return e, m, api, rec
}

func TestRollRecordsOncePerTeam(t *testing.T) {
	e, m, _, rec := newTestEngine(t, StateRolling)
	ctx := context.Background()

	e.HandleRoll(ctx, 101, 1, 42)
	if m.TeamA.Roll == nil || *m.TeamA.Roll != 42 {
		t.Fatalf("team A roll = %v", m.TeamA.Roll)
	}

	// A second roll from the same team is not recorded.
	e.HandleRoll(ctx, 101, 2, 77)
	if *m.TeamA.Roll != 42 {
		t.Fatalf("team A roll overwritten: %d", *m.TeamA.Roll)
	}
	if !rec.contains("already rolled") {
		t.Error("missing already-rolled notice")
	}
}

func TestRollTieClearsBoth(t *testing.T) {
	e, m, _, rec := newTestEngine(t, StateRolling)
	ctx := context.Background()

	e.HandleRoll(ctx, 101, 1, 42)
	e.HandleRoll(ctx, 101, 3, 42)
	if m.TeamA.Roll != nil || m.TeamB.Roll != nil {
		t.Fatalf("rolls kept after tie: %v %v", m.TeamA.Roll, m.TeamB.Roll)
	}
	if !rec.contains("tie") {
		t.Error("missing tie notice")
	}
	if m.State != StateRolling {
		t.Errorf("state = %v, want rolling", m.State)
	}

	// Next distinct rolls decide the winner.
	e.HandleRoll(ctx, 101, 1, 42)
	e.HandleRoll(ctx, 101, 3, 17)
	if m.State != StateBanning {
		t.Errorf("state = %v, want banning", m.State)
	}
	if m.Picking != misirlou.SideA {
		t.Errorf("picking = %v, want side A (rolled 42 vs 17)", m.Picking)
	}
}

func TestRollIgnoredOutsideRollingState(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StateWaiting)
	e.HandleRoll(context.Background(), 101, 1, 42)
	if m.TeamA.Roll != nil {
		t.Error("roll recorded in waiting state")
	}
}

func TestBanFlowWithConfirmation(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StateBanning)
	m.Picking = misirlou.SideA
	a, b := 42, 17
	m.TeamA.Roll, m.TeamB.Roll = &a, &b
	ctx := context.Background()

	// Captain of side A proposes a ban; confirmation is requested.
	replies := e.HandleMapSelection(ctx, 101, 1, "NM", 1)
	if len(replies) == 0 || !strings.Contains(replies[0], "confirm") {
		t.Fatalf("replies = %v", replies)
	}
	if m.State != StateConfirming {
		t.Fatalf("state = %v", m.State)
	}

	// "no" clears the candidate and re-prompts.
	e.HandleConfirmation(ctx, 101, 1, false)
	if m.Candidate != nil || m.State != StateBanning {
		t.Fatalf("candidate = %v state = %v after no", m.Candidate, m.State)
	}

	// Propose again and confirm.
	e.HandleMapSelection(ctx, 101, 1, "NM", 1)
	replies = e.HandleConfirmation(ctx, 101, 1, true)
	if _, banned := m.Bans[11]; !banned {
		t.Fatal("ban not committed")
	}
	if len(replies) == 0 || !strings.Contains(replies[0], "banned") {
		t.Errorf("replies = %v", replies)
	}
	// The other side owns the second ban.
	if m.Picking != misirlou.SideB || m.State != StateBanning {
		t.Errorf("picking = %v state = %v", m.Picking, m.State)
	}
}

func TestBanIdempotence(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StateBanning)
	m.Picking = misirlou.SideA
	m.Bans[11] = struct{}{}
	m.Candidate = &misirlou.Beatmap{ID: 21}

	replies := e.HandleMapSelection(context.Background(), 101, 1, "NM", 1)
	if len(replies) == 0 || !strings.Contains(replies[0], "already banned") {
		t.Fatalf("replies = %v", replies)
	}
	if m.Candidate != nil {
		t.Error("candidate not cleared after re-ban attempt")
	}
}

func TestPickBannedMapRejected(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StatePicking)
	m.Picking = misirlou.SideA
	m.Bans[11] = struct{}{}
	m.Candidate = &misirlou.Beatmap{ID: 21}

	replies := e.HandleMapSelection(context.Background(), 101, 1, "NM", 1)
	if len(replies) == 0 || !strings.Contains(replies[0], "banned") {
		t.Fatalf("replies = %v", replies)
	}
	if m.Candidate != nil {
		t.Error("candidate not cleared")
	}
}

func TestPickCommitsWithoutConfirmation(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StatePicking)
	m.Picking = misirlou.SideB

	replies := e.HandleMapSelection(context.Background(), 101, 3, "HD", 1)
	if len(replies) == 0 || !strings.Contains(replies[0], "picked") {
		t.Fatalf("replies = %v", replies)
	}
	if m.State != StatePlaying {
		t.Errorf("state = %v, want playing", m.State)
	}
}

func TestOnlyCaptainCommitsWhenPresent(t *testing.T) {
	e, m, _, _ := newTestEngine(t, StateBanning)
	m.Picking = misirlou.SideA

	// Member 2 is not the captain and the captain is present: no effect.
	if replies := e.HandleMapSelection(context.Background(), 101, 2, "NM", 1); replies != nil {
		t.Fatalf("non-captain got replies: %v", replies)
	}

	// With the captain gone, any present member may act.
	delete(m.TeamA.InMatch, 1)
	replies := e.HandleMapSelection(context.Background(), 101, 2, "NM", 1)
	if len(replies) == 0 {
		t.Fatal("present member could not act without captain")
	}
}

func TestResolvePool(t *testing.T) {
	_, m, _, _ := newTestEngine(t, StateBanning)
	tests := []struct {
		group   string
		index   int
		wantID  int
		wantErr bool
	}{
		{"NM", 1, 11, false},
		{"nm", 2, 12, false},
		{"HD", 1, 21, false},
		{"TB", 1, 99, false},
		{"NM", 3, 0, true},
		{"DT", 1, 0, true},
		{"TB", 2, 0, true},
	}
	for _, tt := range tests {
		b, err := m.resolvePool(tt.group, tt.index)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolvePool(%s, %d): err = %v", tt.group, tt.index, err)
			continue
		}
		if err == nil && b.ID != tt.wantID {
			t.Errorf("resolvePool(%s, %d) = %d, want %d", tt.group, tt.index, b.ID, tt.wantID)
		}
	}
}

func TestUserJoinedClassification(t *testing.T) {
	api := newFakeAPI()
	rec := &sendRecorder{}
	e := New(api, &fakeLister{}, events.New(nil), rec.send, nil)
	m := newMatch(testMisirlouMatch(), 101, "pw")
	e.matches[101] = m
	ctx := context.Background()

	openSlots := func(n int) []any {
		slots := make([]any, n)
		for i := range slots {
			slots[i] = map[string]any{"status": float64(osu.SlotOpen)}
		}
		return slots
	}
	join := func(userID int, username, identifier string, privileges osu.Privileges) {
		e.HandleUserJoined(ctx, events.Payload{
			"match": map[string]any{"id": float64(101), "slots": openSlots(5)},
			"user": map[string]any{
				"user_id":        float64(userID),
				"username":       username,
				"api_identifier": identifier,
				"privileges":     float64(privileges),
			},
		})
	}

	// Team member lands in their half with the right colour.
	join(3, "carol", "c3", osu.PrivilegeUserAllowed)
	if api.teams["c3"] != osu.TeamRed {
		t.Errorf("team for c3 = %v, want red (side B)", api.teams["c3"])
	}
	if api.moved["c3"] != 2 {
		t.Errorf("slot for c3 = %d, want 2 (start of B half)", api.moved["c3"])
	}
	if _, ok := m.TeamB.InMatch[3]; !ok {
		t.Error("presence not recorded")
	}

	// Outsider without staff bit gets kicked.
	join(50, "randy", "r50", osu.PrivilegeUserAllowed)
	if len(api.kicked) != 1 || api.kicked[0] != "r50" {
		t.Errorf("kicked = %v", api.kicked)
	}

	// Staff lands in the last free slot.
	join(60, "ref", "s60", osu.PrivilegeUserAllowed|osu.PrivilegeUserTournamentStaff)
	if api.moved["s60"] != 4 {
		t.Errorf("staff slot = %d, want 4", api.moved["s60"])
	}
}

func TestFullTeamsTriggerRolling(t *testing.T) {
	api := newFakeAPI()
	rec := &sendRecorder{}
	bus := events.New(nil)
	e := New(api, &fakeLister{}, bus, rec.send, nil)
	m := newMatch(testMisirlouMatch(), 101, "pw")
	e.matches[101] = m
	bus.On(events.TournamentMatchFull, func(ctx context.Context, p events.Payload) {
		e.HandleMatchFull(ctx, p.Int("match_id"))
	})
	ctx := context.Background()

	slots := make([]any, 5)
	for i := range slots {
		slots[i] = map[string]any{"status": float64(osu.SlotOpen)}
	}
	for _, u := range []struct {
		id   int
		name string
	}{{1, "alice"}, {2, "bob"}, {3, "carol"}, {4, "dave"}} {
		e.HandleUserJoined(ctx, events.Payload{
			"match": map[string]any{"id": float64(101), "slots": slots},
			"user": map[string]any{
				"user_id":        float64(u.id),
				"username":       u.name,
				"api_identifier": u.name,
				"privileges":     float64(osu.PrivilegeUserAllowed),
			},
		})
	}
	if m.State != StateRolling {
		t.Fatalf("state = %v, want rolling", m.State)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !rec.contains("please roll") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !rec.contains("please roll") {
		t.Error("missing roll prompt after teams filled")
	}
}

func TestCreateMatchesSkipsKnown(t *testing.T) {
	api := newFakeAPI()
	rec := &sendRecorder{}
	lister := &fakeLister{matches: []*misirlou.Match{testMisirlouMatch()}}
	e := New(api, lister, events.New(nil), rec.send, nil)
	api.online[1] = &bancho.ConnectedClient{UserID: 1, Username: "alice", APIIdentifier: "a1"}
	ctx := context.Background()

	created, err := e.CreateMatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %v", created)
	}
	if len(api.created) != 1 || !strings.Contains(api.created[0], "TC: (Reds) vs (Blues)") {
		t.Errorf("room name = %v", api.created)
	}
	if !rec.contains("osump://") {
		t.Error("online member not invited")
	}

	// Second run: the match is known, nothing new is created.
	created, err = e.CreateMatches(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 0 {
		t.Errorf("second run created %v", created)
	}
}

func TestPlayCompletionAlternatesPick(t *testing.T) {
	e, m, _, rec := newTestEngine(t, StatePlaying)
	m.Picking = misirlou.SideA
	a, b := 42, 17
	m.TeamA.Roll, m.TeamB.Roll = &a, &b
	ctx := context.Background()

	update := func(playing bool) {
		status := float64(osu.SlotNotReady)
		if playing {
			status = float64(osu.SlotPlaying)
		}
		e.HandleMatchUpdate(ctx, events.Payload{
			"id": float64(101),
			"slots": []any{
				map[string]any{"status": status, "user": map[string]any{"user_id": float64(1), "api_identifier": "a"}},
				map[string]any{"status": status, "user": map[string]any{"user_id": float64(2), "api_identifier": "b"}},
				map[string]any{"status": status, "user": map[string]any{"user_id": float64(3), "api_identifier": "c"}},
				map[string]any{"status": status, "user": map[string]any{"user_id": float64(4), "api_identifier": "d"}},
			},
		})
	}

	update(true)  // the play starts
	update(false) // and finishes
	if m.State != StatePicking {
		t.Fatalf("state = %v, want picking", m.State)
	}
	if m.Picking != misirlou.SideB {
		t.Errorf("picking = %v, want side B", m.Picking)
	}
	if !rec.contains("please type one beatmap you want to pick") {
		t.Error("missing next-pick prompt")
	}
}
