package osu

import "testing"

func TestPrivilegesHas(t *testing.T) {
	tests := []struct {
		name     string
		have     Privileges
		required Privileges
		want     bool
	}{
		{"exact", PrivilegeAdminSendAlerts, PrivilegeAdminSendAlerts, true},
		{"superset", PrivilegeUserAllowed | PrivilegeAdminChatMod, PrivilegeAdminChatMod, true},
		{"missing", PrivilegeUserAllowed, PrivilegeAdminSendAlerts, false},
		{"partial", PrivilegeUserPublic, PrivilegeUserAllowed, false},
		{"none-required", PrivilegeUserNormal, PrivilegeNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.have.Has(tt.required); got != tt.want {
				t.Errorf("Has(%b, %b) = %v, want %v", tt.have, tt.required, got, tt.want)
			}
		})
	}
}

func TestModString(t *testing.T) {
	tests := []struct {
		mods Mod
		want string
	}{
		{ModNoMod, "NOMOD"},
		{ModHidden | ModDoubleTime, "HDDT"},
		{ModHidden | ModHardRock | ModDoubleTime, "HDHRDT"},
		{ModNightcore, "NOMOD"}, // nightcore alone has no acronym
	}
	for _, tt := range tests {
		if got := tt.mods.String(); got != tt.want {
			t.Errorf("Mod(%d).String() = %q, want %q", tt.mods, got, tt.want)
		}
	}
}

func TestModTournamentString(t *testing.T) {
	tests := []struct {
		mods Mod
		want string
	}{
		{ModNoMod, "NM"},
		{ModHidden, "HD"},
		{ModFreeMods, "FM"},
		{ModFreeMods | ModHidden, "FMHD"},
	}
	for _, tt := range tests {
		if got := tt.mods.TournamentString(); got != tt.want {
			t.Errorf("Mod(%d).TournamentString() = %q, want %q", tt.mods, got, tt.want)
		}
	}
}

func TestModsFromNP(t *testing.T) {
	tests := []struct {
		in   string
		want Mod
	}{
		{"", ModNoMod},
		{" +HardRock +DoubleTime", ModHardRock | ModDoubleTime},
		{" +Nightcore", ModDoubleTime},
		{" +Hidden -SomethingUnknown", ModHidden},
	}
	for _, tt := range tests {
		if got := ModsFromNP(tt.in); got != tt.want {
			t.Errorf("ModsFromNP(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestModsFromShort(t *testing.T) {
	tests := []struct {
		in   string
		want Mod
	}{
		{"HDDT", ModHidden | ModDoubleTime},
		{"hdhr", ModHidden | ModHardRock},
		{"", ModNoMod},
		{"zz", ModNoMod},
	}
	for _, tt := range tests {
		if got := ModsFromShort(tt.in); got != tt.want {
			t.Errorf("ModsFromShort(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGameModeFromNP(t *testing.T) {
	if got := GameModeFromNP("Taiko"); got != ModeTaiko {
		t.Errorf("GameModeFromNP(Taiko) = %v", got)
	}
	if got := GameModeFromNP(""); got != ModeStandard {
		t.Errorf("GameModeFromNP(empty) = %v", got)
	}
}

func TestGameModeDBRoundTrip(t *testing.T) {
	for _, m := range []GameMode{ModeStandard, ModeTaiko, ModeCatchTheBeat, ModeMania} {
		if got := GameModeFromDB(m.DB()); got != m {
			t.Errorf("GameModeFromDB(%q) = %v, want %v", m.DB(), got, m)
		}
	}
}

func TestSafeUsername(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Some User", "some_user"},
		{"  Trimmed ", "trimmed"},
		{"lower", "lower"},
	}
	for _, tt := range tests {
		if got := SafeUsername(tt.in); got != tt.want {
			t.Errorf("SafeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRandomSecureString(t *testing.T) {
	s := RandomSecureString(8)
	if len(s) != 8 {
		t.Fatalf("len = %d, want 8", len(s))
	}
	if s == RandomSecureString(8) {
		t.Error("two generated strings are identical")
	}
}

func TestParseSilenceUnit(t *testing.T) {
	if _, err := ParseSilenceUnit("x"); err == nil {
		t.Error("expected error for invalid unit")
	}
	u, err := ParseSilenceUnit("h")
	if err != nil {
		t.Fatal(err)
	}
	if u.Seconds() != 3600 {
		t.Errorf("hours = %d seconds", u.Seconds())
	}
}
