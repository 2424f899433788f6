package osu

// GameMode is the numeric game mode used by the platform APIs.
type GameMode int

const (
	ModeStandard GameMode = iota
	ModeTaiko
	ModeCatchTheBeat
	ModeMania
)

var modeDB = map[GameMode]string{
	ModeStandard:     "std",
	ModeTaiko:        "taiko",
	ModeCatchTheBeat: "ctb",
	ModeMania:        "mania",
}

var modeReadable = map[GameMode]string{
	ModeStandard:     "osu!standard",
	ModeTaiko:        "osu!taiko",
	ModeCatchTheBeat: "osu!catch",
	ModeMania:        "osu!mania",
}

// np tags as the osu! client writes them in /np actions. Standard has no tag.
var modeNP = map[string]GameMode{
	"Taiko":        ModeTaiko,
	"CatchTheBeat": ModeCatchTheBeat,
	"osu!mania":    ModeMania,
}

// DB returns the short form used by the score database (std/taiko/ctb/mania).
func (m GameMode) DB() string { return modeDB[m] }

func (m GameMode) String() string { return modeReadable[m] }

// GameModeFromNP maps the optional game-mode tag of a /np action to a
// GameMode. Unknown or empty tags mean standard.
func GameModeFromNP(tag string) GameMode {
	if m, ok := modeNP[tag]; ok {
		return m
	}
	return ModeStandard
}

// GameModeFromDB parses the short db form. Anything unknown is standard.
func GameModeFromDB(s string) GameMode {
	for m, db := range modeDB {
		if db == s {
			return m
		}
	}
	return ModeStandard
}
