package osu

import "strings"

// Mod is the bitmask of gameplay modifiers.
type Mod int64

const (
	ModNoMod       Mod = 0
	ModNoFail      Mod = 1
	ModEasy        Mod = 2
	ModTouchscreen Mod = 4
	ModHidden      Mod = 8
	ModHardRock    Mod = 16
	ModSuddenDeath Mod = 32
	ModDoubleTime  Mod = 64
	ModRelax       Mod = 128
	ModHalfTime    Mod = 256
	ModNightcore   Mod = 512
	ModFlashlight  Mod = 1024
	ModAutoplay    Mod = 2048
	ModSpunOut     Mod = 4096
	ModAutopilot   Mod = 8192
	ModPerfect     Mod = 16384
	ModKey4        Mod = 32768
	ModKey5        Mod = 65536
	ModKey6        Mod = 131072
	ModKey7        Mod = 262144
	ModKey8        Mod = 524288
	ModFadeIn      Mod = 1048576
	ModRandom      Mod = 2097152
	ModLastMod     Mod = 4194304
	ModKey9        Mod = 16777216
	ModKeyCoop     Mod = 33554432
	ModKey1        Mod = 67108864
	ModKey3        Mod = 134217728
	ModKey2        Mod = 268435456
	ModScoreV2     Mod = 536870912

	// Server-side only, marks free-mod pool entries.
	ModFreeMods Mod = 1073741824
)

// ordered list so string renderings are deterministic.
var modOrder = []Mod{
	ModNoFail, ModEasy, ModHidden, ModHardRock, ModSuddenDeath, ModDoubleTime,
	ModRelax, ModHalfTime, ModFlashlight, ModSpunOut, ModAutopilot, ModPerfect,
	ModKey4, ModKey5, ModKey6, ModKey7, ModKey8, ModFadeIn, ModKey9,
	ModKey1, ModKey3, ModKey2,
}

var modAcronyms = map[Mod]string{
	ModNoFail: "NF", ModEasy: "EZ", ModHidden: "HD", ModHardRock: "HR",
	ModSuddenDeath: "SD", ModDoubleTime: "DT", ModRelax: "RX",
	ModHalfTime: "HT", ModFlashlight: "FL", ModSpunOut: "SO",
	ModAutopilot: "AP", ModPerfect: "PF",
	ModKey4: "4K", ModKey5: "5K", ModKey6: "6K", ModKey7: "7K", ModKey8: "8K",
	ModFadeIn: "FI", ModKey9: "9K", ModKey1: "1K", ModKey3: "3K", ModKey2: "2K",
}

// acronym → mod, for parsing short strings like "HDDT".
var modByAcronym = func() map[string]Mod {
	m := make(map[string]Mod, len(modAcronyms))
	for k, v := range modAcronyms {
		m[v] = k
	}
	return m
}()

// /np long names as the client writes them. Nightcore implies DoubleTime.
var modNP = map[string]Mod{
	"Easy": ModEasy, "NoFail": ModNoFail, "Hidden": ModHidden,
	"HardRock": ModHardRock, "Nightcore": ModDoubleTime,
	"DoubleTime": ModDoubleTime, "HalfTime": ModHalfTime,
	"Flashlight": ModFlashlight, "SpunOut": ModSpunOut,
}

func (m Mod) render(nomod string) string {
	if m == ModNoMod {
		return nomod
	}
	var b strings.Builder
	for _, x := range modOrder {
		if m&x != 0 {
			b.WriteString(modAcronyms[x])
		}
	}
	if b.Len() == 0 {
		return nomod
	}
	return b.String()
}

// String renders the mod combination as concatenated acronyms ("HDDT"), or
// "NOMOD" for the empty mask.
func (m Mod) String() string { return m.render("NOMOD") }

// TournamentString renders the combination the way tournament pools label
// groups: "NM" for no mod, "FM" (plus any forced mods) for free-mod entries.
func (m Mod) TournamentString() string {
	if m&ModFreeMods != 0 {
		rest := m.Normalized()
		if rest == ModNoMod {
			return "FM"
		}
		return "FM" + rest.render("")
	}
	return m.render("NM")
}

// Normalized strips the server-side free-mod marker.
func (m Mod) Normalized() Mod { return m &^ ModFreeMods }

// ModsFromNP parses the mods segment of a /np action, e.g.
// " +HardRock +DoubleTime". Unknown names are ignored.
func ModsFromNP(s string) Mod {
	var m Mod
	for _, part := range strings.Fields(s) {
		m |= modNP[strings.TrimLeft(part, "+-")]
	}
	return m
}

// ModsFromShort parses a concatenated acronym string like "hddthr",
// case-insensitive, two characters per mod. Unknown pairs are ignored.
func ModsFromShort(s string) Mod {
	s = strings.ToUpper(strings.TrimSpace(s))
	var m Mod
	for i := 0; i+2 <= len(s); i += 2 {
		m |= modByAcronym[s[i:i+2]]
	}
	return m
}

// ModsFromList combines an iterable of acronyms (["HD", "DT"]),
// case-insensitive. "relax" is accepted as a long form for RX.
func ModsFromList(parts []string) Mod {
	var m Mod
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "RELAX" {
			m |= ModRelax
			continue
		}
		m |= modByAcronym[p]
	}
	return m
}
