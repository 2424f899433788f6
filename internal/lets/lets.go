// Package lets is the client for the score/PP service. It computes pp
// values for a beatmap + mode + mods combination, either at the standard
// accuracy steps (100/99/98/95%) or at one specific accuracy.
package lets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/xnyo/fokabot/internal/backend"
	"github.com/xnyo/fokabot/internal/osu"
)

// Client talks to the score service.
type Client struct {
	backend.Client
}

// New creates a score-service client rooted at base (e.g.
// "https://ripple.moe/letsapi").
func New(base string, logger *slog.Logger) *Client {
	return &Client{Client: backend.NewClient(base, "", "", logger)}
}

// PPResponse is the pp computation result. PP holds either the four
// standard steps (100, 99, 98, 95) or a single value when a specific
// accuracy was requested.
type PPResponse struct {
	SongName string
	PP       []float64
	Length   int
	Stars    float64
	AR       float64
	BPM      int
	Mods     osu.Mod
	Accuracy float64 // 0 when the standard steps were requested
	GameMode osu.GameMode
}

// ModdedAR returns the approach rate adjusted for EZ/HR.
func (r *PPResponse) ModdedAR() float64 {
	switch {
	case r.Mods&osu.ModEasy != 0:
		return max(0, r.AR/2)
	case r.Mods&osu.ModHardRock != 0:
		return min(10, r.AR*1.4)
	}
	return r.AR
}

// String renders the chat reply for this response: song, mode, mods, the pp
// figures, bpm, AR (with the modded value when it differs) and stars.
func (r *PPResponse) String() string {
	var b strings.Builder
	b.WriteString(r.SongName)
	fmt.Fprintf(&b, " <%s>", r.GameMode)
	if r.Mods != osu.ModNoMod {
		fmt.Fprintf(&b, "+%s", r.Mods)
	}
	b.WriteString("  ")
	if r.Accuracy > 0 && len(r.PP) == 1 {
		fmt.Fprintf(&b, "%.2f%%: %.2fpp", r.Accuracy, r.PP[0])
	} else {
		steps := []int{100, 99, 98, 95}
		parts := make([]string, 0, len(r.PP))
		for i, pp := range r.PP {
			if i >= len(steps) {
				break
			}
			parts = append(parts, fmt.Sprintf("%d%%: %.2fpp", steps[i], pp))
		}
		b.WriteString(strings.Join(parts, " | "))
	}
	fmt.Fprintf(&b, " | ♪ %d", r.BPM)
	fmt.Fprintf(&b, " | AR %g", r.AR)
	if modded := r.ModdedAR(); modded != r.AR {
		fmt.Fprintf(&b, " (%.2f)", modded)
	}
	fmt.Fprintf(&b, " | ★ %.2f", r.Stars)
	return b.String()
}

// GetPP computes pp for the beatmap. accuracy <= 0 requests the standard
// accuracy steps.
func (c *Client) GetPP(
	ctx context.Context, beatmapID int, mode osu.GameMode, mods osu.Mod, accuracy float64,
) (*PPResponse, error) {
	params := url.Values{
		"b": {strconv.Itoa(beatmapID)},
		"m": {strconv.FormatInt(int64(mods), 10)},
		"g": {strconv.Itoa(int(mode))},
	}
	if accuracy > 0 {
		params.Set("a", strconv.FormatFloat(accuracy, 'f', -1, 64))
	}
	var out struct {
		Status   int             `json:"status"`
		Message  string          `json:"message"`
		SongName string          `json:"song_name"`
		PP       json.RawMessage `json:"pp"`
		Length   int             `json:"length"`
		Stars    float64         `json:"stars"`
		AR       float64         `json:"ar"`
		BPM      int             `json:"bpm"`
	}
	if err := c.Get(ctx, "v1/pp", params, &out); err != nil {
		return nil, err
	}
	if out.Status != 200 {
		return nil, &backend.ResponseError{Code: out.Status, Data: map[string]any{"message": out.Message}}
	}

	// The service returns either a single float or the four-step list.
	var pp []float64
	if err := json.Unmarshal(out.PP, &pp); err != nil {
		var single float64
		if err := json.Unmarshal(out.PP, &single); err != nil {
			return nil, &backend.FatalError{Err: fmt.Errorf("decode pp field: %w", err)}
		}
		pp = []float64{single}
	}

	return &PPResponse{
		SongName: out.SongName,
		PP:       pp,
		Length:   out.Length,
		Stars:    out.Stars,
		AR:       out.AR,
		BPM:      out.BPM,
		Mods:     mods,
		Accuracy: accuracy,
		GameMode: mode,
	}, nil
}
