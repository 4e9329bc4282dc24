// Package save records a session as the seed and commands that produced it.
// Restoring replays the commands against freshly loaded content, so no world
// state is ever serialized.
package save

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nathoo/rulecore/engine/play"
)

// FormatVersion is written into every save and checked on load.
const FormatVersion = 1

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Version     int      `json:"version"`
	Game        string   `json:"game"`
	Turn        int      `json:"turn"`
	RNGSeed     int64    `json:"rng_seed"`
	RNGPosition int64    `json:"rng_position"`
	CommandLog  []string `json:"command_log"`
}

// Save serializes a game's replay log to JSON bytes.
func Save(g *play.Game) ([]byte, error) {
	data := SaveData{
		Version:     FormatVersion,
		Game:        g.Title,
		Turn:        g.Turns,
		RNGSeed:     g.RNG.Seed(),
		RNGPosition: g.RNG.Position(),
		CommandLog:  g.CommandLog,
	}
	if data.CommandLog == nil {
		data.CommandLog = []string{}
	}
	return json.MarshalIndent(data, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported save version %d", sd.Version)
	}
	return &sd, nil
}

// Replay runs a saved command log on a fresh game of the same content.
// Output is discarded. Dialogue answered by a generative model may differ
// from the original session; everything else is deterministic, and a
// replay that ends at a different turn or RNG position is reported.
func Replay(ctx context.Context, g *play.Game, sd *SaveData) error {
	if g.Title != sd.Game {
		return fmt.Errorf("save is for %q, not %q", sd.Game, g.Title)
	}
	if g.Turns != 0 || len(g.CommandLog) != 0 {
		return fmt.Errorf("replay needs a fresh game")
	}
	g.RNG = play.NewRNG(sd.RNGSeed)
	for i, cmd := range sd.CommandLog {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res := g.Step(ctx, cmd); res.Err != nil {
			return fmt.Errorf("replaying command %d (%q): %w", i+1, cmd, res.Err)
		}
	}
	if g.Turns != sd.Turn || g.RNG.Position() != sd.RNGPosition {
		return fmt.Errorf("replay diverged: turn %d, rng %d; saved turn %d, rng %d",
			g.Turns, g.RNG.Position(), sd.Turn, sd.RNGPosition)
	}
	return nil
}
