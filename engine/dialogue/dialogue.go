// Package dialogue selects scripted dialogue branches for speech aimed at a
// character and, when none fits, asks the character's generative model.
package dialogue

import (
	"context"
	"strings"

	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/textmatch"
	"github.com/nathoo/rulecore/types"
)

// Speech is the kind of utterance being matched.
type Speech string

const (
	Tell      Speech = "tell"
	Say       Speech = "say"
	Shout     Speech = "shout"
	ActFailed Speech = "act_failed"
)

// Thresholds are the minimum scores (exclusive) a phrase must beat.
type Thresholds struct {
	Tell          float64 `yaml:"tell"`
	TellWithModel float64 `yaml:"tell_with_model"`
	Say           float64 `yaml:"say"`
	Shout         float64 `yaml:"shout"`
	ActFailed     float64 `yaml:"act_failed"`
}

// DefaultThresholds returns the stock thresholds. A tell is matched loosely
// unless the listener has a model to fall back on.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Tell:          0.1,
		TellWithModel: 0.5,
		Say:           0.7,
		Shout:         0.7,
		ActFailed:     0.5,
	}
}

// For returns the threshold for a speech kind.
func (t Thresholds) For(s Speech, modelAttached bool) float64 {
	switch s {
	case Tell:
		if modelAttached {
			return t.TellWithModel
		}
		return t.Tell
	case Say:
		return t.Say
	case Shout:
		return t.Shout
	default:
		return t.ActFailed
	}
}

// Branch is one scripted response.
type Branch struct {
	Name    string
	Phrases []string
	Effects []effects.Effect
}

// Triggers are the branches of one dialogue callback.
type Triggers struct {
	Match   []Branch
	Default *Branch
}

// Select returns the branch whose phrases best match text above threshold,
// or the default branch. The returned match is zero-valued for the default.
func Select(text string, trig *Triggers, threshold float64) (*Branch, textmatch.Match, bool) {
	if trig == nil {
		return nil, textmatch.Match{}, false
	}
	candidates := make([][]string, len(trig.Match))
	for i, b := range trig.Match {
		candidates[i] = b.Phrases
	}
	if m, ok := textmatch.Best(text, candidates, threshold); ok {
		return &trig.Match[m.Index], m, true
	}
	if trig.Default != nil {
		return trig.Default, textmatch.Match{Index: -1}, true
	}
	return nil, textmatch.Match{}, false
}

// Observation is what a model is told before it is asked to reply.
type Observation struct {
	Speaker      types.EntityID
	SpeakerName  string
	Listener     types.EntityID
	ListenerName string
	Room         string
	Speech       Speech
	Text         string
	Persona      string // listener's "persona" property, if any
}

// Model generates replies for one character.
type Model interface {
	Observe(ctx context.Context, obs Observation)
	Reply(ctx context.Context) (string, error)
}

// Ask shows obs to m and returns its repaired reply, which may be empty.
func Ask(ctx context.Context, m Model, obs Observation) (string, error) {
	m.Observe(ctx, obs)
	raw, err := m.Reply(ctx)
	if err != nil {
		return "", err
	}
	return Repair(raw), nil
}

var punctuation = strings.NewReplacer(
	" .", ".",
	" ,", ",",
	" !", "!",
	" ?", "?",
	" ;", ";",
	" :", ":",
	" n't", "n't",
	" 's", "'s",
	" 'm", "'m",
	" 're", "'re",
	" 've", "'ve",
	" 'll", "'ll",
	" 'd", "'d",
)

// Repair undoes tokenizer artifacts in model output: runs of whitespace,
// spaces before punctuation and split contractions ("do n't").
func Repair(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	// The replacer is single-pass, so repeat until stable for runs
	// like "wait . . ."
	for {
		next := punctuation.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}
