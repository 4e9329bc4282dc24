package textmatch

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTokens(t *testing.T) {
	got := Tokens("  Hello, THE Barkeep!!  what's   the news? ")
	want := []string{"hello", "barkeep", "what's", "news"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestScoreOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"hello there", "hello there", 1},
		{"Hello there!", "hello THERE", 1},
		{"the sword", "sword", 1},
		{"apples", "apple", 1},
		{"hello", "goodbye", 0},
		{"", "hello", 0},
		{"the", "the", 0},
		{"buy some ale", "buy ale", 0.8},
		{"a b c d", "a x", 1.0 / 3},
		// each token of b is used once
		{"ale ale", "ale", 2.0 / 3},
		// exact partners win over plural variants
		{"cat cats", "cats cat", 1},
	}
	for _, tt := range tests {
		if got := ScoreOverlap(tt.a, tt.b); !approx(got, tt.want) {
			t.Errorf("ScoreOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVariant(t *testing.T) {
	tests := []struct {
		x, y string
		want bool
	}{
		{"apples", "apple", true},
		{"apple", "apples", true},
		{"cafés", "café", true},
		{"café", "caf", true},
		{"über", "üb", false},
		{"é", "", false},
		{"a", "", false},
		{"caf\xc3", "caf", true},
	}
	for _, tt := range tests {
		if got := variant(tt.x, tt.y); got != tt.want {
			t.Errorf("variant(%q, %q) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if got := ScoreOverlap("Café", "caf"); !approx(got, 1) {
		t.Errorf("ScoreOverlap(café, caf) = %v, want 1", got)
	}
}

func TestScoreOverlap_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"where is the mayor", "mayor where"},
		{"tell me about dragons", "dragon tales"},
		{"give me gold", "gold"},
	}
	for _, p := range pairs {
		if a, b := ScoreOverlap(p[0], p[1]), ScoreOverlap(p[1], p[0]); !approx(a, b) {
			t.Errorf("%q vs %q: %v != %v", p[0], p[1], a, b)
		}
	}
}

func TestBest(t *testing.T) {
	candidates := [][]string{
		{"hello", "good day"},
		{"where is the mayor", "mayor"},
		{"buy ale", "ale please"},
	}
	tests := []struct {
		name      string
		text      string
		threshold float64
		wantIndex int
		wantOK    bool
	}{
		{"exact greeting", "Hello!", 0.7, 0, true},
		{"mayor question", "where's the mayor", 0.5, 1, true},
		{"below threshold", "is the ale cold tonight", 0.7, -1, false},
		{"low threshold", "is the ale cold tonight", 0.1, 2, true},
		{"no overlap", "nice weather", 0.1, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Best(tt.text, candidates, tt.threshold)
			if ok != tt.wantOK || m.Index != tt.wantIndex {
				t.Errorf("Best(%q) = %+v, %v; want index %d, %v", tt.text, m, ok, tt.wantIndex, tt.wantOK)
			}
		})
	}
}

func TestBest_StrictlyAboveThreshold(t *testing.T) {
	// "open gate" vs "open door" scores exactly 0.5.
	candidates := [][]string{{"open door"}}
	if s := ScoreOverlap("open", "open door"); !approx(s, 2.0/3) {
		t.Fatalf("setup: score = %v", s)
	}
	if _, ok := Best("open gate", candidates, 0.5); ok {
		t.Error("a score equal to the threshold must not match")
	}
	if _, ok := Best("open", candidates, 0.5); !ok {
		t.Error("expected match above threshold")
	}
}

func TestBest_TiesGoToFirst(t *testing.T) {
	candidates := [][]string{{"hello friend"}, {"hello stranger"}}
	m, ok := Best("hello", candidates, 0.1)
	if !ok || m.Index != 0 {
		t.Errorf("got %+v, %v; want first candidate", m, ok)
	}
}

func TestBest_SayThreshold(t *testing.T) {
	// 2*x/(n+m) slightly above 0.7: 8 shared over 11+11 tokens is 0.727.
	phrase := "tell me the way to the old mill by the river please now friend"
	text := "tell me way to old mill by river today sir captain"
	s := ScoreOverlap(text, phrase)
	if s <= 0.7 {
		t.Fatalf("setup: score %v should exceed 0.7", s)
	}
	if _, ok := Best(text, [][]string{{phrase}}, 0.7); !ok {
		t.Error("expected match")
	}
}
