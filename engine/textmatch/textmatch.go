// Package textmatch scores free text against trigger phrases by token
// overlap.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Tokens splits s on whitespace, case-folds, strips trailing punctuation
// from each token and drops "the".
func Tokens(s string) []string {
	fields := strings.Fields(cases.Fold().String(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimRightFunc(f, unicode.IsPunct)
		if f == "" || f == "the" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ScoreOverlap returns 2*shared/(len(a)+len(b)) over the tokens of a and b,
// or 0 when either has no tokens. Each token is shared at most once; a
// singular/plural pair (one is the other minus its last character) counts
// as shared.
func ScoreOverlap(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	used := make([]bool, len(tb))
	matched := make([]bool, len(ta))
	shared := 0
	// Exact matches first so a plural variant never takes a token that has
	// an exact partner.
	for _, exact := range []bool{true, false} {
		for i, x := range ta {
			if matched[i] {
				continue
			}
			for j, y := range tb {
				if used[j] {
					continue
				}
				if x == y || (!exact && variant(x, y)) {
					used[j], matched[i] = true, true
					shared++
					break
				}
			}
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func variant(x, y string) bool {
	if s, ok := trimLastRune(x); ok && s == y {
		return true
	}
	s, ok := trimLastRune(y)
	return ok && s == x
}

// trimLastRune drops the final rune of s. It reports false when nothing
// would be left.
func trimLastRune(s string) (string, bool) {
	_, n := utf8.DecodeLastRuneInString(s)
	if n == 0 || n == len(s) {
		return "", false
	}
	return s[:len(s)-n], true
}

// Match is the result of Best.
type Match struct {
	Index  int // candidate index
	Phrase string
	Score  float64
}

// Best scores text against every phrase of every candidate and returns the
// candidate holding the strictly highest score, provided it exceeds
// threshold. Ties go to the earliest candidate, then the earliest phrase.
func Best(text string, candidates [][]string, threshold float64) (Match, bool) {
	best := Match{Index: -1}
	for i, phrases := range candidates {
		for _, p := range phrases {
			if s := ScoreOverlap(text, p); s > best.Score {
				best = Match{Index: i, Phrase: p, Score: s}
			}
		}
	}
	if best.Index < 0 || best.Score <= threshold {
		return Match{Index: -1}, false
	}
	return best, true
}
