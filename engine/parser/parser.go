// Package parser converts command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strings"
)

// Intent is a parsed command before names are resolved to entities.
type Intent struct {
	Verb   string
	Object string
	Target string
	// Text is the spoken text for say, shout and tell, in its original case.
	Text string
}

var directionExpansions = map[string]string{
	"n":  "north",
	"s":  "south",
	"e":  "east",
	"w":  "west",
	"ne": "northeast",
	"nw": "northwest",
	"se": "southeast",
	"sw": "southwest",
	"u":  "up",
	"d":  "down",
}

// Full direction names that are standalone shortcuts for "go <dir>".
var directionNames = map[string]bool{
	"north": true, "south": true, "east": true, "west": true,
	"northeast": true, "northwest": true, "southeast": true, "southwest": true,
	"up": true, "down": true, "in": true, "out": true,
}

var verbAliases = map[string]string{
	// Look / Examine
	"l":        "look",
	"x":        "examine",
	"inspect":  "examine",
	"check":    "examine",
	"study":    "examine",
	"describe": "examine",
	"read":     "examine",

	// Movement
	"walk":   "go",
	"run":    "go",
	"move":   "go",
	"head":   "go",
	"enter":  "go",
	"travel": "go",
	"climb":  "go",

	// Get
	"take":  "get",
	"grab":  "get",
	"carry": "get",

	// Drop
	"discard": "drop",

	// Hit
	"attack": "hit",
	"fight":  "hit",
	"strike": "hit",
	"kill":   "hit",
	"punch":  "hit",
	"kick":   "hit",

	// Speech
	"ask":    "tell",
	"speak":  "tell",
	"talk":   "tell",
	"chat":   "tell",
	"yell":   "shout",
	"scream": "shout",

	// Give / Steal
	"offer":      "give",
	"hand":       "give",
	"pickpocket": "steal",
	"pilfer":     "steal",

	// Put
	"place":  "put",
	"insert": "put",
	"stash":  "put",

	// Eat / Drink
	"consume": "eat",
	"devour":  "eat",
	"bite":    "eat",
	"sip":     "drink",
	"swallow": "drink",
	"quaff":   "drink",

	// Equipment
	"don":  "wear",
	"doff": "remove",

	// Miscellaneous
	"inv": "inventory",
	"i":   "inventory",
	"z":   "wait",
	"q":   "quit",
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"with": true, "in": true, "into": true, "from": true,
	"about": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent.
func Parse(input string) Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return Intent{}
	}

	// A leading quote is shorthand for say.
	if input[0] == '"' || input[0] == '\'' {
		return Intent{Verb: "say", Text: unquote(input)}
	}

	original := strings.Fields(input)
	words := strings.Fields(strings.ToLower(input))

	// Direction shortcut: bare "n", "south", etc. → go <direction>
	if len(words) == 1 {
		if dir, ok := directionExpansions[words[0]]; ok {
			return Intent{Verb: "go", Object: dir}
		}
		if directionNames[words[0]] {
			return Intent{Verb: "go", Object: words[0]}
		}
	}

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	// Apply verb aliases.
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := words[1:]

	switch verb {
	case "say", "shout":
		return Intent{Verb: verb, Text: unquote(strings.Join(original[len(original)-len(rest):], " "))}
	case "tell":
		return parseTell(original[len(original)-len(rest):])
	}

	// Strip articles ("the", "a", "an").
	rest = stripArticles(rest)

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest)

	return Intent{
		Verb:   verb,
		Object: object,
		Target: target,
	}
}

// parseTell splits "<name>, <text>", "<name>: <text>", "<name> about <text>"
// and "<name> <text>". The name is lowercased; the text keeps its case.
func parseTell(words []string) Intent {
	in := Intent{Verb: "tell"}
	if len(words) == 0 {
		return in
	}
	if strings.EqualFold(words[0], "to") {
		words = words[1:]
		if len(words) == 0 {
			return in
		}
	}
	for i, w := range words {
		if strings.HasSuffix(w, ",") || strings.HasSuffix(w, ":") {
			name := append(words[:i:i], strings.TrimRight(w, ",:"))
			in.Object = strings.Join(stripArticles(lower(name)), " ")
			in.Text = unquote(strings.Join(words[i+1:], " "))
			return in
		}
		if i > 0 && strings.EqualFold(w, "about") {
			in.Object = strings.Join(stripArticles(lower(words[:i])), " ")
			in.Text = unquote(strings.Join(words[i+1:], " "))
			return in
		}
	}
	// Without a separator the name is the first word after any article.
	i := 0
	for i < len(words)-1 && articles[strings.ToLower(words[i])] {
		i++
	}
	in.Object = strings.ToLower(words[i])
	in.Text = unquote(strings.Join(words[i+1:], " "))
	return in
}

// expandMultiWordVerbs handles "look at", "pick up", "talk to" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "look":
		if words[1] == "at" || words[1] == "in" || words[1] == "under" {
			return append([]string{"examine"}, words[2:]...)
		}
	case "pick":
		if words[1] == "up" {
			return append([]string{"get"}, words[2:]...)
		}
	case "talk", "speak", "chat":
		if words[1] == "to" || words[1] == "with" {
			return append([]string{"tell"}, words[2:]...)
		}
	case "put":
		if words[1] == "on" {
			return append([]string{"wear"}, words[2:]...)
		}
		if words[1] == "down" {
			return append([]string{"drop"}, words[2:]...)
		}
	case "take":
		if words[1] == "off" {
			return append([]string{"remove"}, words[2:]...)
		}
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the object, words after become the target.
// If no preposition is found, all words become the object.
func splitOnPreposition(words []string) (object, target string) {
	for i, w := range words {
		if prepositions[w] {
			object = strings.Join(words[:i], " ")
			target = strings.Join(words[i+1:], " ")
			return object, target
		}
	}
	return strings.Join(words, " "), ""
}

func lower(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.Trim(s, `"'`))
}
