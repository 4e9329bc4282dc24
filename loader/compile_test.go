package loader

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// newTestVM creates a sandboxed Lua VM with the API registered and a fresh collector.
func newTestVM() (*lua.LState, *collector) {
	L := newVM()
	coll := &collector{}
	registerAPI(L, coll)
	return L, coll
}

// compileString runs src and compiles what it defined. A Game{} is added
// when src has none.
func compileString(t *testing.T, src string) (*defs, error) {
	t.Helper()
	L, coll := newTestVM()
	defer L.Close()
	if err := L.DoString(src); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	if coll.game == nil {
		coll.game = L.NewTable()
	}
	return compile(coll)
}

func mustCompile(t *testing.T, src string) *defs {
	t.Helper()
	d, err := compileString(t, src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return d
}

func TestCompileGame(t *testing.T) {
	d := mustCompile(t, `
		Game {
			title  = "Test Game",
			intro  = "Welcome!",
			player = "me",
			seed   = 42,
			vars   = { score = 3 },
			verbs  = {
				polish = { func = "polishes" },
				push   = {
					{ func = "pushes", positions = { 0, 1 } },
					{ func = "shoves", positions = { 0, 1, 2 } },
				},
			},
		}
	`)
	want := gameDef{
		Title:  "Test Game",
		Intro:  "Welcome!",
		Player: "me",
		Seed:   42,
		Vars:   types.Variables{"score": 3},
		Verbs: triggers.Vocabulary{
			"polish": {{Func: "polishes", Positions: []int{0, 1}}},
			"push": {
				{Func: "pushes", Positions: []int{0, 1}},
				{Func: "shoves", Positions: []int{0, 1, 2}},
			},
		},
	}
	if diff := cmp.Diff(want, d.Game); diff != "" {
		t.Errorf("Game mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileGame_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"text variable", `Game { vars = { mood = "calm" } }`, "variable mood must be a number"},
		{"verb not a table", `Game { verbs = { hop = "hops" } }`, "verb hop: expected a table"},
		{"slot without func", `Game { verbs = { hop = { { positions = { 0 } } } } }`, "verb hop: slot needs a func"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestCompileNode(t *testing.T) {
	d := mustCompile(t, `
		Room "hall" {
			description = "A hall.",
			exits       = { south = "porch", north = "library" },
		}
		Character "guard" {
			name     = "the guard",
			location = "hall",
			classes  = { "human" },
			health   = 10,
			weapon   = Entity("spear"),
		}
		Object "spear" { location = "guard", classes = "weapon", weight = 2.5 }
	`)

	want := []nodeDef{
		{
			Node: world.Node{ID: "hall", Name: "hall", Room: true, Props: map[string]any{"description": "A hall."}},
			Kind: kindRoom,
		},
		{
			Node: world.Node{
				ID:      "guard",
				Name:    "the guard",
				Classes: []string{"human", world.ClassAgent},
				Props:   map[string]any{"health": 10, "weapon": types.EntityID("spear")},
			},
			Kind: kindCharacter,
			In:   "hall",
		},
		{
			Node: world.Node{ID: "spear", Name: "spear", Classes: []string{"weapon"}, Props: map[string]any{"weight": 2.5}},
			Kind: kindObject,
			In:   "guard",
		},
	}
	if diff := cmp.Diff(want, d.Nodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}

	// Inline exits are sorted by direction.
	wantPaths := []world.Path{
		{From: "hall", To: "library", Name: "north"},
		{From: "hall", To: "porch", Name: "south"},
	}
	if diff := cmp.Diff(wantPaths, d.Paths); diff != "" {
		t.Errorf("exits mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileTemplate(t *testing.T) {
	d := mustCompile(t, `
		Template "sack" {
			name     = "a sack",
			classes  = { "container" },
			contains = { "apple", "apple" },
			carry    = true,
		}
	`)
	want := []world.Template{{
		Class:    "sack",
		Name:     "a sack",
		Classes:  []string{"container"},
		Props:    map[string]any{"carry": true},
		Contains: []string{"apple", "apple"},
	}}
	if diff := cmp.Diff(want, d.Templates); diff != "" {
		t.Errorf("templates mismatch (-want +got):\n%s", diff)
	}
}

func TestCompilePath(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []world.Path
	}{
		{
			name: "plain",
			src:  `Path { from = "a", to = "b", name = "the arch" }`,
			want: []world.Path{{From: "a", To: "b", Name: "the arch"}},
		},
		{
			name: "key implies lockable",
			src:  `Path { from = "a", to = "b", key = "k" }`,
			want: []world.Path{{From: "a", To: "b", Lockable: true, Key: "k"}},
		},
		{
			name: "back shares the lock",
			src:  `Path { from = "a", to = "b", name = "the door", locked = true, back = "the door" }`,
			want: []world.Path{
				{From: "a", To: "b", Name: "the door", Lockable: true, Locked: true},
				{From: "b", To: "a", Name: "the door", Lockable: true, Locked: true},
			},
		},
		{
			name: "unnamed back",
			src:  `Path { from = "a", to = "b", back = true }`,
			want: []world.Path{{From: "a", To: "b"}, {From: "b", To: "a"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustCompile(t, tt.src)
			if diff := cmp.Diff(tt.want, d.Paths); diff != "" {
				t.Errorf("paths mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompilePath_MissingEnd(t *testing.T) {
	_, err := compileString(t, `Path { from = "a" }`)
	if err == nil || !strings.Contains(err.Error(), "path needs from and to") {
		t.Errorf("error = %v", err)
	}
}

func TestCompileCallback(t *testing.T) {
	d := mustCompile(t, `
		Callback "thanks" {
			on          = On("gives", Any(), "apple", Class("agent")),
			override    = true,
			constraints = {
				IsType({ "agent", "animal" }, Arg(2)),
				Locked(false, LocationOf(Actor())),
				Fits("contain", Arg(1), Arg(2)),
				LockedWith(Arg(2), Entity("key")),
			},
			actions = {
				SetAttr(Arg(2), "pleased", true),
				IncAttr(Actor(), "karma"),
				DecVar("apples", 2),
				Create("apple", Actor()),
				Tell(Actor(), Cycle("thanks", { "Thanks!", "Thanks again." })),
				BroadcastOthers("{actor} hands over an apple."),
				Unfollow(Actor()),
			},
		}
	`)
	want := []triggers.Callback{{
		Name: "thanks",
		Trigger: triggers.Spec{
			Func:     "gives",
			Args:     []triggers.ArgMatcher{triggers.Any(), triggers.Instance("apple"), triggers.Class("agent")},
			Override: true,
		},
		Constraints: []constraints.Binding{
			{Constraint: constraints.IsType{Classes: []string{"agent", "animal"}}, Args: []args.Descriptor{args.Arg{Index: 2}}},
			{Constraint: constraints.Locked{Want: false}, Args: []args.Descriptor{args.LocationOf{Of: args.Arg{Index: 0}}}},
			{Constraint: constraints.Fits{Mode: constraints.Contain}, Args: []args.Descriptor{args.Arg{Index: 1}, args.Arg{Index: 2}}},
			{Constraint: constraints.LockedWith{}, Args: []args.Descriptor{args.Arg{Index: 2}, args.Entity("key")}},
		},
		Actions: []effects.Effect{
			effects.SetAttribute{Target: args.Arg{Index: 2}, Key: "pleased", Value: args.Literal{Value: true}},
			effects.IncrementAttribute{Target: args.Arg{Index: 0}, Key: "karma", By: 1},
			effects.DecrementVariable{Name: "apples", By: 2},
			effects.Create{Class: "apple", Dest: args.Arg{Index: 0}},
			effects.Tell{Target: args.Arg{Index: 0}, Text: args.Cycle{Key: "thanks", Items: []any{"Thanks!", "Thanks again."}}},
			effects.Broadcast{Text: args.Literal{Value: "{actor} hands over an apple."}, ExcludeActor: true},
			effects.Follow{Follower: args.Arg{Index: 0}},
		},
	}}
	if diff := cmp.Diff(want, d.Callbacks); diff != "" {
		t.Errorf("callback mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileCallback_Dialogue(t *testing.T) {
	d := mustCompile(t, `
		Callback "chat" {
			on       = On("says", Any()),
			listener = "bram",
			match    = {
				Branch "greet" {
					phrases = { "hello", "good evening" },
					actions = { Tell(Actor(), "Evening.") },
				},
			},
			default  = { actions = { Tell(Actor(), "Hm?") } },
		}
	`)
	cb := d.Callbacks[0]
	if cb.Listener != "bram" {
		t.Errorf("Listener = %q, want bram", cb.Listener)
	}
	want := &dialogue.Triggers{
		Match: []dialogue.Branch{{
			Name:    "greet",
			Phrases: []string{"hello", "good evening"},
			Effects: []effects.Effect{effects.Tell{Target: args.Arg{Index: 0}, Text: args.Literal{Value: "Evening."}}},
		}},
		Default: &dialogue.Branch{
			Name:    "default",
			Effects: []effects.Effect{effects.Tell{Target: args.Arg{Index: 0}, Text: args.Literal{Value: "Hm?"}}},
		},
	}
	if diff := cmp.Diff(want, cb.Dialogue); diff != "" {
		t.Errorf("dialogue mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileCallback_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing on", `Callback "x" {}`, "missing on = On(...)"},
		{"bad matcher", `Callback "x" { on = On("drops", 5) }`, "trigger arg 1: expected a matcher"},
		{"not a constraint", `Callback "x" { on = On("drops"), constraints = { "yes" } }`, "constraint 1: expected a constraint"},
		{"missing param", `Callback "x" { on = On("drops"), constraints = { HasProp() } }`, "has_prop: missing prop"},
		{"bad fits mode", `Callback "x" { on = On("drops"), constraints = { Fits("juggle", Actor(), Arg(1)) } }`, "unknown mode"},
		{"not an action", `Callback "x" { on = On("drops"), actions = { 7 } }`, "action 1: expected an action"},
		{"missing effect arg", `Callback "x" { on = On("drops"), actions = { Delete() } }`, "delete: missing argument 1"},
		{"arg not a number", `Callback "x" { on = On("drops"), actions = { Delete(Arg("one")) } }`, "Arg index must be a number"},
		{"cycle without items", `Callback "x" { on = On("drops"), actions = { Tell(Actor(), Cycle("k")) } }`, "Cycle needs a key and items"},
		{"branch not a table", `Callback "x" { on = On("says"), match = { "hi" } }`, "match 1: expected Branch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileString(t, tt.src)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestToGoValue(t *testing.T) {
	L, _ := newTestVM()
	defer L.Close()
	if err := L.DoString(`return { 1, "two", true }, { a = 1.5 }, Entity("door")`); err != nil {
		t.Fatal(err)
	}
	got := []any{toGoValue(L.Get(-3)), toGoValue(L.Get(-2)), toGoValue(L.Get(-1))}
	want := []any{
		[]any{1, "two", true},
		map[string]any{"a": 1.5},
		types.EntityID("door"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toGoValue mismatch (-want +got):\n%s", diff)
	}
}
