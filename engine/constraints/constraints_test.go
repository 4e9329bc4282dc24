package constraints

import (
	"errors"
	"testing"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

func testWorld(t *testing.T) *world.Graph {
	t.Helper()
	g := world.NewGraph()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(g.AddRoom("hall", "the hall", nil))
	must(g.AddRoom("vault", "the vault", nil))
	must(g.AddRoom("yard", "the yard", nil))
	must(g.AddPath(world.Path{From: "hall", To: "vault", Name: "an iron door", Lockable: true, Locked: true, Key: "brass_key"}))
	must(g.AddPath(world.Path{From: "vault", To: "hall"}))
	must(g.AddPath(world.Path{From: "hall", To: "yard", Lockable: true}))
	must(g.AddNode(world.Node{ID: "alice", Name: "Alice", Classes: []string{world.ClassAgent}, Container: "hall",
		Props: map[string]any{"carry_size": 2}}))
	must(g.AddNode(world.Node{ID: "chest", Name: "the chest", Classes: []string{"object", world.ClassContainer}, Container: "hall",
		Props: map[string]any{"contain_size": 2, "lockable": true, "locked": true, "key": "brass_key"}}))
	must(g.AddNode(world.Node{ID: "coin", Name: "a coin", Classes: []string{"object"}, Container: "chest"}))
	must(g.AddNode(world.Node{ID: "gem", Name: "a gem", Classes: []string{"object"}, Container: "chest"}))
	must(g.AddNode(world.Node{ID: "pebble", Name: "a pebble", Classes: []string{"object"}, Container: "hall"}))
	must(g.AddNode(world.Node{ID: "boulder", Name: "a boulder", Classes: []string{"object"}, Container: "hall",
		Props: map[string]any{"size": 5}}))
	must(g.AddNode(world.Node{ID: "brass_key", Name: "a brass key", Classes: []string{"object", "key"}, Container: "alice"}))
	must(g.AddNode(world.Node{ID: "lamp", Name: "a lamp", Classes: []string{"object"}, Container: "hall",
		Props: map[string]any{"lit": true}}))
	return g
}

func ids(vals ...types.EntityID) []types.Value {
	out := make([]types.Value, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestConstraints(t *testing.T) {
	g := testWorld(t)
	tests := []struct {
		name       string
		c          Constraint
		args       []types.Value
		want       bool
		wantReason string
	}{
		{"carry pebble", Fits{Mode: Carry}, ids("pebble", "alice"), true, ""},
		{"carry boulder", Fits{Mode: Carry}, ids("boulder", "alice"), false, "A boulder is too heavy to carry."},
		{"chest full", Fits{Mode: Contain}, ids("pebble", "chest"), false, "The chest is full."},
		{"boulder never fits", Fits{Mode: Contain}, ids("boulder", "chest"), false, "A boulder doesn't fit in the chest."},
		{"room holds boulder", Fits{Mode: Contain}, ids("boulder", "vault"), true, ""},

		{"is container", IsType{Classes: []string{world.ClassContainer}}, ids("chest"), true, ""},
		{"is any of", IsType{Classes: []string{"weapon", "key"}}, ids("brass_key"), true, ""},
		{"is not agent", IsType{Classes: []string{world.ClassAgent}}, ids("chest"), false, "The chest is not an agent."},
		{"not type passes", NotType{Classes: []string{world.ClassAgent}}, ids("chest"), true, ""},
		{"not type fails", NotType{Classes: []string{"weapon", "key"}}, ids("brass_key"), false, "A brass key is a key."},

		{"lamp lit", HasProp{Prop: "lit"}, ids("lamp"), true, ""},
		{"pebble not lit", HasProp{Prop: "lit"}, ids("pebble"), false, "A pebble isn't lit."},
		{"pebble unlit", NoProp{Prop: "lit"}, ids("pebble"), true, ""},
		{"lamp already lit", NoProp{Prop: "lit"}, ids("lamp"), false, "A lamp is already lit."},

		{"door lockable", Lockable{Want: true}, ids("vault"), true, ""},
		{"return path not lockable", Lockable{Want: true}, ids("vault", "hall"), false, "The way to the hall can't be locked."},
		{"no path", Lockable{Want: true}, ids("vault", "yard"), false, "There's no path there."},
		{"object lockable", Lockable{Want: true}, ids("chest"), true, ""},

		{"door locked", Locked{Want: true}, ids("vault"), true, ""},
		{"door not unlocked", Locked{Want: false}, ids("vault"), false, "An iron door is locked."},
		{"gate unlocked", Locked{Want: false}, ids("yard"), true, ""},
		{"unlockable counts as unlocked", Locked{Want: false}, ids("vault", "hall"), true, ""},
		{"unlockable is not locked", Locked{Want: true}, ids("vault", "hall"), false, "The way to the hall isn't locked."},
		{"chest locked", Locked{Want: true}, ids("chest"), true, ""},

		{"keyed to brass key", LockedWith{}, ids("vault", "brass_key"), true, ""},
		{"keyed from explicit room", LockedWith{}, ids("hall", "vault", "brass_key"), true, ""},
		{"wrong key", LockedWith{}, ids("vault", "pebble"), false, "A pebble doesn't fit the lock on an iron door."},
		{"chest keyed", LockedWith{}, ids("chest", "brass_key"), true, ""},
		{"no lock", LockedWith{}, ids("vault", "hall", "brass_key"), false, "The way to the hall has no lock."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Check(tt.c, g, "alice", tt.args)
			if ok != tt.want {
				t.Fatalf("Satisfied = %v, want %v (reason %q)", ok, tt.want, reason)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestIsTypeNotTypeSymmetry(t *testing.T) {
	g := testWorld(t)
	classSets := [][]string{
		{world.ClassAgent},
		{world.ClassContainer},
		{"object"},
		{"weapon", "key"},
		{"nothing"},
	}
	for _, id := range g.Entities() {
		for _, classes := range classSets {
			a := ids(id)
			is := IsType{Classes: classes}.Satisfied(g, "alice", a)
			not := NotType{Classes: classes}.Satisfied(g, "alice", a)
			if is == not {
				t.Errorf("%s %v: IsType=%v NotType=%v", id, classes, is, not)
			}
		}
	}
}

func TestCheckAll_ShortCircuits(t *testing.T) {
	g := testWorld(t)
	env := &args.Env{Known: ids("alice", "boulder", "chest"), World: g}
	bindings := []Binding{
		{Constraint: IsType{Classes: []string{"object"}}, Args: []args.Descriptor{args.Arg{Index: 1}}},
		{Constraint: Fits{Mode: Carry}, Args: []args.Descriptor{args.Arg{Index: 1}, args.Actor()}},
		// would fail on an unresolvable index if reached
		{Constraint: HasProp{Prop: "lit"}, Args: []args.Descriptor{args.Arg{Index: 9}}},
	}
	ok, reason, err := CheckAll(bindings, env, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected failure")
	}
	if reason != "A boulder is too heavy to carry." {
		t.Errorf("reason = %q", reason)
	}
}

func TestCheckAll_Unresolvable(t *testing.T) {
	g := testWorld(t)
	env := &args.Env{Known: ids("alice"), World: g}
	bindings := []Binding{{Constraint: HasProp{Prop: "lit"}, Args: []args.Descriptor{args.Arg{Index: 3}}}}
	_, _, err := CheckAll(bindings, env, "alice")
	var refErr *args.RefError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected RefError, got %v", err)
	}
}

func TestCheckAll_Empty(t *testing.T) {
	ok, _, err := CheckAll(nil, &args.Env{World: testWorld(t)}, "alice")
	if err != nil || !ok {
		t.Errorf("empty list should pass, got %v %v", ok, err)
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		kind    string
		params  map[string]any
		want    Kind
		wantErr bool
	}{
		{"fits", nil, KindFits, false},
		{"fits", map[string]any{"mode": "contain"}, KindFits, false},
		{"fits", map[string]any{"mode": "juggle"}, 0, true},
		{"is_type", map[string]any{"classes": []any{"container", "agent"}}, KindIsType, false},
		{"not_type", map[string]any{"classes": "agent"}, KindNotType, false},
		{"is_type", nil, 0, true},
		{"has_prop", map[string]any{"prop": "lit"}, KindHasProp, false},
		{"no_prop", nil, 0, true},
		{"locked", map[string]any{"want": false}, KindLocked, false},
		{"lockable", map[string]any{"want": "yes"}, 0, true},
		{"locked_with", nil, KindLockedWith, false},
		{"teleport", nil, 0, true},
	}
	for _, tt := range tests {
		c, err := Build(tt.kind, tt.params)
		if (err != nil) != tt.wantErr {
			t.Errorf("Build(%s, %v) error = %v, wantErr %v", tt.kind, tt.params, err, tt.wantErr)
			continue
		}
		if err == nil && c.Kind() != tt.want {
			t.Errorf("Build(%s) kind = %v, want %v", tt.kind, c.Kind(), tt.want)
		}
	}

	c, _ := Build("locked", map[string]any{"want": false})
	if c.(Locked).Want {
		t.Error("want=false not honored")
	}
}

func TestValidate_Arity(t *testing.T) {
	ok := Binding{Constraint: Fits{}, Args: []args.Descriptor{args.Arg{Index: 1}, args.Actor()}}
	if err := Validate(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	short := Binding{Constraint: Fits{}, Args: []args.Descriptor{args.Arg{Index: 1}}}
	if err := Validate(short); err == nil {
		t.Error("expected arity error")
	}
	bad := Binding{Constraint: IsType{Classes: []string{"x"}}, Args: []args.Descriptor{args.Cycle{Key: "k"}}}
	if err := Validate(bad); err == nil {
		t.Error("expected descriptor error")
	}
}
