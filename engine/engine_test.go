package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

// testWorld builds an inn: the player and the innkeeper in the common room,
// a mug in the player's hands, a barrel in the common room.
func testWorld(t *testing.T) *world.Graph {
	t.Helper()
	g := world.NewGraph()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(g.AddRoom("common", "the common room", nil))
	must(g.AddRoom("yard", "the yard", nil))
	must(g.AddPath(world.Path{From: "common", To: "yard", Name: "the back door"}))
	must(g.AddNode(world.Node{ID: "player", Name: "you", Classes: []string{world.ClassAgent}, Container: "common"}))
	must(g.AddNode(world.Node{ID: "innkeeper", Name: "the innkeeper", Classes: []string{world.ClassAgent}, Container: "common"}))
	must(g.AddNode(world.Node{ID: "mug", Name: "a mug", Classes: []string{"object"}, Container: "player"}))
	must(g.AddNode(world.Node{ID: "barrel", Name: "a barrel", Classes: []string{"object", world.ClassContainer}, Container: "common"}))
	return g
}

func tellActor(text string) effects.Effect {
	return effects.Tell{Target: args.Actor(), Text: args.Literal{Value: text}}
}

func giveAction(object, to types.EntityID) types.Action {
	return types.Action{Name: "give", Actor: "player", Arguments: []types.Value{object, to}}
}

func sayAction(text string) types.Action {
	return types.Action{Name: "say", Actor: "player", Arguments: []types.Value{text}}
}

func giveToAgent() triggers.Callback {
	return triggers.Callback{
		Name:    "give_to_agent",
		Trigger: triggers.Spec{Func: "gives"},
		Constraints: []constraints.Binding{{
			Constraint: constraints.IsType{Classes: []string{world.ClassAgent}},
			Args:       []args.Descriptor{args.Arg{Index: 2}},
		}},
		Actions: []effects.Effect{
			effects.Move{Entity: args.Arg{Index: 1}, Dest: args.Arg{Index: 2}},
			tellActor("You hand {1} to {2}."),
		},
	}
}

func newEngine(t *testing.T, cbs ...triggers.Callback) *Engine {
	t.Helper()
	e := New()
	for _, cb := range cbs {
		if err := e.RegisterCallback(cb); err != nil {
			t.Fatalf("registering %s: %v", cb.Name, err)
		}
	}
	return e
}

func TestDispatch_Give(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, giveToAgent())
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, giveAction("mug", "innkeeper"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Executed || res.Callback != "give_to_agent" {
		t.Fatalf("result = %+v", res)
	}
	if g.Location("mug") != "innkeeper" {
		t.Errorf("mug location = %q", g.Location("mug"))
	}
	if diff := cmp.Diff([]string{"You hand a mug to the innkeeper."}, g.Messages("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDispatch_GiveConstraintFailure(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, giveToAgent())
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, giveAction("mug", "barrel"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed || res.Blocked {
		t.Fatalf("result = %+v", res)
	}
	if g.Location("mug") != "player" {
		t.Errorf("mug moved to %q", g.Location("mug"))
	}
	want := []string{"A barrel is not an agent."}
	if diff := cmp.Diff(want, g.Messages("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
	if res.Reason != want[0] {
		t.Errorf("reason = %q", res.Reason)
	}
}

// 8 shared tokens over 11+11 scores 0.727.
const (
	wellPhrase = "tell me the way to the old well by the river please now friend"
	wellAsk    = "tell me way to old well by river today sir captain"
)

func innkeeperTalk() triggers.Callback {
	return triggers.Callback{
		Name:     "innkeeper_talk",
		Trigger:  triggers.Spec{Func: "says"},
		Listener: "innkeeper",
		Dialogue: &dialogue.Triggers{
			Match: []dialogue.Branch{{
				Name:    "well",
				Phrases: []string{wellPhrase},
				Effects: []effects.Effect{tellActor("Past the yard, follow the river.")},
			}},
		},
	}
}

func TestDispatch_SayAboveThreshold(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, innkeeperTalk())
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, sayAction(wellAsk))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Executed {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"Past the yard, follow the river."}, g.Messages("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDispatch_SayBelowThresholdIsSilent(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, innkeeperTalk())
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, sayAction("where is the well"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed || res.Reason != "" {
		t.Fatalf("result = %+v", res)
	}
	if len(g.Messages("player")) != 0 {
		t.Errorf("expected no messages, got %v", g.Messages("player"))
	}
}

func TestDispatch_OverrideVeto(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t,
		triggers.Callback{
			Name:    "walk",
			Trigger: triggers.Spec{Func: "moves_to"},
			Actions: []effects.Effect{effects.Move{Entity: args.Actor(), Dest: args.Arg{Index: 1}}},
		},
		triggers.Callback{
			Name:    "yard_closed",
			Trigger: triggers.Spec{Func: "moves_to", Args: []triggers.ArgMatcher{triggers.Any(), triggers.Instance("yard")}, Override: true},
			Constraints: []constraints.Binding{{
				Constraint: constraints.HasProp{Prop: "night"},
				Args:       []args.Descriptor{args.Entity("yard")},
			}},
		},
	)
	action := types.Action{Name: "go", Actor: "player", Arguments: []types.Value{types.EntityID("yard"), types.EntityID("common")}}
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, action)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed || !res.Blocked || res.Callback != "yard_closed" {
		t.Fatalf("result = %+v", res)
	}
	if g.Location("player") != "common" {
		t.Error("default callback ran despite the veto")
	}
	if diff := cmp.Diff([]string{"The yard isn't night."}, g.Messages("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDispatch_RollbackOnUnresolvableReference(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, triggers.Callback{
		Name:    "broken",
		Trigger: triggers.Spec{Func: "examines"},
		Actions: []effects.Effect{
			effects.SetAttribute{Target: args.Arg{Index: 1}, Key: "polished", Value: args.Literal{Value: true}},
			effects.IncrementVariable{Name: "polishes", By: 1},
			tellActor("You polish {1}."),
			effects.Move{Entity: args.Arg{Index: 1}, Dest: args.Arg{Index: 5}},
		},
	})
	vars := types.Variables{"polishes": 2}
	res, err := e.Dispatch(context.Background(), g, vars, types.Action{Name: "examine", Actor: "player", Arguments: []types.Value{types.EntityID("mug")}})
	var refErr *args.RefError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected RefError, got %v", err)
	}
	if res.Executed {
		t.Error("aborted dispatch reported as executed")
	}
	if g.HasProp("mug", "polished") {
		t.Error("attribute change was not rolled back")
	}
	if diff := cmp.Diff(types.Variables{"polishes": 2}, vars); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
	if len(g.Messages("player")) != 0 {
		t.Errorf("messages leaked: %v", g.Messages("player"))
	}
}

// plainStore hides the Checkpointer of the graph it wraps.
type plainStore struct{ world.Store }

func TestDispatch_NoCheckpointerKeepsWorldChanges(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, triggers.Callback{
		Name:    "broken",
		Trigger: triggers.Spec{Func: "examines"},
		Actions: []effects.Effect{
			effects.SetAttribute{Target: args.Arg{Index: 1}, Key: "polished", Value: args.Literal{Value: true}},
			effects.IncrementVariable{Name: "polishes", By: 1},
			effects.Move{Entity: args.Arg{Index: 1}, Dest: args.Arg{Index: 5}},
		},
	})
	vars := types.Variables{"polishes": 2}
	_, err := e.Dispatch(context.Background(), plainStore{g}, vars, types.Action{Name: "examine", Actor: "player", Arguments: []types.Value{types.EntityID("mug")}})
	var refErr *args.RefError
	if !errors.As(err, &refErr) {
		t.Fatalf("expected RefError, got %v", err)
	}
	if !g.HasProp("mug", "polished") {
		t.Error("store without checkpoints was rolled back")
	}
	if diff := cmp.Diff(types.Variables{"polishes": 2}, vars); diff != "" {
		t.Errorf("variables (-want +got):\n%s", diff)
	}
}

func TestDispatch_Deterministic(t *testing.T) {
	run := func() (types.DispatchResult, []string, types.Variables) {
		g := testWorld(t)
		e := newEngine(t,
			triggers.Callback{
				Name:    "count_gifts",
				Trigger: triggers.Spec{Func: "gives", Args: []triggers.ArgMatcher{triggers.Any(), triggers.Any(), triggers.Class("object")}},
				Actions: []effects.Effect{effects.IncrementVariable{Name: "gifts", By: 1}},
			},
			giveToAgent(),
		)
		vars := types.Variables{}
		res, err := e.Dispatch(context.Background(), g, vars, giveAction("mug", "innkeeper"))
		if err != nil {
			t.Fatal(err)
		}
		return res, g.Messages("player"), vars
	}
	r1, m1, v1 := run()
	r2, m2, v2 := run()
	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
	if !cmp.Equal(m1, m2) || !cmp.Equal(v1, v2) {
		t.Errorf("state differs: %v %v / %v %v", m1, v1, m2, v2)
	}
}

func TestDispatchActFailed(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, triggers.Callback{
		Name:    "huh",
		Trigger: triggers.Spec{Func: "act_failed"},
		Actions: []effects.Effect{tellActor("You can't {1} here.")},
	})
	res, err := e.DispatchActFailed(context.Background(), g, types.Variables{}, "player", "dance")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Executed {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"You can't dance here."}, g.Messages("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

type cannedModel struct{ reply string }

func (cannedModel) Observe(context.Context, dialogue.Observation) {}
func (m cannedModel) Reply(context.Context) (string, error)      { return m.reply, nil }

func TestAttachModel(t *testing.T) {
	g := testWorld(t)
	e := newEngine(t, innkeeperTalk())
	e.AttachModel("innkeeper", cannedModel{reply: "Can't say I know."})

	if _, err := e.Dispatch(context.Background(), g, types.Variables{}, sayAction("where is the well")); err != nil {
		t.Fatal(err)
	}
	want := []string{`The innkeeper says, "Can't say I know."`}
	if diff := cmp.Diff(want, g.Drain("player")); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}

	e.AttachModel("innkeeper", nil)
	if _, err := e.Dispatch(context.Background(), g, types.Variables{}, sayAction("where is the well")); err != nil {
		t.Fatal(err)
	}
	if len(g.Messages("player")) != 0 {
		t.Errorf("detached model still answered: %v", g.Messages("player"))
	}
}

func TestRegisterCallback_Rejects(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	e := New(WithLogger(zap.New(core)))
	err := e.RegisterCallback(triggers.Callback{Name: "bad", Trigger: triggers.Spec{Func: "juggles"}})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Callback != "bad" {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if len(e.Callbacks()) != 0 {
		t.Errorf("callbacks = %v", e.Callbacks())
	}
	if logs.FilterMessage("rejected callback").Len() != 1 {
		t.Errorf("logs = %v", logs.All())
	}
}

func TestWithVocabulary(t *testing.T) {
	g := testWorld(t)
	e := New(WithVocabulary(triggers.Vocabulary{"polish": {{Func: "polishes", Positions: []int{0, 1}}}}))
	if err := e.RegisterCallback(triggers.Callback{
		Name:    "shine",
		Trigger: triggers.Spec{Func: "polishes"},
		Actions: []effects.Effect{effects.SetAttribute{Target: args.Arg{Index: 1}, Key: "shiny", Value: args.Literal{Value: true}}},
	}); err != nil {
		t.Fatal(err)
	}
	res, err := e.Dispatch(context.Background(), g, types.Variables{}, types.Action{Name: "polish", Actor: "player", Arguments: []types.Value{types.EntityID("mug")}})
	if err != nil || !res.Executed {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
	if !world.Truthy(world.PropOr(g, "mug", "shiny", nil)) {
		t.Error("mug not shiny")
	}
}
