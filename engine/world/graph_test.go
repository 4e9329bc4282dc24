package world

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nathoo/rulecore/types"
)

// testGraph builds a tavern with a cellar, a bartender, a chest and a coin.
func testGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(g.AddRoom("tavern", "the tavern", nil))
	must(g.AddRoom("cellar", "the cellar", nil))
	must(g.AddPath(Path{From: "tavern", To: "cellar", Lockable: true, Locked: true, Key: "iron_key"}))
	must(g.AddPath(Path{From: "cellar", To: "tavern"}))
	must(g.AddNode(Node{ID: "bartender", Name: "the bartender", Classes: []string{ClassAgent}, Container: "tavern"}))
	must(g.AddNode(Node{ID: "player", Name: "you", Classes: []string{ClassAgent}, Container: "tavern",
		Props: map[string]any{"carry_size": 3}}))
	must(g.AddNode(Node{ID: "chest", Name: "a chest", Classes: []string{"object", ClassContainer}, Container: "tavern",
		Props: map[string]any{"contain_size": 4, "size": 10}}))
	must(g.AddNode(Node{ID: "coin", Name: "a coin", Classes: []string{"object"}, Container: "chest"}))
	must(g.AddNode(Node{ID: "iron_key", Name: "an iron key", Classes: []string{"object", "key"}, Container: "bartender"}))
	g.AddTemplate(Template{Class: "purse", Name: "a purse", Classes: []string{"object", ClassContainer},
		Props: map[string]any{"contain_size": 5}, Contains: []string{"coin_t", "coin_t"}})
	g.AddTemplate(Template{Class: "coin_t", Name: "a copper coin", Classes: []string{"object"}})
	return g
}

func TestRoomOf(t *testing.T) {
	g := testGraph(t)
	tests := []struct {
		id   types.EntityID
		want types.EntityID
	}{
		{"tavern", "tavern"},
		{"bartender", "tavern"},
		{"coin", "tavern"},
		{"iron_key", "tavern"},
		{"nowhere", ""},
	}
	for _, tt := range tests {
		if got := g.RoomOf(tt.id); got != tt.want {
			t.Errorf("RoomOf(%s) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestMove_UpdatesContents(t *testing.T) {
	g := testGraph(t)
	if err := g.Move("coin", "player"); err != nil {
		t.Fatal(err)
	}
	if g.Location("coin") != "player" {
		t.Errorf("coin location = %q", g.Location("coin"))
	}
	if got := g.Contents("chest"); len(got) != 0 {
		t.Errorf("chest contents = %v, want empty", got)
	}
	if diff := cmp.Diff([]types.EntityID{"coin"}, g.Contents("player")); diff != "" {
		t.Errorf("player contents (-want +got):\n%s", diff)
	}
}

func TestMove_RejectsCycles(t *testing.T) {
	g := testGraph(t)
	if err := g.Move("chest", "coin"); err == nil {
		t.Error("expected error moving a container into its own contents")
	}
	if err := g.Move("tavern", "cellar"); err == nil {
		t.Error("expected error moving a room")
	}
	if err := g.Move("ghost", "tavern"); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestDelete_RemovesContents(t *testing.T) {
	g := testGraph(t)
	if err := g.Delete("chest"); err != nil {
		t.Fatal(err)
	}
	if g.Exists("chest") || g.Exists("coin") {
		t.Error("expected chest and coin to be gone")
	}
	for _, id := range g.Contents("tavern") {
		if id == "chest" {
			t.Error("tavern still lists the chest")
		}
	}
}

func TestDelete_ClearsFollowers(t *testing.T) {
	g := testGraph(t)
	if err := g.SetFollow("player", "bartender"); err != nil {
		t.Fatal(err)
	}
	if err := g.Delete("bartender"); err != nil {
		t.Fatal(err)
	}
	n, _ := g.Node("player")
	if n.Following != "" {
		t.Errorf("following = %q, want empty", n.Following)
	}
}

func TestFits(t *testing.T) {
	g := testGraph(t)
	if err := g.AddNode(Node{ID: "anvil", Name: "an anvil", Container: "tavern", Props: map[string]any{"size": 5}}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(Node{ID: "mug", Name: "a mug", Container: "tavern", Props: map[string]any{"size": 4}}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name      string
		item      types.EntityID
		container types.EntityID
		carry     bool
		want      Fit
	}{
		{"small item carried", "coin", "player", true, FitOK},
		{"too heavy to carry", "anvil", "player", true, FitTooHeavy},
		{"never fits in chest", "anvil", "chest", false, FitTooBig},
		{"chest too full", "mug", "chest", false, FitFull},
		{"rooms hold anything", "chest", "cellar", false, FitOK},
		{"default carry capacity", "anvil", "bartender", true, FitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Fits(tt.item, tt.container, tt.carry); got != tt.want {
				t.Errorf("Fits(%s, %s) = %v, want %v", tt.item, tt.container, got, tt.want)
			}
		})
	}
}

func TestPathBetween(t *testing.T) {
	g := testGraph(t)
	p, ok := g.PathBetween("tavern", "cellar")
	if !ok {
		t.Fatal("expected a path")
	}
	if !p.Lockable || !p.Locked || p.Key != "iron_key" {
		t.Errorf("unexpected path %+v", p)
	}
	if _, ok := g.PathBetween("tavern", "attic"); ok {
		t.Error("expected no path to attic")
	}
	if err := g.SetPathLock("tavern", "cellar", false); err != nil {
		t.Fatal(err)
	}
	if p, _ := g.PathBetween("tavern", "cellar"); p.Locked {
		t.Error("expected path unlocked")
	}
}

func TestInstantiate(t *testing.T) {
	g := testGraph(t)
	id, contents, err := g.Instantiate("purse")
	if err != nil {
		t.Fatal(err)
	}
	if id != "purse_1" {
		t.Errorf("id = %q", id)
	}
	if !g.HasClass(id, "purse") || !g.HasClass(id, ClassContainer) {
		t.Errorf("classes = %v", g.Classes(id))
	}
	if diff := cmp.Diff([]string{"coin_t", "coin_t"}, contents); diff != "" {
		t.Errorf("contents (-want +got):\n%s", diff)
	}
	if g.Location(id) != "" {
		t.Errorf("new instance should be detached, got %q", g.Location(id))
	}
	if _, _, err := g.Instantiate("dragon"); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestBroadcast_ExcludesAndSkipsObjects(t *testing.T) {
	g := testGraph(t)
	g.Broadcast("tavern", "A bell rings.", "bartender")
	if got := g.Messages("player"); len(got) != 1 || got[0] != "A bell rings." {
		t.Errorf("player messages = %v", got)
	}
	if got := g.Messages("bartender"); len(got) != 0 {
		t.Errorf("bartender should be excluded, got %v", got)
	}
	if got := g.Messages("chest"); len(got) != 0 {
		t.Errorf("objects should not hear broadcasts, got %v", got)
	}
}

func TestDrain(t *testing.T) {
	g := testGraph(t)
	g.Send("player", "one")
	g.Send("bartender", "two")
	g.Send("player", "three")
	if diff := cmp.Diff([]string{"one", "three"}, g.Drain("player")); diff != "" {
		t.Errorf("drain (-want +got):\n%s", diff)
	}
	if len(g.Messages("player")) != 0 {
		t.Error("expected player outbox empty after drain")
	}
	if diff := cmp.Diff([]string{"two"}, g.Messages("bartender")); diff != "" {
		t.Errorf("bartender (-want +got):\n%s", diff)
	}
}

func TestFlush(t *testing.T) {
	g := testGraph(t)
	g.Send("player", "one")
	g.Send("bartender", "two")
	want := []types.Message{{To: "player", Text: "one"}, {To: "bartender", Text: "two"}}
	if diff := cmp.Diff(want, g.Flush()); diff != "" {
		t.Errorf("flush (-want +got):\n%s", diff)
	}
	if len(g.Flush()) != 0 {
		t.Error("expected empty outbox after flush")
	}
}

func TestCheckpoint_Restore(t *testing.T) {
	g := testGraph(t)
	restore := g.Checkpoint()

	if err := g.Move("coin", "player"); err != nil {
		t.Fatal(err)
	}
	if err := g.SetProp("chest", "open", true); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.Instantiate("purse"); err != nil {
		t.Fatal(err)
	}
	if err := g.Delete("bartender"); err != nil {
		t.Fatal(err)
	}
	g.Send("player", "should vanish")

	restore()

	if g.Location("coin") != "chest" {
		t.Errorf("coin location = %q, want chest", g.Location("coin"))
	}
	if g.HasProp("chest", "open") {
		t.Error("chest.open should be rolled back")
	}
	if g.Exists("purse_1") {
		t.Error("instance should be rolled back")
	}
	if !g.Exists("bartender") || !g.Exists("iron_key") {
		t.Error("deleted entities should be restored")
	}
	if len(g.Messages("player")) != 0 {
		t.Error("messages should be rolled back")
	}
	if id, _, _ := g.Instantiate("purse"); id != "purse_1" {
		t.Errorf("id counter should be rolled back, got %q", id)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{true, true},
		{false, false},
		{0, false},
		{3, true},
		{0.0, false},
		{"", false},
		{"yes", true},
		{[]any{}, true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
