// Package loader loads Lua world content into Go values: a populated world
// graph, the callbacks to register and the game settings. The Lua VM is
// discarded after loading.
package loader

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/rulecore/engine/args"
	"github.com/nathoo/rulecore/engine/constraints"
	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/effects"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
	"github.com/nathoo/rulecore/types"
)

type nodeKind int

const (
	kindRoom nodeKind = iota
	kindObject
	kindCharacter
)

// rawNode holds a constructor's id and table before compilation.
type rawNode struct {
	id    string
	kind  nodeKind
	table *lua.LTable
	order int
}

// gameDef is the compiled Game{} table.
type gameDef struct {
	Title  string
	Intro  string
	Player types.EntityID
	Seed   int64
	Vars   types.Variables
	Verbs  triggers.Vocabulary
}

// nodeDef is a compiled room, object or character.
type nodeDef struct {
	Node world.Node
	Kind nodeKind
	In   types.EntityID
}

// defs is everything compiled from one content directory.
type defs struct {
	Game      gameDef
	Nodes     []nodeDef // rooms first, then objects and characters, each in declaration order
	Paths     []world.Path
	Templates []world.Template
	Callbacks []triggers.Callback
}

// Fields of node tables that are not properties.
var nodeFields = map[string]bool{
	"name": true, "location": true, "classes": true, "contains": true, "exits": true,
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Entity("id") inside a property is an entity reference.
		if getString(val, tagDescriptor) == "entity" {
			return types.EntityID(lua.LVAsString(val.RawGetInt(1)))
		}
		// Check if it's an array (sequential integer keys starting at 1).
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		// Otherwise treat as map.
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// stringList reads a field holding either one string or a list of them.
func stringList(tbl *lua.LTable, key string) []string {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= v.MaxN(); i++ {
			if s, ok := v.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
		return out
	}
	return nil
}

// elements returns the array part of a table, skipping holes.
func elements(tbl *lua.LTable) []lua.LValue {
	if tbl == nil {
		return nil
	}
	var out []lua.LValue
	for i := 1; i <= tbl.MaxN(); i++ {
		if v := tbl.RawGetInt(i); v != lua.LNil {
			out = append(out, v)
		}
	}
	return out
}

// positional returns the arguments recorded in a tagged helper table.
func positional(tbl *lua.LTable) []lua.LValue {
	n := getInt(tbl, argCount)
	out := make([]lua.LValue, n)
	for i := range n {
		out[i] = tbl.RawGetInt(i + 1)
	}
	return out
}

// compile converts all collected Lua data into defs.
func compile(coll *collector) (*defs, error) {
	if coll.game == nil {
		return nil, fmt.Errorf("no Game{} definition found")
	}
	d := &defs{}
	var errs []error

	game, err := compileGame(coll.game)
	if err != nil {
		errs = append(errs, fmt.Errorf("compiling Game: %w", err))
	}
	d.Game = game

	for _, raw := range coll.rooms {
		raw.kind = kindRoom
		node, exits := compileNode(raw)
		d.Nodes = append(d.Nodes, node)
		d.Paths = append(d.Paths, exits...)
	}
	for _, raw := range coll.nodes {
		node, _ := compileNode(raw)
		d.Nodes = append(d.Nodes, node)
	}
	for _, raw := range coll.templates {
		d.Templates = append(d.Templates, compileTemplate(raw))
	}
	for i, tbl := range coll.paths {
		paths, err := compilePath(tbl)
		if err != nil {
			errs = append(errs, fmt.Errorf("compiling path %d: %w", i+1, err))
			continue
		}
		d.Paths = append(d.Paths, paths...)
	}
	for _, raw := range coll.callbacks {
		cb, err := compileCallback(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("compiling callback %s: %w", raw.id, err))
			continue
		}
		d.Callbacks = append(d.Callbacks, cb)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return d, nil
}

func compileGame(tbl *lua.LTable) (gameDef, error) {
	g := gameDef{
		Title:  getString(tbl, "title"),
		Intro:  getString(tbl, "intro"),
		Player: types.EntityID(getString(tbl, "player")),
		Seed:   int64(getNumber(tbl, "seed")),
		Vars:   types.Variables{},
	}
	if vars := getTable(tbl, "vars"); vars != nil {
		var err error
		vars.ForEach(func(k, v lua.LValue) {
			n, ok := v.(lua.LNumber)
			if !ok {
				err = fmt.Errorf("variable %s must be a number", k)
				return
			}
			g.Vars[lua.LVAsString(k)] = int(n)
		})
		if err != nil {
			return g, err
		}
	}
	if verbs := getTable(tbl, "verbs"); verbs != nil {
		vocab, err := compileVerbs(verbs)
		if err != nil {
			return g, err
		}
		g.Verbs = vocab
	}
	return g, nil
}

// compileVerbs reads verbs = { polish = { func = "polishes", positions = {0, 1} } }.
// A verb may map to a list of such slots.
func compileVerbs(tbl *lua.LTable) (triggers.Vocabulary, error) {
	vocab := triggers.Vocabulary{}
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		verb := lua.LVAsString(k)
		slotsTbl, ok := v.(*lua.LTable)
		if !ok {
			err = fmt.Errorf("verb %s: expected a table", verb)
			return
		}
		list := []lua.LValue{slotsTbl}
		if getString(slotsTbl, "func") == "" {
			list = elements(slotsTbl)
		}
		for _, s := range list {
			st, ok := s.(*lua.LTable)
			if !ok || getString(st, "func") == "" {
				err = fmt.Errorf("verb %s: slot needs a func", verb)
				return
			}
			slot := triggers.Slot{Func: getString(st, "func"), Speech: dialogue.Speech(getString(st, "speech"))}
			for _, p := range elements(getTable(st, "positions")) {
				slot.Positions = append(slot.Positions, int(lua.LVAsNumber(p)))
			}
			if len(slot.Positions) == 0 {
				slot.Positions = []int{0, 1}
			}
			vocab[verb] = append(vocab[verb], slot)
		}
	})
	return vocab, err
}

// compileNode compiles a room, object or character. Every field that is
// not structural becomes a property. Rooms may declare exits inline.
func compileNode(raw rawNode) (nodeDef, []world.Path) {
	tbl := raw.table
	name := getString(tbl, "name")
	if name == "" {
		name = raw.id
	}
	n := world.Node{
		ID:      types.EntityID(raw.id),
		Name:    name,
		Room:    raw.kind == kindRoom,
		Classes: stringList(tbl, "classes"),
		Props:   map[string]any{},
	}
	if raw.kind == kindCharacter && !slices.Contains(n.Classes, world.ClassAgent) {
		n.Classes = append(n.Classes, world.ClassAgent)
	}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !nodeFields[string(ks)] {
			n.Props[string(ks)] = toGoValue(v)
		}
	})

	var exits []world.Path
	if exitTbl := getTable(tbl, "exits"); exitTbl != nil {
		var names []string
		exitTbl.ForEach(func(k, _ lua.LValue) { names = append(names, lua.LVAsString(k)) })
		sort.Strings(names)
		for _, dir := range names {
			exits = append(exits, world.Path{
				From: n.ID,
				To:   types.EntityID(getString(exitTbl, dir)),
				Name: dir,
			})
		}
	}
	return nodeDef{Node: n, Kind: raw.kind, In: types.EntityID(getString(tbl, "location"))}, exits
}

func compileTemplate(raw rawNode) world.Template {
	tbl := raw.table
	t := world.Template{
		Class:    raw.id,
		Name:     getString(tbl, "name"),
		Classes:  stringList(tbl, "classes"),
		Props:    map[string]any{},
		Contains: stringList(tbl, "contains"),
	}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !nodeFields[string(ks)] {
			t.Props[string(ks)] = toGoValue(v)
		}
	})
	return t
}

// compilePath reads a Path{} table. With back set, the reverse path is
// added under that name and shares the lock.
func compilePath(tbl *lua.LTable) ([]world.Path, error) {
	p := world.Path{
		From:     types.EntityID(getString(tbl, "from")),
		To:       types.EntityID(getString(tbl, "to")),
		Name:     getString(tbl, "name"),
		Lockable: getBool(tbl, "lockable", false),
		Locked:   getBool(tbl, "locked", false),
		Key:      types.EntityID(getString(tbl, "key")),
	}
	if p.From == "" || p.To == "" {
		return nil, fmt.Errorf("path needs from and to")
	}
	if p.Locked || p.Key != "" {
		p.Lockable = true
	}
	paths := []world.Path{p}
	if back := tbl.RawGetString("back"); back != lua.LNil {
		rev := p
		rev.From, rev.To = p.To, p.From
		rev.Name = ""
		if s, ok := back.(lua.LString); ok {
			rev.Name = string(s)
		}
		paths = append(paths, rev)
	}
	return paths, nil
}

func compileCallback(raw rawNode) (triggers.Callback, error) {
	tbl := raw.table
	cb := triggers.Callback{
		Name:     raw.id,
		Listener: types.EntityID(getString(tbl, "listener")),
	}

	on := getTable(tbl, "on")
	if on == nil || getString(on, tagTrigger) == "" {
		return cb, fmt.Errorf("missing on = On(...)")
	}
	cb.Trigger.Func = getString(on, tagTrigger)
	cb.Trigger.Override = getBool(tbl, "override", false)
	for i, v := range positional(on) {
		m, err := compileMatcher(v)
		if err != nil {
			return cb, fmt.Errorf("trigger arg %d: %w", i+1, err)
		}
		cb.Trigger.Args = append(cb.Trigger.Args, m)
	}

	for i, v := range elements(getTable(tbl, "constraints")) {
		b, err := compileConstraint(v)
		if err != nil {
			return cb, fmt.Errorf("constraint %d: %w", i+1, err)
		}
		cb.Constraints = append(cb.Constraints, b)
	}

	var err error
	if cb.Actions, err = compileEffects(getTable(tbl, "actions")); err != nil {
		return cb, err
	}

	match := getTable(tbl, "match")
	def := getTable(tbl, "default")
	if match != nil || def != nil {
		cb.Dialogue = &dialogue.Triggers{}
		for i, v := range elements(match) {
			bt, ok := v.(*lua.LTable)
			if !ok {
				return cb, fmt.Errorf("match %d: expected Branch", i+1)
			}
			b, err := compileBranch(bt)
			if err != nil {
				return cb, fmt.Errorf("branch %s: %w", b.Name, err)
			}
			cb.Dialogue.Match = append(cb.Dialogue.Match, b)
		}
		if def != nil {
			b, err := compileBranch(def)
			if err != nil {
				return cb, fmt.Errorf("default branch: %w", err)
			}
			if b.Name == "" {
				b.Name = "default"
			}
			cb.Dialogue.Default = &b
		}
	}
	return cb, nil
}

func compileBranch(tbl *lua.LTable) (dialogue.Branch, error) {
	b := dialogue.Branch{
		Name:    getString(tbl, tagBranch),
		Phrases: stringList(tbl, "phrases"),
	}
	var err error
	b.Effects, err = compileEffects(getTable(tbl, "actions"))
	return b, err
}

func compileMatcher(v lua.LValue) (triggers.ArgMatcher, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		// A bare string names an instance.
		if s, isStr := v.(lua.LString); isStr {
			return triggers.Instance(types.EntityID(s)), nil
		}
		return triggers.ArgMatcher{}, fmt.Errorf("expected a matcher, got %s", v.Type())
	}
	params := positional(tbl)
	first := ""
	if len(params) > 0 {
		first = lua.LVAsString(params[0])
	}
	switch kind := getString(tbl, tagMatcher); kind {
	case "any":
		return triggers.Any(), nil
	case "instance":
		return triggers.Instance(types.EntityID(first)), nil
	case "class":
		return triggers.Class(first), nil
	case "location":
		return triggers.Location(types.EntityID(first)), nil
	case "actor_room":
		return triggers.ActorRoom(), nil
	default:
		return triggers.ArgMatcher{}, fmt.Errorf("expected a matcher, got %q", kind)
	}
}

// Constraints whose first helper argument is a parameter, and its name.
var constraintParams = map[string]string{
	"fits":     "mode",
	"is_type":  "classes",
	"not_type": "classes",
	"has_prop": "prop",
	"no_prop":  "prop",
	"lockable": "want",
	"locked":   "want",
}

func compileConstraint(v lua.LValue) (constraints.Binding, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok || getString(tbl, tagConstraint) == "" {
		return constraints.Binding{}, fmt.Errorf("expected a constraint, got %s", v.Type())
	}
	kind := getString(tbl, tagConstraint)
	params := map[string]any{}
	rest := positional(tbl)
	if name, ok := constraintParams[kind]; ok {
		if len(rest) == 0 {
			return constraints.Binding{}, fmt.Errorf("%s: missing %s", kind, name)
		}
		params[name] = toGoValue(rest[0])
		rest = rest[1:]
	}
	c, err := constraints.Build(kind, params)
	if err != nil {
		return constraints.Binding{}, err
	}
	b := constraints.Binding{Constraint: c}
	for i, a := range rest {
		d, err := compileDescriptor(a)
		if err != nil {
			return b, fmt.Errorf("%s argument %d: %w", kind, i+1, err)
		}
		b.Args = append(b.Args, d)
	}
	return b, nil
}

// compileDescriptor turns a helper table or plain value into a descriptor.
// Plain strings, numbers and booleans are literals.
func compileDescriptor(v lua.LValue) (args.Descriptor, error) {
	switch val := v.(type) {
	case lua.LString, lua.LNumber, lua.LBool:
		return args.Literal{Value: toGoValue(val)}, nil
	case *lua.LTable:
		kind := getString(val, tagDescriptor)
		params := positional(val)
		switch kind {
		case "arg":
			if len(params) == 0 {
				return nil, fmt.Errorf("Arg needs an index")
			}
			n, ok := params[0].(lua.LNumber)
			if !ok {
				return nil, fmt.Errorf("Arg index must be a number")
			}
			return args.Arg{Index: int(n)}, nil
		case "entity":
			if len(params) == 0 || lua.LVAsString(params[0]) == "" {
				return nil, fmt.Errorf("Entity needs an id")
			}
			return args.Entity(types.EntityID(lua.LVAsString(params[0]))), nil
		case "location":
			if len(params) == 0 {
				return nil, fmt.Errorf("LocationOf needs a subject")
			}
			of, err := compileDescriptor(params[0])
			if err != nil {
				return nil, err
			}
			return args.LocationOf{Of: of}, nil
		case "cycle":
			if len(params) < 2 {
				return nil, fmt.Errorf("Cycle needs a key and items")
			}
			items, ok := params[1].(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("Cycle items must be a list")
			}
			c := args.Cycle{Key: lua.LVAsString(params[0])}
			for _, item := range elements(items) {
				c.Items = append(c.Items, toGoValue(item))
			}
			return c, nil
		}
		return nil, fmt.Errorf("expected an argument descriptor, got a table")
	default:
		return nil, fmt.Errorf("expected an argument descriptor, got %s", v.Type())
	}
}

func compileEffects(tbl *lua.LTable) ([]effects.Effect, error) {
	var out []effects.Effect
	for i, v := range elements(tbl) {
		e, err := compileEffect(v)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i+1, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func compileEffect(v lua.LValue) (effects.Effect, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok || getString(tbl, tagEffect) == "" {
		return nil, fmt.Errorf("expected an action, got %s", v.Type())
	}
	op := getString(tbl, tagEffect)
	p := positional(tbl)
	arg := func(i int) lua.LValue {
		if i < len(p) {
			return p[i]
		}
		return lua.LNil
	}
	var errs []error
	desc := func(i int) args.Descriptor {
		if arg(i) == lua.LNil {
			errs = append(errs, fmt.Errorf("%s: missing argument %d", op, i+1))
			return nil
		}
		d, err := compileDescriptor(arg(i))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s argument %d: %w", op, i+1, err))
		}
		return d
	}
	optDesc := func(i int) args.Descriptor {
		if arg(i) == lua.LNil {
			return nil
		}
		return desc(i)
	}
	str := func(i int) string {
		s, ok := arg(i).(lua.LString)
		if !ok {
			errs = append(errs, fmt.Errorf("%s argument %d must be a string", op, i+1))
		}
		return string(s)
	}
	num := func(i, def int) int {
		if arg(i) == lua.LNil {
			return def
		}
		n, ok := arg(i).(lua.LNumber)
		if !ok {
			errs = append(errs, fmt.Errorf("%s argument %d must be a number", op, i+1))
		}
		return int(n)
	}

	var e effects.Effect
	switch op {
	case "set_attribute":
		e = effects.SetAttribute{Target: desc(0), Key: str(1), Value: desc(2)}
	case "increment_attribute":
		e = effects.IncrementAttribute{Target: desc(0), Key: str(1), By: num(2, 1)}
	case "decrement_attribute":
		e = effects.DecrementAttribute{Target: desc(0), Key: str(1), By: num(2, 1)}
	case "set_variable":
		e = effects.SetVariable{Name: str(0), Value: num(1, 0)}
	case "increment_variable":
		e = effects.IncrementVariable{Name: str(0), By: num(1, 1)}
	case "decrement_variable":
		e = effects.DecrementVariable{Name: str(0), By: num(1, 1)}
	case "move":
		e = effects.Move{Entity: desc(0), Dest: desc(1)}
	case "create":
		e = effects.Create{Class: str(0), Dest: desc(1)}
	case "delete":
		e = effects.Delete{Entity: desc(0)}
	case "tell":
		e = effects.Tell{Target: desc(0), Text: desc(1)}
	case "broadcast":
		e = effects.Broadcast{Text: desc(0), Room: optDesc(1)}
	case "broadcast_others":
		e = effects.Broadcast{Text: desc(0), Room: optDesc(1), ExcludeActor: true}
	case "follow":
		e = effects.Follow{Follower: desc(0), Leader: desc(1)}
	case "unfollow":
		e = effects.Follow{Follower: desc(0)}
	default:
		return nil, fmt.Errorf("unknown action %q", op)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return e, nil
}
