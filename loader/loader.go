package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/play"
	"github.com/nathoo/rulecore/engine/triggers"
	"github.com/nathoo/rulecore/engine/world"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	game      *lua.LTable
	rooms     []rawNode
	nodes     []rawNode
	templates []rawNode
	paths     []*lua.LTable
	callbacks []rawNode
	order     int
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

// Content is a loaded world, ready to hand to an engine and a game.
type Content struct {
	Config    play.Config
	World     *world.Graph
	Callbacks []triggers.Callback
	// Vocabulary holds verbs the content adds to the stock vocabulary.
	Vocabulary triggers.Vocabulary
	Warnings   []string
}

// NewGame builds an engine that knows the content's verbs, registers its
// callbacks and starts a game on the loaded world. The world is not copied,
// so each Content backs one game.
func (c *Content) NewGame(log *zap.Logger, opts ...engine.Option) (*play.Game, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]engine.Option{engine.WithLogger(log), engine.WithVocabulary(c.Vocabulary)}, opts...)
	e := engine.New(opts...)
	for _, cb := range c.Callbacks {
		if err := e.RegisterCallback(cb); err != nil {
			return nil, err
		}
	}
	cfg := c.Config
	cfg.Logger = log
	return play.New(e, c.World, cfg)
}

// Load reads all .lua files from dir, compiles them, validates references
// and builds the world. The Lua VM is discarded after loading.
func Load(dir string) (*Content, error) {
	// Discover .lua files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}

	// Sort: game.lua first, rest alphabetical.
	luaFiles = sortedLuaFiles(luaFiles)

	L := newVM()
	defer L.Close()
	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		path := filepath.Join(dir, f)
		if err := L.DoFile(path); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}
	return finish(coll)
}

// LoadString loads content from a single Lua chunk.
func LoadString(src string) (*Content, error) {
	L := newVM()
	defer L.Close()
	coll := &collector{}
	registerAPI(L, coll)
	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("executing content: %w", err)
	}
	return finish(coll)
}

func finish(coll *collector) (*Content, error) {
	d, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling content: %w", err)
	}
	warnings, err := validate(d)
	if err != nil {
		return nil, err
	}
	w, err := build(d)
	if err != nil {
		return nil, fmt.Errorf("building world: %w", err)
	}
	return &Content{
		Config: play.Config{
			Title:  d.Game.Title,
			Intro:  d.Game.Intro,
			Player: d.Game.Player,
			Seed:   d.Game.Seed,
			Vars:   d.Game.Vars,
		},
		World:      w,
		Callbacks:  d.Callbacks,
		Vocabulary: d.Game.Verbs,
		Warnings:   warnings,
	}, nil
}

// build populates a graph. Nodes are added detached and then placed in
// declaration order so containers may be declared after their contents.
func build(d *defs) (*world.Graph, error) {
	g := world.NewGraph()
	for _, n := range d.Nodes {
		if err := g.AddNode(n.Node); err != nil {
			return nil, err
		}
	}
	for _, n := range d.Nodes {
		if n.In == "" {
			continue
		}
		if err := g.Move(n.Node.ID, n.In); err != nil {
			return nil, err
		}
	}
	for _, p := range d.Paths {
		if err := g.AddPath(p); err != nil {
			return nil, err
		}
	}
	for _, t := range d.Templates {
		g.AddTemplate(t)
	}
	return g, nil
}

// newVM creates a sandboxed Lua state.
func newVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	return L
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "print",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Remove math.random and math.randomseed; play owns the only RNG.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("random", lua.LNil)
		tbl.RawSetString("randomseed", lua.LNil)
	}
}

// sortedLuaFiles returns .lua files with game.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var gameFile string
	var others []string
	for _, f := range files {
		if f == "game.lua" {
			gameFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if gameFile != "" {
		return append([]string{gameFile}, others...)
	}
	return others
}
