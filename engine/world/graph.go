package world

import (
	"fmt"
	"slices"

	"github.com/nathoo/rulecore/types"
)

// Default capacities used when an entity does not declare its own.
const (
	DefaultSize      = 1
	DefaultCarrySize = 20
)

// Node is a single entity in the graph.
type Node struct {
	ID        types.EntityID
	Name      string
	Room      bool
	Classes   []string
	Props     map[string]any
	Container types.EntityID
	Contents  []types.EntityID
	Following types.EntityID
}

// Template describes a class that can be instantiated at runtime.
type Template struct {
	Class    string
	Name     string
	Classes  []string
	Props    map[string]any
	Contains []string // classes created inside each new instance
}

// Graph is an in-memory Store. Iteration order is insertion order so that
// broadcasts and listings are deterministic.
type Graph struct {
	nodes     map[types.EntityID]*Node
	order     []types.EntityID
	paths     map[types.EntityID][]*Path
	templates map[string]Template
	outbox    []types.Message
	nextID    int
}

// NewGraph creates an empty world.
func NewGraph() *Graph {
	return &Graph{
		nodes:     map[types.EntityID]*Node{},
		paths:     map[types.EntityID][]*Path{},
		templates: map[string]Template{},
	}
}

// AddRoom adds a room node.
func (g *Graph) AddRoom(id types.EntityID, name string, props map[string]any) error {
	return g.AddNode(Node{ID: id, Name: name, Room: true, Classes: []string{ClassRoom}, Props: props})
}

// AddNode adds an entity, placing it inside n.Container when set.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("adding node: empty id")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("adding node %s: already exists", n.ID)
	}
	if n.Props == nil {
		n.Props = map[string]any{}
	}
	if n.Room && !slices.Contains(n.Classes, ClassRoom) {
		n.Classes = append(n.Classes, ClassRoom)
	}
	container := n.Container
	n.Container = ""
	n.Contents = nil
	node := n
	g.nodes[n.ID] = &node
	g.order = append(g.order, n.ID)
	if container != "" {
		return g.Move(n.ID, container)
	}
	return nil
}

// AddPath adds a one-way path between two existing rooms.
func (g *Graph) AddPath(p Path) error {
	for _, id := range []types.EntityID{p.From, p.To} {
		if !g.IsRoom(id) {
			return fmt.Errorf("adding path %s -> %s: %w: room %s", p.From, p.To, ErrUnknownEntity, id)
		}
	}
	for _, existing := range g.paths[p.From] {
		if existing.To == p.To {
			*existing = p
			return nil
		}
	}
	path := p
	g.paths[p.From] = append(g.paths[p.From], &path)
	return nil
}

// AddTemplate registers a class template for Instantiate.
func (g *Graph) AddTemplate(t Template) {
	g.templates[t.Class] = t
}

// Template returns a registered class template.
func (g *Graph) Template(class string) (Template, bool) {
	t, ok := g.templates[class]
	return t, ok
}

// Node returns a copy of an entity's node.
func (g *Graph) Node(id types.EntityID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *cloneNode(n), true
}

// Entities returns every entity id in insertion order.
func (g *Graph) Entities() []types.EntityID {
	return slices.Clone(g.order)
}

// Contents returns the ids directly inside an entity.
func (g *Graph) Contents(id types.EntityID) []types.EntityID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.Contents)
}

// Occupants returns the agents directly inside a room.
func (g *Graph) Occupants(room types.EntityID) []types.EntityID {
	var out []types.EntityID
	for _, id := range g.Contents(room) {
		if g.HasClass(id, ClassAgent) {
			out = append(out, id)
		}
	}
	return out
}

// Paths returns the paths leading out of a room.
func (g *Graph) Paths(from types.EntityID) []Path {
	out := make([]Path, 0, len(g.paths[from]))
	for _, p := range g.paths[from] {
		out = append(out, *p)
	}
	return out
}

// Followers returns the agents currently following leader.
func (g *Graph) Followers(leader types.EntityID) []types.EntityID {
	var out []types.EntityID
	for _, id := range g.order {
		if g.nodes[id].Following == leader {
			out = append(out, id)
		}
	}
	return out
}

// Messages returns the pending messages addressed to an entity without
// consuming them.
func (g *Graph) Messages(to types.EntityID) []string {
	var out []string
	for _, m := range g.outbox {
		if m.To == to {
			out = append(out, m.Text)
		}
	}
	return out
}

// Drain removes and returns the pending messages addressed to an entity.
func (g *Graph) Drain(to types.EntityID) []string {
	var out []string
	kept := g.outbox[:0]
	for _, m := range g.outbox {
		if m.To == to {
			out = append(out, m.Text)
		} else {
			kept = append(kept, m)
		}
	}
	g.outbox = kept
	return out
}

// Flush removes and returns every pending message in send order.
func (g *Graph) Flush() []types.Message {
	out := g.outbox
	g.outbox = nil
	return out
}

// Exists reports whether an entity is in the world.
func (g *Graph) Exists(id types.EntityID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Name returns the display name, falling back to the id.
func (g *Graph) Name(id types.EntityID) string {
	if n, ok := g.nodes[id]; ok && n.Name != "" {
		return n.Name
	}
	return string(id)
}

// IsRoom reports whether id is a room.
func (g *Graph) IsRoom(id types.EntityID) bool {
	n, ok := g.nodes[id]
	return ok && n.Room
}

// Classes returns the entity's class tags.
func (g *Graph) Classes(id types.EntityID) []string {
	if n, ok := g.nodes[id]; ok {
		return slices.Clone(n.Classes)
	}
	return nil
}

// HasClass reports whether the entity carries a class tag.
func (g *Graph) HasClass(id types.EntityID, class string) bool {
	n, ok := g.nodes[id]
	return ok && slices.Contains(n.Classes, class)
}

// Prop returns a property value.
func (g *Graph) Prop(id types.EntityID, key string) (any, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	v, ok := n.Props[key]
	return v, ok
}

// HasProp reports whether a property is set to a truthy value.
func (g *Graph) HasProp(id types.EntityID, key string) bool {
	v, ok := g.Prop(id, key)
	return ok && Truthy(v)
}

// SetProp sets a property value.
func (g *Graph) SetProp(id types.EntityID, key string, value any) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("setting %s on %s: %w", key, id, ErrUnknownEntity)
	}
	n.Props[key] = value
	return nil
}

// Location returns the immediate container of an entity.
func (g *Graph) Location(id types.EntityID) types.EntityID {
	if n, ok := g.nodes[id]; ok {
		return n.Container
	}
	return ""
}

// RoomOf returns the room an entity is (transitively) inside. A room is
// its own room.
func (g *Graph) RoomOf(id types.EntityID) types.EntityID {
	seen := map[types.EntityID]bool{}
	for id != "" && !seen[id] {
		n, ok := g.nodes[id]
		if !ok {
			return ""
		}
		if n.Room {
			return id
		}
		seen[id] = true
		id = n.Container
	}
	return ""
}

// PathBetween returns the path from one room to another.
func (g *Graph) PathBetween(from, to types.EntityID) (Path, bool) {
	for _, p := range g.paths[from] {
		if p.To == to {
			return *p, true
		}
	}
	return Path{}, false
}

// SetPathLock updates the locked state of an existing path.
func (g *Graph) SetPathLock(from, to types.EntityID, locked bool) error {
	for _, p := range g.paths[from] {
		if p.To == to {
			p.Locked = locked
			return nil
		}
	}
	return fmt.Errorf("locking %s -> %s: no path", from, to)
}

// Fits reports whether container has room for item. Carry capacity comes
// from "carry_size", container capacity from "contain_size"; rooms hold
// anything.
func (g *Graph) Fits(item, container types.EntityID, carry bool) Fit {
	if g.IsRoom(container) {
		return FitOK
	}
	size := g.intProp(item, "size", DefaultSize)
	used := 0
	for _, c := range g.Contents(container) {
		if c != item {
			used += g.intProp(c, "size", DefaultSize)
		}
	}
	if carry {
		if size > g.intProp(container, "carry_size", DefaultCarrySize)-used {
			return FitTooHeavy
		}
		return FitOK
	}
	capacity := g.intProp(container, "contain_size", 0)
	switch {
	case size > capacity:
		return FitTooBig
	case size > capacity-used:
		return FitFull
	default:
		return FitOK
	}
}

// Move relocates an entity into dest.
func (g *Graph) Move(id, dest types.EntityID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("moving %s: %w", id, ErrUnknownEntity)
	}
	if _, ok := g.nodes[dest]; !ok {
		return fmt.Errorf("moving %s into %s: %w", id, dest, ErrUnknownEntity)
	}
	if n.Room {
		return fmt.Errorf("moving %s: rooms cannot be moved", id)
	}
	for c := dest; c != ""; c = g.nodes[c].Container {
		if c == id {
			return fmt.Errorf("moving %s into %s: would contain itself", id, dest)
		}
	}
	g.detach(n)
	n.Container = dest
	parent := g.nodes[dest]
	parent.Contents = append(parent.Contents, id)
	return nil
}

// Delete removes an entity and everything inside it.
func (g *Graph) Delete(id types.EntityID) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("deleting %s: %w", id, ErrUnknownEntity)
	}
	g.detach(n)
	g.deleteTree(n)
	return nil
}

func (g *Graph) deleteTree(n *Node) {
	for _, c := range n.Contents {
		if child, ok := g.nodes[c]; ok {
			g.deleteTree(child)
		}
	}
	delete(g.nodes, n.ID)
	g.order = slices.DeleteFunc(g.order, func(id types.EntityID) bool { return id == n.ID })
	for _, other := range g.nodes {
		if other.Following == n.ID {
			other.Following = ""
		}
	}
	if n.Room {
		delete(g.paths, n.ID)
		for from, paths := range g.paths {
			g.paths[from] = slices.DeleteFunc(paths, func(p *Path) bool { return p.To == n.ID })
		}
	}
}

func (g *Graph) detach(n *Node) {
	if n.Container == "" {
		return
	}
	if parent, ok := g.nodes[n.Container]; ok {
		parent.Contents = slices.DeleteFunc(parent.Contents, func(id types.EntityID) bool { return id == n.ID })
	}
	n.Container = ""
}

// Instantiate creates a detached entity from a class template.
func (g *Graph) Instantiate(class string) (types.EntityID, []string, error) {
	t, ok := g.templates[class]
	if !ok {
		return "", nil, fmt.Errorf("instantiating %q: no such class", class)
	}
	var id types.EntityID
	for {
		g.nextID++
		id = types.EntityID(fmt.Sprintf("%s_%d", class, g.nextID))
		if _, taken := g.nodes[id]; !taken {
			break
		}
	}
	props := make(map[string]any, len(t.Props))
	for k, v := range t.Props {
		props[k] = v
	}
	classes := slices.Clone(t.Classes)
	if !slices.Contains(classes, class) {
		classes = append(classes, class)
	}
	name := t.Name
	if name == "" {
		name = class
	}
	if err := g.AddNode(Node{ID: id, Name: name, Classes: classes, Props: props}); err != nil {
		return "", nil, err
	}
	return id, slices.Clone(t.Contains), nil
}

// SetFollow makes follower follow leader; an empty leader clears it.
func (g *Graph) SetFollow(follower, leader types.EntityID) error {
	n, ok := g.nodes[follower]
	if !ok {
		return fmt.Errorf("follow: %w: %s", ErrUnknownEntity, follower)
	}
	if leader != "" {
		if _, ok := g.nodes[leader]; !ok {
			return fmt.Errorf("follow: %w: %s", ErrUnknownEntity, leader)
		}
	}
	n.Following = leader
	return nil
}

// Broadcast queues a message for every agent in room, skipping exclude.
func (g *Graph) Broadcast(room types.EntityID, text string, exclude ...types.EntityID) {
	for _, id := range g.Occupants(room) {
		if slices.Contains(exclude, id) {
			continue
		}
		g.Send(id, text)
	}
}

// Send queues a private message.
func (g *Graph) Send(to types.EntityID, text string) {
	g.outbox = append(g.outbox, types.Message{To: to, Text: text})
}

// Checkpoint snapshots the graph and returns a function that restores it.
func (g *Graph) Checkpoint() func() {
	nodes := make(map[types.EntityID]*Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = cloneNode(n)
	}
	paths := make(map[types.EntityID][]*Path, len(g.paths))
	for from, ps := range g.paths {
		cp := make([]*Path, len(ps))
		for i, p := range ps {
			path := *p
			cp[i] = &path
		}
		paths[from] = cp
	}
	order := slices.Clone(g.order)
	outbox := slices.Clone(g.outbox)
	nextID := g.nextID
	return func() {
		g.nodes = nodes
		g.paths = paths
		g.order = order
		g.outbox = outbox
		g.nextID = nextID
	}
}

func (g *Graph) intProp(id types.EntityID, key string, def int) int {
	if v, ok := g.Prop(id, key); ok {
		if n, ok := ToInt(v); ok {
			return n
		}
	}
	return def
}

func cloneNode(n *Node) *Node {
	cp := *n
	cp.Classes = slices.Clone(n.Classes)
	cp.Contents = slices.Clone(n.Contents)
	cp.Props = make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		cp.Props[k] = v
	}
	return &cp
}

var _ Store = (*Graph)(nil)
var _ Checkpointer = (*Graph)(nil)
