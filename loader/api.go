package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// Keys tagging helper tables so compile can tell them apart.
const (
	tagDescriptor = "__desc"
	tagMatcher    = "__match"
	tagConstraint = "__constraint"
	tagEffect     = "__effect"
	tagTrigger    = "__trigger"
	tagBranch     = "__branch"
	argCount      = "__n"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerDescriptorHelpers(L)
	registerMatcherHelpers(L)
	registerConstraintHelpers(L)
	registerEffectHelpers(L)
}

// curried returns a constructor used as Name "id" { ... }.
func curried(L *lua.LState, add func(id string, tbl *lua.LTable)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			add(id, L.CheckTable(1))
			return 0
		}))
		return 1
	})
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Game { title = "...", player = "...", ... }
	L.SetGlobal("Game", L.NewFunction(func(L *lua.LState) int {
		coll.game = L.CheckTable(1)
		return 0
	}))

	L.SetGlobal("Room", curried(L, func(id string, tbl *lua.LTable) {
		coll.rooms = append(coll.rooms, rawNode{id: id, table: tbl, order: coll.nextSourceOrder()})
	}))
	L.SetGlobal("Object", curried(L, func(id string, tbl *lua.LTable) {
		coll.nodes = append(coll.nodes, rawNode{id: id, kind: kindObject, table: tbl, order: coll.nextSourceOrder()})
	}))
	L.SetGlobal("Character", curried(L, func(id string, tbl *lua.LTable) {
		coll.nodes = append(coll.nodes, rawNode{id: id, kind: kindCharacter, table: tbl, order: coll.nextSourceOrder()})
	}))
	L.SetGlobal("Template", curried(L, func(class string, tbl *lua.LTable) {
		coll.templates = append(coll.templates, rawNode{id: class, table: tbl, order: coll.nextSourceOrder()})
	}))
	L.SetGlobal("Callback", curried(L, func(name string, tbl *lua.LTable) {
		coll.callbacks = append(coll.callbacks, rawNode{id: name, table: tbl, order: coll.nextSourceOrder()})
	}))

	// Path { from = "...", to = "...", name = "...", back = "..." }
	L.SetGlobal("Path", L.NewFunction(func(L *lua.LState) int {
		coll.paths = append(coll.paths, L.CheckTable(1))
		return 0
	}))

	// Branch "name" { phrases = {...}, actions = {...} } returns the branch
	// for a callback's match list.
	L.SetGlobal("Branch", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			tbl.RawSetString(tagBranch, lua.LString(name))
			L.Push(tbl)
			return 1
		}))
		return 1
	}))

	// On("gives", Any(), Any(), Instance("bram"))
	L.SetGlobal("On", L.NewFunction(func(L *lua.LState) int {
		L.Push(tagged(L, tagTrigger, L.CheckString(1), 2))
		return 1
	}))
}

// tagged builds {tag = name, [1..n] = arguments from position first}.
// The count is stored so nil arguments keep their position.
func tagged(L *lua.LState, tag, name string, first int) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString(tag, lua.LString(name))
	n := 0
	for i := first; i <= L.GetTop(); i++ {
		n++
		tbl.RawSetInt(n, L.Get(i))
	}
	tbl.RawSetString(argCount, lua.LNumber(n))
	return tbl
}

// helper registers a global that wraps its arguments in a tagged table.
func helper(L *lua.LState, global, tag, name string) {
	L.SetGlobal(global, L.NewFunction(func(L *lua.LState) int {
		L.Push(tagged(L, tag, name, 1))
		return 1
	}))
}

func registerDescriptorHelpers(L *lua.LState) {
	// Actor() is Arg(0).
	L.SetGlobal("Actor", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString(tagDescriptor, lua.LString("arg"))
		tbl.RawSetInt(1, lua.LNumber(0))
		tbl.RawSetString(argCount, lua.LNumber(1))
		L.Push(tbl)
		return 1
	}))
	helper(L, "Arg", tagDescriptor, "arg")             // Arg(n)
	helper(L, "Entity", tagDescriptor, "entity")       // Entity("id")
	helper(L, "LocationOf", tagDescriptor, "location") // LocationOf(desc)
	helper(L, "Cycle", tagDescriptor, "cycle")         // Cycle("key", {items})
}

func registerMatcherHelpers(L *lua.LState) {
	helper(L, "Any", tagMatcher, "any")
	helper(L, "Instance", tagMatcher, "instance")    // Instance("id")
	helper(L, "Class", tagMatcher, "class")          // Class("agent")
	helper(L, "InRoom", tagMatcher, "location")      // InRoom("room")
	helper(L, "ActorRoom", tagMatcher, "actor_room") // ActorRoom()
}

func registerConstraintHelpers(L *lua.LState) {
	// Parameterized helpers take their parameter first, then descriptors:
	// IsType("agent", Arg(2)), Locked(false, Arg(1)), Fits("carry", Arg(1), Actor()).
	helper(L, "Fits", tagConstraint, "fits")
	helper(L, "IsType", tagConstraint, "is_type")
	helper(L, "NotType", tagConstraint, "not_type")
	helper(L, "HasProp", tagConstraint, "has_prop")
	helper(L, "NoProp", tagConstraint, "no_prop")
	helper(L, "Lockable", tagConstraint, "lockable")
	helper(L, "Locked", tagConstraint, "locked")
	helper(L, "LockedWith", tagConstraint, "locked_with")
}

func registerEffectHelpers(L *lua.LState) {
	helper(L, "SetAttr", tagEffect, "set_attribute")            // SetAttr(target, key, value)
	helper(L, "IncAttr", tagEffect, "increment_attribute")      // IncAttr(target, key [, by])
	helper(L, "DecAttr", tagEffect, "decrement_attribute")      // DecAttr(target, key [, by])
	helper(L, "SetVar", tagEffect, "set_variable")              // SetVar(name, value)
	helper(L, "IncVar", tagEffect, "increment_variable")        // IncVar(name [, by])
	helper(L, "DecVar", tagEffect, "decrement_variable")        // DecVar(name [, by])
	helper(L, "Move", tagEffect, "move")                        // Move(entity, dest)
	helper(L, "Create", tagEffect, "create")                    // Create(class, dest)
	helper(L, "Delete", tagEffect, "delete")                    // Delete(entity)
	helper(L, "Tell", tagEffect, "tell")                        // Tell(target, text)
	helper(L, "Broadcast", tagEffect, "broadcast")              // Broadcast(text [, room])
	helper(L, "BroadcastOthers", tagEffect, "broadcast_others") // BroadcastOthers(text [, room])
	helper(L, "Follow", tagEffect, "follow")                    // Follow(follower, leader)
	helper(L, "Unfollow", tagEffect, "unfollow")                // Unfollow(follower)
}
