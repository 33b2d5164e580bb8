// Package staged is a staged entity-component runtime. Entities are composed
// from data groups (pure state) and two kinds of systems (pure behaviour):
// local systems, which run against the data groups of a single entity, and
// global systems, which run once per world against the set of entities that
// declare them. Execution is organized into 256 numbered stages per simulation
// step; within a stage, systems run in the topological order derived from
// their declared Before/After edges.
//
// All structural mutation (spawning, destruction, reparenting, global-system
// load/unload) is deferred through per-world command queues and applied at the
// step boundary, so system callbacks never observe a half-mutated world.
//
// Typical usage: register data groups and systems from package init functions,
// call App.Initialize once, then drive the simulation with App.Run or by
// calling EntitySystem.Step directly.
package staged
