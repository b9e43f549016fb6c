// Package world runs one simulated universe.
//
// A [World] owns the simulation clock, the set of active processes, a pid
// registry per system and a shell chain per person. All of that state is
// touched only from the goroutine that calls [World.Tick] (normally inside
// [World.Run]); sessions hand work over through Join, Leave, Command and
// InitialCommand, which append to a mutex-guarded request queue that is
// drained at the start of every tick.
//
// Processes never block. A process body is a [Body] that advances one step
// per tick and suspends on a [YieldToken] between steps; [Steps] builds a
// body from a list of step functions with an explicit program counter.
//
// Every tick each active process is first revalidated in a fixed order: its
// terminal is still connected, its system exists, its login is still on that
// system, and its anchor shell is still in the owning person's chain. The
// first failing check completes the process as KilledRemotely without
// stepping it. Completion removes the pid, pops shells from the chain, and
// cascades depth first to every child on the same system.
package world
