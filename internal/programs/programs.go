// Package programs holds the built-in commands and services of netshell.
//
// Intrinsics resolve on every system. Binaries are backing code for program
// files: a system only has ps if a /bin/ps file names it.
package programs

import (
	"sort"

	"github.com/codefionn/netshell/internal/world"
)

// Program is one entry of the command table
type Program struct {
	Name    string
	Usage   string
	Summary string
	New     world.Factory
	// Intrinsic programs resolve without a file in /bin.
	Intrinsic bool
}

// Catalog returns every built-in program ordered by name
func Catalog() []Program {
	progs := []Program{
		{Name: "echo", Usage: "echo [word...]", Summary: "print words", New: newEcho, Intrinsic: true},
		{Name: "sleep", Usage: "sleep <seconds>", Summary: "wait for a while", New: newSleep, Intrinsic: true},
		{Name: "exit", Usage: "exit", Summary: "close the current remote shell", New: newExit, Intrinsic: true},
		{Name: "cd", Usage: "cd [dir]", Summary: "change directory", New: newCd, Intrinsic: true},
		{Name: "ls", Usage: "ls [path...]", Summary: "list directory contents", New: newLs, Intrinsic: true},
		{Name: "cat", Usage: "cat <file...>", Summary: "print files", New: newCat, Intrinsic: true},
		{Name: "grep", Usage: "grep [-i] [-e pattern]... [pattern] <file...>", Summary: "print lines containing any pattern", New: newGrep, Intrinsic: true},
		{Name: "read", Usage: "read [-s] [prompt]", Summary: "read a line and print it", New: newRead, Intrinsic: true},
		{Name: "edit", Usage: "edit <file>", Summary: "edit a file", New: newEdit, Intrinsic: true},
		{Name: "help", Usage: "help", Summary: "list commands", New: newHelp, Intrinsic: true},
		{Name: "connect", Usage: "connect <address> [command...]", Summary: "open a shell on another system", New: newConnect, Intrinsic: true},
		{Name: "ps", Usage: "ps", Summary: "list processes", New: newPs},
		{Name: "kill", Usage: "kill <pid>", Summary: "terminate a process", New: newKill},
		{Name: "beacon", Usage: "beacon <seconds> [message...]", Summary: "log a message periodically", New: newBeacon},
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].Name < progs[j].Name })
	return progs
}

// Install registers the catalog on w
func Install(w *world.World) {
	for _, p := range Catalog() {
		if p.Intrinsic {
			w.RegisterIntrinsic(p.Name, p.New)
		} else {
			w.RegisterProgram(p.Name, p.New)
		}
	}
}

func lookup(name string) (Program, bool) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

// usage prints the usage line of the running program and exits
func usage(x *world.Exec) world.Outcome {
	name := x.Args()[0]
	if p, ok := lookup(name); ok {
		x.Writef("usage: %s\n", p.Usage)
	}
	return world.Exit()
}
