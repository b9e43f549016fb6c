package world

import "sort"

// pidTable is the pid namespace of one system
type pidTable struct {
	procs map[int]Process
}

func newPIDTable() *pidTable {
	return &pidTable{procs: make(map[int]Process)}
}

// alloc returns the smallest unused positive pid
func (t *pidTable) alloc() int {
	pid := 1
	for {
		if _, used := t.procs[pid]; !used {
			return pid
		}
		pid++
	}
}

func (t *pidTable) add(p Process) {
	t.procs[p.PID()] = p
}

func (t *pidTable) remove(pid int) {
	delete(t.procs, pid)
}

func (t *pidTable) len() int {
	return len(t.procs)
}

func (t *pidTable) get(pid int) (Process, bool) {
	p, ok := t.procs[pid]
	return p, ok
}

// list returns the processes ordered by pid
func (t *pidTable) list() []Process {
	out := make([]Process, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID() < out[j].PID() })
	return out
}
