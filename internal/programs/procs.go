package programs

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rodaine/table"

	"github.com/codefionn/netshell/internal/world"
)

func newPs() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		var b strings.Builder
		t := table.New("PID", "PPID", "USER", "KIND", "COMMAND").WithWriter(&b)
		for _, p := range x.Processes() {
			parent := "-"
			if p.Parent != 0 {
				parent = strconv.Itoa(p.Parent)
			}
			t.AddRow(p.PID, parent, p.User, p.Kind, p.Command)
		}
		t.Print()
		x.Write(b.String())
		return world.Exit()
	})
}

func newKill() world.Body {
	var pid int
	return world.Steps(
		func(x *world.Exec) world.Outcome {
			args := x.Args()
			if len(args) != 2 {
				return usage(x)
			}
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				x.Writef("kill: %s: arguments must be process ids\n", args[1])
				return world.Exit()
			}
			pid = n
			info, ok := x.Lookup(pid)
			if !ok {
				x.Writef("kill: (%d): %v\n", pid, world.ErrNoSuchProcess)
				return world.Exit()
			}
			if info.Kind == "shell" {
				return world.Yield(x.AskConfirm("kill shell " + args[1] + "? [y/N] "))
			}
			return kill(x, pid)
		},
		func(x *world.Exec) world.Outcome {
			if !x.Confirmed() {
				x.Write("kill: aborted\n")
				return world.Exit()
			}
			return kill(x, pid)
		},
	)
}

// kill may end the calling process too when pid is its own shell
func kill(x *world.Exec, pid int) world.Outcome {
	if err := x.Kill(pid); err != nil {
		x.Writef("kill: (%d): %v\n", pid, err)
	}
	return world.Exit()
}

// newBeacon is a service that logs a message at a fixed interval
func newBeacon() world.Body {
	var (
		every   time.Duration
		message string
	)
	return world.Steps(
		func(x *world.Exec) world.Outcome {
			args := x.Args()
			if len(args) < 2 {
				return world.Fail(errors.New("beacon: missing interval"))
			}
			secs, err := strconv.ParseFloat(args[1], 64)
			if err != nil || secs <= 0 {
				return world.Fail(errors.New("beacon: invalid interval " + args[1]))
			}
			every = time.Duration(secs * float64(time.Second))
			message = strings.Join(args[2:], " ")
			if message == "" {
				message = "beacon"
			}
			return world.Yield(nil)
		},
		func(x *world.Exec) world.Outcome {
			x.Log("%s", message)
			return world.Repeat(x.Sleep(every))
		},
	)
}
