package programs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/netshell/internal/consts"
	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/world"
)

func newEcho() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		x.Write(strings.Join(x.Args()[1:], " ") + "\n")
		return world.Exit()
	})
}

func newSleep() world.Body {
	return world.Steps(
		func(x *world.Exec) world.Outcome {
			args := x.Args()
			if len(args) != 2 {
				return usage(x)
			}
			secs, err := strconv.ParseFloat(args[1], 64)
			if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
				x.Writef("sleep: invalid time interval '%s'\n", args[1])
				return world.Exit()
			}
			d := time.Duration(math.MaxInt64)
			if secs < float64(math.MaxInt64)/float64(time.Second) {
				d = time.Duration(secs * float64(time.Second))
			}
			return world.Yield(x.Sleep(d))
		},
	)
}

func newExit() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		if err := x.ExitShell(); err != nil {
			x.Writef("exit: %v\n", err)
		}
		return world.Exit()
	})
}

func newCd() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		args := x.Args()
		dir := "/"
		if l := x.Login(); l != nil && l.Home != "" {
			dir = l.Home
		}
		switch len(args) {
		case 1:
		case 2:
			dir = args[1]
		default:
			return usage(x)
		}
		if err := x.Chdir(dir); err != nil {
			x.Writef("cd: %v\n", err)
		}
		return world.Exit()
	})
}

func displayName(f *model.File) string {
	name := f.Path[strings.LastIndex(f.Path, "/")+1:]
	if f.Kind == model.FileKindDir {
		return name + "/"
	}
	return name
}

func newLs() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		paths := x.Args()[1:]
		if len(paths) == 0 {
			paths = []string{"."}
		}
		var b strings.Builder
		for i, p := range paths {
			f, ok := x.File(p)
			if !ok {
				fmt.Fprintf(&b, "ls: %s: no such file or directory\n", p)
				continue
			}
			if f.Kind != model.FileKindDir {
				fmt.Fprintln(&b, displayName(f))
				continue
			}
			if len(paths) > 1 {
				if i > 0 {
					b.WriteString("\n")
				}
				fmt.Fprintf(&b, "%s:\n", p)
			}
			for _, child := range x.ListDir(p) {
				fmt.Fprintln(&b, displayName(child))
			}
		}
		x.Write(b.String())
		return world.Exit()
	})
}

func newCat() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		args := x.Args()
		if len(args) < 2 {
			return usage(x)
		}
		var b strings.Builder
		for _, p := range args[1:] {
			f, ok := x.File(p)
			switch {
			case !ok:
				fmt.Fprintf(&b, "cat: %s: no such file or directory\n", p)
			case f.Kind == model.FileKindDir:
				fmt.Fprintf(&b, "cat: %s: is a directory\n", p)
			case f.Kind == model.FileKindProgram:
				fmt.Fprintf(&b, "cat: %s: binary file\n", p)
			default:
				b.WriteString(f.Content)
			}
		}
		x.Write(b.String())
		return world.Exit()
	})
}

func newRead() world.Body {
	var hidden bool
	return world.Steps(
		func(x *world.Exec) world.Outcome {
			args := x.Args()[1:]
			if len(args) > 0 && args[0] == "-s" {
				hidden = true
				args = args[1:]
			}
			if len(args) > 0 {
				x.Write(strings.Join(args, " "))
			}
			return world.Yield(x.ReadInput(hidden))
		},
		func(x *world.Exec) world.Outcome {
			line, _ := x.Input()
			if hidden {
				x.Writef("\nread %d characters\n", len([]rune(line)))
			} else {
				x.Write(line + "\n")
			}
			return world.Exit()
		},
	)
}

func newEdit() world.Body {
	var path string
	return world.Steps(
		func(x *world.Exec) world.Outcome {
			args := x.Args()
			if len(args) != 2 {
				return usage(x)
			}
			path = args[1]
			content := ""
			readOnly := false
			if f, ok := x.File(path); ok {
				switch f.Kind {
				case model.FileKindDir:
					x.Writef("edit: %s: is a directory\n", path)
					return world.Exit()
				case model.FileKindProgram:
					readOnly = true
				default:
					content = f.Content
				}
			}
			if len(content) > consts.MaxStringBytes {
				x.Writef("edit: %s: file too large\n", path)
				return world.Exit()
			}
			return world.Yield(x.RequestEdit(content, readOnly))
		},
		func(x *world.Exec) world.Outcome {
			content, write, ok := x.Edited()
			if !ok || !write {
				return world.Exit()
			}
			if err := x.WriteFile(path, content); err != nil {
				x.Writef("edit: %v\n", err)
			}
			return world.Exit()
		},
	)
}

func newHelp() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		intrinsics, bin := x.Commands()
		var b strings.Builder
		b.WriteString("Built-in commands:\n")
		for _, name := range intrinsics {
			writeHelpLine(&b, name)
		}
		if len(bin) > 0 {
			b.WriteString("Programs in /bin:\n")
			for _, name := range bin {
				writeHelpLine(&b, name)
			}
		}
		x.Write(b.String())
		return world.Exit()
	})
}

func writeHelpLine(b *strings.Builder, name string) {
	if p, ok := lookup(name); ok {
		fmt.Fprintf(b, "  %-32s %s\n", p.Usage, p.Summary)
		return
	}
	fmt.Fprintf(b, "  %s\n", name)
}

func newConnect() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		args := x.Args()
		if len(args) < 2 {
			return usage(x)
		}
		if err := x.Connect(args[1], args[2:]); err != nil {
			x.Writef("connect: %v\n", err)
		}
		return world.Exit()
	})
}
