package programs

import (
	"fmt"
	"strings"

	"github.com/codefionn/netshell/internal/model"
	"github.com/codefionn/netshell/internal/stringsearch"
	"github.com/codefionn/netshell/internal/world"
)

// grep [-i] [-e pattern]... [pattern] <file...>
func newGrep() world.Body {
	return world.BodyFunc(func(x *world.Exec) world.Outcome {
		var (
			patterns []string
			opts     []stringsearch.Option
			files    []string
		)
		args := x.Args()[1:]
		for i := 0; i < len(args); i++ {
			switch a := args[i]; {
			case a == "-i":
				opts = append(opts, stringsearch.IgnoreCase())
			case a == "-e" && i+1 < len(args):
				i++
				patterns = append(patterns, args[i])
			case len(patterns) == 0:
				patterns = append(patterns, a)
			default:
				files = append(files, a)
			}
		}
		if len(patterns) == 0 || len(files) == 0 {
			return usage(x)
		}

		m := stringsearch.New(patterns, opts...)
		var b strings.Builder
		for _, p := range files {
			f, ok := x.File(p)
			switch {
			case !ok:
				fmt.Fprintf(&b, "grep: %s: no such file or directory\n", p)
				continue
			case f.Kind == model.FileKindDir:
				fmt.Fprintf(&b, "grep: %s: is a directory\n", p)
				continue
			case f.Kind == model.FileKindProgram:
				if m.Contains(f.Program) {
					fmt.Fprintf(&b, "grep: %s: binary file matches\n", p)
				}
				continue
			}
			for _, line := range strings.SplitAfter(f.Content, "\n") {
				if line == "" || !m.Contains(line) {
					continue
				}
				if len(files) > 1 {
					b.WriteString(p + ":")
				}
				b.WriteString(strings.TrimSuffix(line, "\n") + "\n")
			}
		}
		x.Write(b.String())
		return world.Exit()
	})
}
