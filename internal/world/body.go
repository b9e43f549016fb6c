package world

type outcomeKind int

const (
	outcomeYield outcomeKind = iota
	outcomeRepeat
	outcomeExit
	outcomeFail
)

// Outcome is the result of one step
type Outcome struct {
	kind  outcomeKind
	token YieldToken
	err   error
}

// Yield moves on to the next step once token is ready. A nil token resumes
// on the next tick.
func Yield(token YieldToken) Outcome {
	return Outcome{kind: outcomeYield, token: token}
}

// Repeat runs the same step again once token is ready
func Repeat(token YieldToken) Outcome {
	return Outcome{kind: outcomeRepeat, token: token}
}

// Exit completes the process normally
func Exit() Outcome {
	return Outcome{kind: outcomeExit}
}

// Fail completes the process as killed and logs err
func Fail(err error) Outcome {
	return Outcome{kind: outcomeFail, err: err}
}

// Body is the resumable work of a process. Step is called at most once per
// tick and only after the previously returned token became ready.
type Body interface {
	Step(x *Exec) Outcome
}

// BodyFunc adapts a function to Body. Yield and Repeat behave the same.
type BodyFunc func(x *Exec) Outcome

func (f BodyFunc) Step(x *Exec) Outcome { return f(x) }

// StepFunc is one step of a Steps body
type StepFunc func(x *Exec) Outcome

type steps struct {
	fns []StepFunc
	pc  int
}

// Steps interprets fns in order. Yield advances the program counter, Repeat
// keeps it, and running past the last step exits.
func Steps(fns ...StepFunc) Body {
	return &steps{fns: fns}
}

func (s *steps) Step(x *Exec) Outcome {
	if s.pc >= len(s.fns) {
		return Exit()
	}
	o := s.fns[s.pc](x)
	if o.kind == outcomeYield {
		s.pc++
	}
	return o
}

// Factory creates a fresh body for each launch of a program
type Factory func() Body

type idleBody struct{}

func (idleBody) Step(*Exec) Outcome { return Repeat(Never) }
