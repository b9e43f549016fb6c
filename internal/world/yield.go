package world

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/protocol"
)

// YieldToken is what a suspended process waits for
type YieldToken interface {
	Ready(w *World) bool
}

type sentinel bool

func (s sentinel) Ready(*World) bool { return bool(s) }

var (
	// Never is not ready on any tick
	Never YieldToken = sentinel(false)
	// Immediate is ready on the next tick
	Immediate YieldToken = sentinel(true)
)

type delayToken struct {
	until time.Duration
}

// Delay is ready once world time reaches until
func Delay(until time.Duration) YieldToken {
	return &delayToken{until: until}
}

func (t *delayToken) Ready(w *World) bool {
	return w.Now() >= t.until
}

type inputToken struct {
	term Terminal
	op   uuid.UUID
	resp *protocol.InputResponseEvent
}

// Input is ready once the terminal has delivered an input response for op
func Input(term Terminal, op uuid.UUID) YieldToken {
	return &inputToken{term: term, op: op}
}

func (t *inputToken) Ready(*World) bool {
	if t.resp != nil {
		return true
	}
	if t.term == nil {
		return false
	}
	e, ok := t.term.TakeInput(t.op, protocol.CommandInputResponse)
	if !ok {
		return false
	}
	t.resp = e.(*protocol.InputResponseEvent)
	return true
}

type confirmToken struct {
	inputToken
}

// Confirm is an Input whose answer is read as yes or no
func Confirm(term Terminal, op uuid.UUID) YieldToken {
	return &confirmToken{inputToken{term: term, op: op}}
}

func (t *confirmToken) yes() bool {
	if t.resp == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(t.resp.Input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

type editToken struct {
	term Terminal
	op   uuid.UUID
	resp *protocol.EditResponseEvent
}

// Edit is ready once the terminal has delivered an edit response for op
func Edit(term Terminal, op uuid.UUID) YieldToken {
	return &editToken{term: term, op: op}
}

func (t *editToken) Ready(*World) bool {
	if t.resp != nil {
		return true
	}
	if t.term == nil {
		return false
	}
	e, ok := t.term.TakeInput(t.op, protocol.CommandEditResponse)
	if !ok {
		return false
	}
	t.resp = e.(*protocol.EditResponseEvent)
	return true
}
