package world

import (
	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/protocol"
)

// Terminal is the session side of a player, as seen by the world. All
// methods are safe for concurrent use.
type Terminal interface {
	Connected() bool
	Send(events ...protocol.Event)
	// TakeInput removes a buffered client response with the given
	// operation id and tag.
	TakeInput(op uuid.UUID, cmd protocol.Command) (protocol.Event, bool)
}
