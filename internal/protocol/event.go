package protocol

import "github.com/google/uuid"

// Event is a typed message exchanged between client and server. The set of
// implementations is closed: the payload methods are unexported.
type Event interface {
	Command() Command
	encodePayload(w *Writer)
	decodePayload(r *Reader)
}

// Operated is implemented by events that take part in a request/response
// exchange and carry a correlation id
type Operated interface {
	Event
	OperationID() uuid.UUID
}

// OperationOf returns the correlation id of e, if it has one
func OperationOf(e Event) (uuid.UUID, bool) {
	if op, ok := e.(Operated); ok {
		return op.OperationID(), true
	}
	return uuid.Nil, false
}
