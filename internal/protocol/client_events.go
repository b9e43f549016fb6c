package protocol

import "github.com/google/uuid"

// LoginEvent authenticates a connection. A non-nil RegistrationToken asks the
// server to register User with Pass before logging in.
type LoginEvent struct {
	Operation         uuid.UUID
	User              string
	Pass              string
	RegistrationToken *string
}

func (*LoginEvent) Command() Command { return CommandLogin }

func (e *LoginEvent) OperationID() uuid.UUID { return e.Operation }

func (e *LoginEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteString(e.User)
	w.WriteString(e.Pass)
	w.WriteNullableString(e.RegistrationToken)
}

func (e *LoginEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.User = r.ReadString()
	e.Pass = r.ReadString()
	e.RegistrationToken = r.ReadNullableString()
}

// RegistrationTokenForgeRequestEvent asks for a single-use registration token (admin only)
type RegistrationTokenForgeRequestEvent struct {
	Operation uuid.UUID
}

func (*RegistrationTokenForgeRequestEvent) Command() Command { return CommandRegistrationTokenForge }

func (e *RegistrationTokenForgeRequestEvent) OperationID() uuid.UUID { return e.Operation }

func (e *RegistrationTokenForgeRequestEvent) encodePayload(w *Writer) { w.WriteUUID(e.Operation) }

func (e *RegistrationTokenForgeRequestEvent) decodePayload(r *Reader) { e.Operation = r.ReadUUID() }

// InitialCommandEvent asks the server to run the world's startup command
type InitialCommandEvent struct {
	Operation uuid.UUID
	ConWidth  int32
}

func (*InitialCommandEvent) Command() Command { return CommandInitialCommand }

func (e *InitialCommandEvent) OperationID() uuid.UUID { return e.Operation }

func (e *InitialCommandEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteInt32(e.ConWidth)
}

func (e *InitialCommandEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.ConWidth = r.ReadInt32()
}

// CommandEvent submits one command line to the current shell
type CommandEvent struct {
	Operation uuid.UUID
	ConWidth  int32
	Text      string
}

func (*CommandEvent) Command() Command { return CommandCommand }

func (e *CommandEvent) OperationID() uuid.UUID { return e.Operation }

func (e *CommandEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteInt32(e.ConWidth)
	w.WriteString(e.Text)
}

func (e *CommandEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.ConWidth = r.ReadInt32()
	e.Text = r.ReadString()
}

// InputResponseEvent answers an InputRequestEvent with the same operation id
type InputResponseEvent struct {
	Operation uuid.UUID
	Input     string
}

func (*InputResponseEvent) Command() Command { return CommandInputResponse }

func (e *InputResponseEvent) OperationID() uuid.UUID { return e.Operation }

func (e *InputResponseEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteString(e.Input)
}

func (e *InputResponseEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Input = r.ReadString()
}

// EditResponseEvent answers an EditRequestEvent. Write is false when the user
// discarded the buffer.
type EditResponseEvent struct {
	Operation uuid.UUID
	Write     bool
	Content   string
}

func (*EditResponseEvent) Command() Command { return CommandEditResponse }

func (e *EditResponseEvent) OperationID() uuid.UUID { return e.Operation }

func (e *EditResponseEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteBool(e.Write)
	w.WriteString(e.Content)
}

func (e *EditResponseEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Write = r.ReadBool()
	e.Content = r.ReadString()
}

// ClientDisconnectEvent announces an orderly client-side disconnect
type ClientDisconnectEvent struct{}

func (*ClientDisconnectEvent) Command() Command { return CommandClientDisconnect }

func (*ClientDisconnectEvent) encodePayload(*Writer) {}

func (*ClientDisconnectEvent) decodePayload(*Reader) {}
