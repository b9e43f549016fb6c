package protocol

import (
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/codefionn/netshell/internal/consts"
)

// UserInfoEvent acknowledges a successful login
type UserInfoEvent struct {
	Operation uuid.UUID
	Admin     bool
}

func (*UserInfoEvent) Command() Command { return CommandUserInfo }

func (e *UserInfoEvent) OperationID() uuid.UUID { return e.Operation }

func (e *UserInfoEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteBool(e.Admin)
}

func (e *UserInfoEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Admin = r.ReadBool()
}

// LoginFailEvent rejects a login; the server disconnects right after
type LoginFailEvent struct {
	Operation uuid.UUID
}

func (*LoginFailEvent) Command() Command { return CommandLoginFail }

func (e *LoginFailEvent) OperationID() uuid.UUID { return e.Operation }

func (e *LoginFailEvent) encodePayload(w *Writer) { w.WriteUUID(e.Operation) }

func (e *LoginFailEvent) decodePayload(r *Reader) { e.Operation = r.ReadUUID() }

// AccessFailEvent rejects an authenticated but unauthorized request
type AccessFailEvent struct {
	Operation uuid.UUID
}

func (*AccessFailEvent) Command() Command { return CommandAccessFail }

func (e *AccessFailEvent) OperationID() uuid.UUID { return e.Operation }

func (e *AccessFailEvent) encodePayload(w *Writer) { w.WriteUUID(e.Operation) }

func (e *AccessFailEvent) decodePayload(r *Reader) { e.Operation = r.ReadUUID() }

// RegistrationTokenForgeResponseEvent carries a freshly forged token
type RegistrationTokenForgeResponseEvent struct {
	Operation uuid.UUID
	Token     string
}

func (*RegistrationTokenForgeResponseEvent) Command() Command { return CommandRegistrationTokenForged }

func (e *RegistrationTokenForgeResponseEvent) OperationID() uuid.UUID { return e.Operation }

func (e *RegistrationTokenForgeResponseEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteString(e.Token)
}

func (e *RegistrationTokenForgeResponseEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Token = r.ReadString()
}

// OutputEvent is terminal text
type OutputEvent struct {
	Text string
}

func (*OutputEvent) Command() Command { return CommandOutput }

func (e *OutputEvent) encodePayload(w *Writer) { w.WriteString(e.Text) }

func (e *OutputEvent) decodePayload(r *Reader) { e.Text = r.ReadString() }

// SplitOutput returns text as OutputEvents that each fit the wire string
// limit. Pieces are cut on rune boundaries.
func SplitOutput(text string) []Event {
	var out []Event
	for len(text) > consts.MaxStringBytes {
		n := consts.MaxStringBytes
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		if n == 0 {
			n = consts.MaxStringBytes
		}
		out = append(out, &OutputEvent{Text: text[:n]})
		text = text[n:]
	}
	if text != "" {
		out = append(out, &OutputEvent{Text: text})
	}
	return out
}

// ShellPromptEvent tells the client which shell is current
type ShellPromptEvent struct {
	Address string
	Path    string
}

func (*ShellPromptEvent) Command() Command { return CommandShellPrompt }

func (e *ShellPromptEvent) encodePayload(w *Writer) {
	w.WriteString(e.Address)
	w.WriteString(e.Path)
}

func (e *ShellPromptEvent) decodePayload(r *Reader) {
	e.Address = r.ReadString()
	e.Path = r.ReadString()
}

// OperationCompleteEvent ends a plain command
type OperationCompleteEvent struct {
	Operation uuid.UUID
}

func (*OperationCompleteEvent) Command() Command { return CommandOperationComplete }

func (e *OperationCompleteEvent) OperationID() uuid.UUID { return e.Operation }

func (e *OperationCompleteEvent) encodePayload(w *Writer) { w.WriteUUID(e.Operation) }

func (e *OperationCompleteEvent) decodePayload(r *Reader) { e.Operation = r.ReadUUID() }

// InitialCommandCompleteEvent ends the startup command
type InitialCommandCompleteEvent struct {
	Operation  uuid.UUID
	NeedsRetry bool
}

func (*InitialCommandCompleteEvent) Command() Command { return CommandInitialCommandComplete }

func (e *InitialCommandCompleteEvent) OperationID() uuid.UUID { return e.Operation }

func (e *InitialCommandCompleteEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteBool(e.NeedsRetry)
}

func (e *InitialCommandCompleteEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.NeedsRetry = r.ReadBool()
}

// ChainCommandCompleteEvent ends a command issued as one link of a connect chain
type ChainCommandCompleteEvent struct {
	Operation  uuid.UUID
	NeedsRetry bool
}

func (*ChainCommandCompleteEvent) Command() Command { return CommandChainCommandComplete }

func (e *ChainCommandCompleteEvent) OperationID() uuid.UUID { return e.Operation }

func (e *ChainCommandCompleteEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteBool(e.NeedsRetry)
}

func (e *ChainCommandCompleteEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.NeedsRetry = r.ReadBool()
}

// InputRequestEvent asks the client for one line of input
type InputRequestEvent struct {
	Operation uuid.UUID
	Hidden    bool
}

func (*InputRequestEvent) Command() Command { return CommandInputRequest }

func (e *InputRequestEvent) OperationID() uuid.UUID { return e.Operation }

func (e *InputRequestEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteBool(e.Hidden)
}

func (e *InputRequestEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Hidden = r.ReadBool()
}

// EditRequestEvent asks the client to edit a buffer
type EditRequestEvent struct {
	Operation uuid.UUID
	Content   string
	ReadOnly  bool
}

func (*EditRequestEvent) Command() Command { return CommandEditRequest }

func (e *EditRequestEvent) OperationID() uuid.UUID { return e.Operation }

func (e *EditRequestEvent) encodePayload(w *Writer) {
	w.WriteUUID(e.Operation)
	w.WriteString(e.Content)
	w.WriteBool(e.ReadOnly)
}

func (e *EditRequestEvent) decodePayload(r *Reader) {
	e.Operation = r.ReadUUID()
	e.Content = r.ReadString()
	e.ReadOnly = r.ReadBool()
}

// ServerDisconnectEvent announces that the server is closing the connection
type ServerDisconnectEvent struct {
	Reason string
}

func (*ServerDisconnectEvent) Command() Command { return CommandServerDisconnect }

func (e *ServerDisconnectEvent) encodePayload(w *Writer) { w.WriteString(e.Reason) }

func (e *ServerDisconnectEvent) decodePayload(r *Reader) { e.Reason = r.ReadString() }

// AlertKind classifies an AlertEvent
type AlertKind int32

const (
	AlertUser      AlertKind = 0
	AlertSystem    AlertKind = 1
	AlertIntrusion AlertKind = 2
)

// AlertEvent is an out-of-band notice, shown outside the normal output stream
type AlertEvent struct {
	Kind   AlertKind
	Header string
	Body   string
}

func (*AlertEvent) Command() Command { return CommandAlert }

func (e *AlertEvent) encodePayload(w *Writer) {
	w.WriteInt32(int32(e.Kind))
	w.WriteString(e.Header)
	w.WriteString(e.Body)
}

func (e *AlertEvent) decodePayload(r *Reader) {
	e.Kind = AlertKind(r.ReadInt32())
	e.Header = r.ReadString()
	e.Body = r.ReadString()
}
