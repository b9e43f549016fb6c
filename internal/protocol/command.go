package protocol

import "fmt"

// Command is the wire tag that identifies an event type
type Command uint32

const (
	clientRangeStart Command = 0x0001_0000
	clientRangeEnd   Command = 0x0001_FFFF
	serverRangeStart Command = 0x8001_0000
	serverRangeEnd   Command = 0x8001_FFFF
)

// Client → server
const (
	CommandLogin                  Command = 0x0001_0001
	CommandRegistrationTokenForge Command = 0x0001_0002
	CommandInitialCommand         Command = 0x0001_0003
	CommandCommand                Command = 0x0001_0004
	CommandInputResponse          Command = 0x0001_0005
	CommandEditResponse           Command = 0x0001_0006
	CommandClientDisconnect       Command = 0x0001_0007
)

// Server → client
const (
	CommandUserInfo                Command = 0x8001_0001
	CommandLoginFail               Command = 0x8001_0002
	CommandAccessFail              Command = 0x8001_0003
	CommandRegistrationTokenForged Command = 0x8001_0004
	CommandOutput                  Command = 0x8001_0005
	CommandShellPrompt             Command = 0x8001_0006
	CommandOperationComplete       Command = 0x8001_0007
	CommandInitialCommandComplete  Command = 0x8001_0008
	CommandChainCommandComplete    Command = 0x8001_0009
	CommandInputRequest            Command = 0x8001_000A
	CommandEditRequest             Command = 0x8001_000B
	CommandServerDisconnect        Command = 0x8001_000C
	CommandAlert                   Command = 0x8001_000D
)

// IsClientCommand reports whether c lies in the client → server range
func IsClientCommand(c Command) bool {
	return c >= clientRangeStart && c <= clientRangeEnd
}

// IsServerCommand reports whether c lies in the server → client range
func IsServerCommand(c Command) bool {
	return c >= serverRangeStart && c <= serverRangeEnd
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(0x%08X)", uint32(c))
}
