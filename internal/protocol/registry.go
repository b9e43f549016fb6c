package protocol

import (
	"fmt"
	"reflect"
	"sort"
)

type registration struct {
	command Command
	name    string
	factory func() Event
}

// registrations is the complete tag table. It is consumed once by buildRegistry.
var registrations = []registration{
	{CommandLogin, "Login", func() Event { return &LoginEvent{} }},
	{CommandRegistrationTokenForge, "RegistrationTokenForgeRequest", func() Event { return &RegistrationTokenForgeRequestEvent{} }},
	{CommandInitialCommand, "InitialCommand", func() Event { return &InitialCommandEvent{} }},
	{CommandCommand, "Command", func() Event { return &CommandEvent{} }},
	{CommandInputResponse, "InputResponse", func() Event { return &InputResponseEvent{} }},
	{CommandEditResponse, "EditResponse", func() Event { return &EditResponseEvent{} }},
	{CommandClientDisconnect, "ClientDisconnect", func() Event { return &ClientDisconnectEvent{} }},

	{CommandUserInfo, "UserInfo", func() Event { return &UserInfoEvent{} }},
	{CommandLoginFail, "LoginFail", func() Event { return &LoginFailEvent{} }},
	{CommandAccessFail, "AccessFail", func() Event { return &AccessFailEvent{} }},
	{CommandRegistrationTokenForged, "RegistrationTokenForgeResponse", func() Event { return &RegistrationTokenForgeResponseEvent{} }},
	{CommandOutput, "Output", func() Event { return &OutputEvent{} }},
	{CommandShellPrompt, "ShellPrompt", func() Event { return &ShellPromptEvent{} }},
	{CommandOperationComplete, "OperationComplete", func() Event { return &OperationCompleteEvent{} }},
	{CommandInitialCommandComplete, "InitialCommandComplete", func() Event { return &InitialCommandCompleteEvent{} }},
	{CommandChainCommandComplete, "ChainCommandComplete", func() Event { return &ChainCommandCompleteEvent{} }},
	{CommandInputRequest, "InputRequest", func() Event { return &InputRequestEvent{} }},
	{CommandEditRequest, "EditRequest", func() Event { return &EditRequestEvent{} }},
	{CommandServerDisconnect, "ServerDisconnect", func() Event { return &ServerDisconnectEvent{} }},
	{CommandAlert, "Alert", func() Event { return &AlertEvent{} }},
}

var (
	factories    map[Command]func() Event
	commandNames map[Command]string
	commandList  []Command
)

func init() {
	factories, commandNames, commandList = buildRegistry(registrations)
}

// buildRegistry validates the table: every tag is in a known range, no tag or
// event type appears twice, and each factory yields an event reporting its own
// tag. Any violation is a programming error and panics at startup.
func buildRegistry(regs []registration) (map[Command]func() Event, map[Command]string, []Command) {
	byTag := make(map[Command]func() Event, len(regs))
	names := make(map[Command]string, len(regs))
	types := make(map[reflect.Type]Command, len(regs))
	list := make([]Command, 0, len(regs))

	for _, reg := range regs {
		if !IsClientCommand(reg.command) && !IsServerCommand(reg.command) {
			panic(fmt.Sprintf("protocol: tag 0x%08X for %s is outside both ranges", uint32(reg.command), reg.name))
		}
		if _, dup := byTag[reg.command]; dup {
			panic(fmt.Sprintf("protocol: duplicate tag 0x%08X (%s, %s)", uint32(reg.command), names[reg.command], reg.name))
		}
		ev := reg.factory()
		if ev.Command() != reg.command {
			panic(fmt.Sprintf("protocol: %s reports tag 0x%08X, registered as 0x%08X", reg.name, uint32(ev.Command()), uint32(reg.command)))
		}
		typ := reflect.TypeOf(ev)
		if other, dup := types[typ]; dup {
			panic(fmt.Sprintf("protocol: type %s registered for both 0x%08X and 0x%08X", typ, uint32(other), uint32(reg.command)))
		}
		types[typ] = reg.command
		byTag[reg.command] = reg.factory
		names[reg.command] = reg.name
		list = append(list, reg.command)
	}

	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return byTag, names, list
}

// Lookup returns a zero event for tag
func Lookup(tag Command) (Event, bool) {
	f, ok := factories[tag]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Commands returns every registered tag in ascending order
func Commands() []Command {
	return append([]Command(nil), commandList...)
}
