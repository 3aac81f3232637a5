package models

import "strings"

// CommandType enumerates the text commands supervisors can send.
type CommandType string

const (
	CommandCakes   CommandType = "cakes"
	CommandUse     CommandType = "use"
	CommandStock   CommandType = "stock"
	CommandSummary CommandType = "summary"
	CommandPaid    CommandType = "paid"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

// Command is a parsed supervisor instruction.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand reads the command word, with or without a leading slash, and
// keeps the remaining words as arguments.
func ParseCommand(message string) Command {
	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return Command{Type: CommandUnknown, Raw: message}
	}

	cmd := Command{Raw: message}
	switch head := CommandType(strings.ToLower(strings.TrimPrefix(tokens[0], "/"))); head {
	case CommandCakes, CommandUse, CommandStock, CommandSummary, CommandPaid, CommandHelp:
		cmd.Type = head
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}
	return cmd
}
