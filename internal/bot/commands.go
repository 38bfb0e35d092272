package bot

import "strings"

// OwnerCommand is a control command issued from the bot's own account
// inside a contact's chat.
type OwnerCommand int

const (
	OwnerNone OwnerCommand = iota
	// OwnerBotOff pauses automatic replies for the current chat.
	OwnerBotOff
	// OwnerBotOn resumes automatic replies for the current chat.
	OwnerBotOn
)

// AdminCommand is a control command issued by the designated admin
// identity and affects every chat.
type AdminCommand int

const (
	AdminNone AdminCommand = iota
	AdminStop
	AdminStart
)

// ParseOwnerCommand matches self-sent control commands. Matching is exact
// after trimming and lower-casing; anything else is OwnerNone.
func ParseOwnerCommand(text string) OwnerCommand {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/bot off", "/bot pause":
		return OwnerBotOff
	case "/bot on", "/bot resume":
		return OwnerBotOn
	}
	return OwnerNone
}

// ParseAdminCommand matches the global enable/disable commands.
func ParseAdminCommand(text string) AdminCommand {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/stop":
		return AdminStop
	case "/start":
		return AdminStart
	}
	return AdminNone
}
