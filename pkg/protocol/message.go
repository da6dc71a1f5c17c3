package protocol

import "unicode/utf8"

// MaxUsernameLength is the number of characters kept from a requested username.
const MaxUsernameLength = 200

// SystemSender prefixes notices generated by the server or the client itself.
const SystemSender = "SYSTEM"

// MessageType represents the type of a chat line
type MessageType int

const (
	MessageTypeText MessageType = iota
	MessageTypeJoin
	MessageTypeLeave
)

// String returns the string representation of MessageType
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeText:
		return "TEXT"
	case MessageTypeJoin:
		return "JOIN"
	case MessageTypeLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Message represents a chat line exchanged after the handshake.
// On the wire it is plain UTF-8 text without further framing.
type Message struct {
	Type    MessageType
	Sender  string
	Content string
}

// String renders the message the way peers see it.
func (m Message) String() string {
	switch m.Type {
	case MessageTypeJoin:
		return FormatSystem(m.Sender + " has connected")
	case MessageTypeLeave:
		return FormatSystem(m.Sender + " has disconnected")
	default:
		return FormatChat(m.Sender, m.Content)
	}
}

// FormatChat renders "<username>: <message>".
func FormatChat(username, text string) string {
	return username + ": " + text
}

// FormatSystem renders "SYSTEM: <notice>".
func FormatSystem(notice string) string {
	return FormatChat(SystemSender, notice)
}

// FormatOwn renders the local echo of a line the user typed.
func FormatOwn(username, text string) string {
	return username + " (You): " + text
}

// TruncateUsername keeps at most MaxUsernameLength characters of name.
func TruncateUsername(name string) string {
	if utf8.RuneCountInString(name) <= MaxUsernameLength {
		return name
	}
	n := 0
	for i := range name {
		if n == MaxUsernameLength {
			return name[:i]
		}
		n++
	}
	return name
}
