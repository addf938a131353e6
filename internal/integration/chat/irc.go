package chat

import "strings"

// Message is one parsed IRC line.
type Message struct {
	Prefix   string
	Command  string
	Params   []string
	Trailing string
}

// Nick returns the sender nickname from the prefix.
func (m Message) Nick() string {
	nick, _, _ := strings.Cut(m.Prefix, "!")
	return nick
}

// ParseLine parses "[@tags] [:prefix] COMMAND [params] [:trailing]".
// Tags are dropped.
func ParseLine(line string) Message {
	var msg Message
	line = strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(line, "@") {
		_, line, _ = strings.Cut(line, " ")
	}
	if strings.HasPrefix(line, ":") {
		msg.Prefix, line, _ = strings.Cut(line[1:], " ")
	}

	head, trailing, hasTrailing := strings.Cut(line, " :")
	if hasTrailing {
		msg.Trailing = trailing
	} else if strings.HasPrefix(head, ":") {
		msg.Trailing = head[1:]
		head = ""
	}

	fields := strings.Fields(head)
	if len(fields) > 0 {
		msg.Command = strings.ToUpper(fields[0])
		msg.Params = fields[1:]
	}
	return msg
}
