package domain

// MessageType classifies an entry in a room's history.
type MessageType string

const (
	MessageTypeChat   MessageType = "CHAT"
	MessageTypeJoin   MessageType = "JOIN"
	MessageTypeLeave  MessageType = "LEAVE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// SystemSender is the display name used for server-authored notices.
const SystemSender = "System"

// Message is one chat event: a user message, a join/leave announcement,
// or a system notice. Sender and Content are stored post-sanitization;
// ordering within a room is the append order of the history list.
type Message struct {
	Type    MessageType `json:"type"`
	Sender  string      `json:"sender"`
	Content string      `json:"content"`
}

// SystemMessage builds a server-authored notice of the given type.
func SystemMessage(msgType MessageType, content string) Message {
	return Message{
		Type:    msgType,
		Sender:  SystemSender,
		Content: content,
	}
}
