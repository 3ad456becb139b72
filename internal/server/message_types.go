package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants for the play-submission protocol
const (
	// Client to server messages
	MessageTypeAuth         MessageType = "auth"
	MessageTypePlayRoulette MessageType = "play_roulette"
	MessageTypePlaySlots    MessageType = "play_slots"
	MessageTypeBgInit       MessageType = "bg_init"
	MessageTypeBgRaise      MessageType = "bg_raise"
	MessageTypeBgCall       MessageType = "bg_call"
	MessageTypeBgDrop       MessageType = "bg_drop"
	MessageTypeBgResolve    MessageType = "bg_resolve"
	MessageTypeSetTail      MessageType = "set_tail"
	MessageTypeGetStats     MessageType = "get_stats"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeResult       MessageType = "result"
	MessageTypeStats        MessageType = "stats"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
