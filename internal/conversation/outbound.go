package conversation

import "context"

// ReplyMessenger delivers outbound WhatsApp messages, customer replies and
// staff notifications alike. For multi-chunk messages the transport must
// preserve submission order.
type ReplyMessenger interface {
	SendReply(ctx context.Context, reply OutboundReply) error
}

// OutboundReply carries the data required to push one message.
type OutboundReply struct {
	ConversationID string
	To             string
	From           string
	Body           string
	Metadata       map[string]string
}
