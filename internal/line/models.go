package line

// --- Incoming webhook payload ---
// Reference: https://developers.line.biz/en/reference/messaging-api/#webhook-event-objects

const (
	EventTypeMessage  = "message"
	EventTypeFollow   = "follow"
	EventTypeUnfollow = "unfollow"
	EventTypePostback = "postback"

	MessageTypeText    = "text"
	MessageTypeImage   = "image"
	MessageTypeSticker = "sticker"
)

// Event is one element of the webhook "events" array. Only the fields the
// relay reads are decoded, so unexpected shapes elsewhere in the object
// (source, timestamp, message id) cannot make an event undecodable.
type Event struct {
	Type            string           `json:"type"`
	WebhookEventID  string           `json:"webhookEventId,omitempty"`
	DeliveryContext *DeliveryContext `json:"deliveryContext,omitempty"`
	ReplyToken      string           `json:"replyToken,omitempty"`
	Message         *EventMessage    `json:"message,omitempty"`
}

type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type EventMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text returns the user's text when the event is a text message.
func (e Event) Text() (string, bool) {
	if e.Type != EventTypeMessage || e.Message == nil || e.Message.Type != MessageTypeText {
		return "", false
	}
	return e.Message.Text, true
}

// Replyable reports whether the event carries a reply token.
func (e Event) Replyable() bool {
	return e.ReplyToken != ""
}

// IsRedelivery reports whether the platform flagged the event as a resend.
func (e Event) IsRedelivery() bool {
	return e.DeliveryContext != nil && e.DeliveryContext.IsRedelivery
}

// --- Outgoing reply ---
// Reference: https://developers.line.biz/en/reference/messaging-api/#send-reply-message

// MaxTextLength is the platform limit for a text message, in characters.
const MaxTextLength = 5000

type ReplyMessageRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []TextMessage `json:"messages"`
}

type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
