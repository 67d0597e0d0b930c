package wa

import (
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// Inbound is a normalized inbound message ready for dispatch.
type Inbound struct {
	ID         string
	Sender     string
	PushName   string
	Content    string
	Kind       string
	FromSelf   bool
	ReceivedAt time.Time
}

// ParseMessage normalizes a live whatsmeow message event.
func ParseMessage(evt *events.Message) *Inbound {
	return &Inbound{
		ID:         evt.Info.ID,
		Sender:     evt.Info.Sender.ToNonAD().String(),
		PushName:   evt.Info.PushName,
		Content:    extractTextBody(evt.Message),
		Kind:       detectMessageKind(evt.Message),
		FromSelf:   evt.Info.IsFromMe,
		ReceivedAt: evt.Info.Timestamp,
	}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	// Media captions count as text content for response routing.
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

func detectMessageKind(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
