package provider

import (
	"context"

	"github.com/google/uuid"
)

// SendRequest carries one resolved outbound message. Content is already
// rendered; the dispatch engine never touches templates.
type SendRequest struct {
	ChannelID   uuid.UUID  `json:"channel_id"`
	ContactID   *uuid.UUID `json:"contact_id,omitempty"`
	Content     string     `json:"content"`
	ContentType string     `json:"content_type"`
	Attachments []string   `json:"attachments,omitempty"`
}

// SendResult is returned on successful delivery to the channel network.
type SendResult struct {
	ExternalID string `json:"external_id"`
}

// Sender delivers a message over an external messaging network. An error
// return is a delivery failure and feeds the retry policy; implementations
// must respect the context deadline.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}
