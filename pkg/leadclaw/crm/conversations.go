// Package crm – conversations.go sends outbound messages through the remote
// conversations API.
package crm

import (
	"context"
	"fmt"
	"net/http"
)

// Message channel types accepted by the conversations endpoint.
const (
	ChannelSMS   = "SMS"
	ChannelEmail = "Email"
)

type outboundMessage struct {
	Type      string `json:"type"`
	ContactID string `json:"contactId"`
	Message   string `json:"message"`
	Subject   string `json:"subject,omitempty"`
}

// SendSMS delivers a text message to the contact's phone through the remote
// conversation thread and returns the remote message id.
func (c *Client) SendSMS(ctx context.Context, contactID, body string) (string, error) {
	return c.sendMessage(ctx, outboundMessage{Type: ChannelSMS, ContactID: contactID, Message: body})
}

// SendEmail delivers an email through the remote conversation thread.
func (c *Client) SendEmail(ctx context.Context, contactID, subject, body string) (string, error) {
	return c.sendMessage(ctx, outboundMessage{Type: ChannelEmail, ContactID: contactID, Message: body, Subject: subject})
}

func (c *Client) sendMessage(ctx context.Context, msg outboundMessage) (string, error) {
	var out struct {
		MessageID      string `json:"messageId"`
		ConversationID string `json:"conversationId"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations/messages", nil, msg, &out); err != nil {
		return "", fmt.Errorf("send %s message: %w", msg.Type, err)
	}
	return out.MessageID, nil
}
