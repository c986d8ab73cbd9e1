package synapse

import (
	"context"
)

type messageForm struct {
	Recipients  []int64 `json:"recipients"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
	ContentType string  `json:"contentType"`
}

// SendMessage sends message to users through the platform messaging
// primitive.
func (c *Client) SendMessage(
	ctx context.Context, userIDs []int64, subject, body, contentType string,
) error {
	form := messageForm{
		Recipients:  userIDs,
		Subject:     subject,
		Body:        body,
		ContentType: contentType,
	}
	return c.RestPOST(ctx, "/message", form, nil)
}
