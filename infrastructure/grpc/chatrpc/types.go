package chatrpc

import "social-lab/domain/event"

// ConnectRequest opens the push stream. The identity comes from the authorization metadata.
type ConnectRequest struct{}

type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
}

type SendMessageResponse struct {
	Message event.MessageRecord `json:"message"`
}

type GetMessagesRequest struct {
	PeerID string  `json:"peerId"`
	Cursor *string `json:"cursor,omitempty"`
}

type GetMessagesResponse struct {
	Messages []event.MessageRecord `json:"messages"`
	Cursor   *string               `json:"cursor,omitempty"`
}
