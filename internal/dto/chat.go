package dto

import "time"

// ChatMessageRequest is an inbound chat message.
type ChatMessageRequest struct {
	Text string `json:"text" binding:"required" validate:"required"`
}

// ChatDocument references a generated report available for download.
type ChatDocument struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption"`
	Entries   int       `json:"entries"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ChatReply is one outbound message; either Text or Document is set.
type ChatReply struct {
	Text     string        `json:"text,omitempty"`
	Document *ChatDocument `json:"document,omitempty"`
}

// ChatMessageResponse lists the replies for one inbound message.
type ChatMessageResponse struct {
	ChatID  string      `json:"chatId"`
	Replies []ChatReply `json:"replies"`
}
