package models

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatHistoryResponse wraps a user's conversation, oldest message first.
type ChatHistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// SendMessageRequest is the payload for posting a new message to the assistant.
type SendMessageRequest struct {
	Message string `json:"message"`
}
