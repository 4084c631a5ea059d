package api

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the health and readiness probes
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Error   string `json:"error,omitempty"`
}

// ConversationListResponse wraps a list of conversations
type ConversationListResponse struct {
	Conversations interface{} `json:"conversations"`
}

// MessageListResponse wraps the messages of a conversation
type MessageListResponse struct {
	Messages interface{} `json:"messages"`
}
