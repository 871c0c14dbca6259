package api

// SendMessageRequest is the HTTP request body for POST
// /api/conversations/{id}/message and its /stream counterpart.
type SendMessageRequest struct {
	Content         string `json:"content"`
	Provider        string `json:"provider,omitempty"`
	SkipStages      bool   `json:"skip_stages,omitempty"`
	ReplyToResponse string `json:"reply_to_response,omitempty"`
}

// RemovePendingRequest is the HTTP request body for POST
// /api/conversations/{id}/pending/remove.
type RemovePendingRequest struct {
	KeepLast bool `json:"keep_last,omitempty"`
}

// UpdateUserMessageStatusRequest is the HTTP request body for POST
// /api/conversations/{id}/user-message/status.
type UpdateUserMessageStatusRequest struct {
	Status string `json:"status"`
}
