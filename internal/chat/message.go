package chat

import "time"

// Message is the body of private and group messages.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId,omitempty"`
	GroupID     string    `json:"groupId,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Membership is the body of join-group, leave-group and their notifications.
type Membership struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// OnlineUsers is the body of the online-users broadcast.
type OnlineUsers struct {
	Users []string `json:"users"`
}

// ErrorEvent is sent back to a client whose command could not be handled.
type ErrorEvent struct {
	Command uint32 `json:"command"`
	Error   string `json:"error"`
}
