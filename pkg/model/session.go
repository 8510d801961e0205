package model

import "time"

// SessionID is assigned by the agent service. The client never constructs one.
type SessionID string

type Session struct {
	ID        SessionID
	ClientID  string
	KristalID string
	CreatedAt time.Time
	Messages  []ChatMessage
}

// User is the locally authenticated operator
type User struct {
	Email string `json:"email"`
}
