package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidRole             = goerr.New("invalid message role")
	ErrInvalidSourceType       = goerr.New("invalid source type")
	ErrInvalidValidationStatus = goerr.New("invalid validation status")
)

type MessageID string

// NewMessageID generates a new unique MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Validate checks if the role is valid
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.Wrap(ErrInvalidRole, "unknown role", goerr.V("role", r))
	}
}

// ChatMessage is a single turn of the conversation. Once appended to the chat
// store it is never modified.
type ChatMessage struct {
	ID         MessageID         `json:"id"`
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Timestamp  time.Time         `json:"timestamp"`
	Sources    []Source          `json:"sources,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Chart      *ChartInfo        `json:"chart,omitempty"`
	Metadata   *Metadata         `json:"metadata,omitempty"`
}

// NewUserMessage creates a message typed by the user
func NewUserMessage(content string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewAssistantMessage creates an assistant message from an agent response
func NewAssistantMessage(resp *ChatResponse, now time.Time) ChatMessage {
	return ChatMessage{
		ID:         NewMessageID(),
		Role:       RoleAssistant,
		Content:    resp.Response,
		Timestamp:  now,
		Sources:    resp.Sources,
		Validation: resp.Validation,
		Chart:      resp.Chart,
		Metadata:   resp.Metadata,
	}
}

// Clone returns a deep copy so that callers can not reach into store state
func (m ChatMessage) Clone() ChatMessage {
	c := m
	if m.Sources != nil {
		c.Sources = append([]Source(nil), m.Sources...)
	}
	if m.Validation != nil {
		v := *m.Validation
		v.Discrepancies = append([]string(nil), m.Validation.Discrepancies...)
		c.Validation = &v
	}
	if m.Chart != nil {
		chart := *m.Chart
		c.Chart = &chart
	}
	if m.Metadata != nil {
		md := *m.Metadata
		c.Metadata = &md
	}
	return c
}

// IsUser reports whether the message was typed by the user
func (m ChatMessage) IsUser() bool {
	return m.Role == RoleUser
}

type SourceType string

const (
	SourceTypeDocument SourceType = "document"
	SourceTypeTable    SourceType = "table"
	SourceTypeURL      SourceType = "url"
)

// Source is a citation attached to an assistant reply
type Source struct {
	Type SourceType `json:"type"`
	Name string     `json:"name"`
	URL  string     `json:"url,omitempty"`
	// Query holds the SQL text and is only meaningful for table sources
	Query string `json:"query,omitempty"`
}

// Validate checks if the source is valid
func (s Source) Validate() error {
	switch s.Type {
	case SourceTypeDocument, SourceTypeTable, SourceTypeURL:
	default:
		return goerr.Wrap(ErrInvalidSourceType, "unknown source type", goerr.V("type", s.Type))
	}
	if s.Name == "" {
		return goerr.New("source name is empty", goerr.V("type", s.Type))
	}
	return nil
}

type ValidationStatus string

const (
	ValidationPass ValidationStatus = "PASS"
	ValidationFail ValidationStatus = "FAIL"
)

// ValidationResult is the verdict of the validating agent for one reply
type ValidationResult struct {
	Status        ValidationStatus `json:"status"`
	Summary       string           `json:"summary"`
	Discrepancies []string         `json:"discrepancies"`
	Agent         string           `json:"agent"`
}

// Validate checks if the validation result is valid
func (v *ValidationResult) Validate() error {
	switch v.Status {
	case ValidationPass, ValidationFail:
		return nil
	default:
		return goerr.Wrap(ErrInvalidValidationStatus, "unknown validation status", goerr.V("status", v.Status))
	}
}

// Passed reports whether the validating agent accepted the reply
func (v *ValidationResult) Passed() bool {
	return v.Status == ValidationPass
}

type ChartInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type Metadata struct {
	AgentUsed    string  `json:"agentUsed"`
	ResponseTime float64 `json:"responseTime"`
}
