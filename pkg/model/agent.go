package model

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// ChatRequest is the body of POST /api/chat and POST /api/chat/stream
type ChatRequest struct {
	Message   string    `json:"message"`
	ClientID  string    `json:"clientId"`
	KristalID string    `json:"kristalId,omitempty"`
	SessionID SessionID `json:"sessionId,omitempty"`
}

// ChatResponse is the body returned by POST /api/chat
type ChatResponse struct {
	Response   string            `json:"response"`
	Sources    []Source          `json:"sources"`
	Validation *ValidationResult `json:"validation,omitempty"`
	SessionID  SessionID         `json:"sessionId"`
	Chart      *ChartInfo        `json:"chart,omitempty"`
	Metadata   *Metadata         `json:"metadata,omitempty"`
}

// Validate checks the typed fields after the schema check has passed
func (r *ChatResponse) Validate() error {
	if r.SessionID == "" {
		return goerr.New("sessionId is empty")
	}
	for i, src := range r.Sources {
		if err := src.Validate(); err != nil {
			return goerr.Wrap(err, "invalid source", goerr.V("index", i))
		}
	}
	if r.Validation != nil {
		if err := r.Validation.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SessionRequest is the body of POST /api/session
type SessionRequest struct {
	ClientID  string `json:"clientId"`
	KristalID string `json:"kristalId,omitempty"`
}

// SessionResponse is the body returned by POST /api/session. CreatedAt is kept
// as the raw string because the service emits naive timestamps.
type SessionResponse struct {
	SessionID    SessionID `json:"sessionId"`
	ClientID     string    `json:"clientId,omitempty"`
	KristalID    string    `json:"kristalId,omitempty"`
	CreatedAt    string    `json:"createdAt,omitempty"`
	MessageCount int       `json:"messageCount,omitempty"`
}

// StreamEvent is one decoded `data: ` line of /api/chat/stream
type StreamEvent map[string]any

// Delta returns the text fragment to append to the reply, if any
func (e StreamEvent) Delta() string {
	for _, key := range []string{"content", "delta", "text"} {
		if s, ok := e[key].(string); ok {
			return s
		}
	}
	return ""
}

// Response returns the complete reply text when the event carries one
func (e StreamEvent) Response() (string, bool) {
	s, ok := e["response"].(string)
	return s, ok
}

// SessionID returns the session identifier announced by the event
func (e StreamEvent) SessionID() SessionID {
	if s, ok := e["sessionId"].(string); ok {
		return SessionID(s)
	}
	return ""
}

// ErrorMessage returns the failure reported in-band by the service
func (e StreamEvent) ErrorMessage() string {
	switch v := e["error"].(type) {
	case string:
		return v
	case map[string]any:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
	}
	return ""
}

// Sources decodes the sources attached to the event
func (e StreamEvent) Sources() ([]Source, error) {
	var sources []Source
	if err := e.decode("sources", &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// Validation decodes the validation verdict attached to the event
func (e StreamEvent) Validation() (*ValidationResult, error) {
	var v *ValidationResult
	if err := e.decode("validation", &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Chart decodes the chart attached to the event
func (e StreamEvent) Chart() (*ChartInfo, error) {
	var c *ChartInfo
	if err := e.decode("chart", &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Metadata decodes the response metadata attached to the event
func (e StreamEvent) Metadata() (*Metadata, error) {
	var md *Metadata
	if err := e.decode("metadata", &md); err != nil {
		return nil, err
	}
	return md, nil
}

func (e StreamEvent) decode(key string, dst any) error {
	v, ok := e[key]
	if !ok || v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal stream event field", goerr.V("key", key))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return goerr.Wrap(err, "failed to decode stream event field", goerr.V("key", key))
	}
	return nil
}
