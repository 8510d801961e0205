package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
)

// timestampLayout matches the ISO-8601 form emitted by browsers
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type projection struct {
	ClientID  string          `json:"clientId"`
	KristalID *string         `json:"kristalId"`
	SessionID *string         `json:"sessionId"`
	Messages  []storedMessage `json:"messages"`
}

type storedMessage struct {
	ID         model.MessageID         `json:"id"`
	Role       model.Role              `json:"role"`
	Content    string                  `json:"content"`
	Timestamp  json.RawMessage         `json:"timestamp"`
	Sources    []model.Source          `json:"sources,omitempty"`
	Validation *model.ValidationResult `json:"validation,omitempty"`
	Chart      *model.ChartInfo        `json:"chart,omitempty"`
	Metadata   *model.Metadata         `json:"metadata,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// persist must be called with s.mu held
func (s *Store) persist(ctx context.Context) error {
	p := projection{
		ClientID:  s.state.ClientID,
		KristalID: optional(s.state.KristalID),
		SessionID: optional(string(s.state.SessionID)),
		Messages:  make([]storedMessage, len(s.state.Messages)),
	}
	for i, msg := range s.state.Messages {
		ts, err := json.Marshal(msg.Timestamp.UTC().Format(timestampLayout))
		if err != nil {
			return goerr.Wrap(err, "failed to marshal timestamp", goerr.V("message_id", msg.ID))
		}
		p.Messages[i] = storedMessage{
			ID:         msg.ID,
			Role:       msg.Role,
			Content:    msg.Content,
			Timestamp:  ts,
			Sources:    msg.Sources,
			Validation: msg.Validation,
			Chart:      msg.Chart,
			Metadata:   msg.Metadata,
		}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal chat state")
	}
	if err := s.repo.Put(ctx, repository.NamespaceChat, data); err != nil {
		return goerr.Wrap(err, "failed to save chat state")
	}
	return nil
}

// Load restores a store from repo. Hydration never fails on content: a
// corrupted projection yields an empty store and a timestamp that is not an
// ISO-8601 string becomes the current time. Only repository failures are
// returned.
func Load(ctx context.Context, repo repository.Repository) (*Store, error) {
	return load(ctx, repo, time.Now)
}

func load(ctx context.Context, repo repository.Repository, now func() time.Time) (*Store, error) {
	s := New(repo)

	data, err := repo.Get(ctx, repository.NamespaceChat)
	if errors.Is(err, repository.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load chat state")
	}

	logger := logging.From(ctx)

	var p projection
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn("discarding corrupted chat state", "error", err)
		return s, nil
	}

	s.state.ClientID = p.ClientID
	s.state.KristalID = deref(p.KristalID)
	s.state.SessionID = model.SessionID(deref(p.SessionID))

	for _, stored := range p.Messages {
		if err := stored.Role.Validate(); err != nil {
			logger.Warn("skipping stored message", "message_id", stored.ID, "error", err)
			continue
		}
		s.state.Messages = append(s.state.Messages, model.ChatMessage{
			ID:         stored.ID,
			Role:       stored.Role,
			Content:    stored.Content,
			Timestamp:  parseTimestamp(stored.Timestamp, now),
			Sources:    stored.Sources,
			Validation: stored.Validation,
			Chart:      stored.Chart,
			Metadata:   stored.Metadata,
		})
	}

	return s, nil
}

func parseTimestamp(raw json.RawMessage, now func() time.Time) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return now()
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return now()
	}
	return ts
}
