package chat

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
)

var ErrBusy = goerr.New("a chat turn is already in flight")

// State is a snapshot of the chat store. Empty strings mean absent.
type State struct {
	SessionID model.SessionID
	ClientID  string
	KristalID string
	Messages  []model.ChatMessage
	IsLoading bool
	Error     string
}

// Store holds the conversation and writes its projection to the repository
// after every mutation. Loading and error flags are not persisted.
type Store struct {
	repo repository.Repository

	mu    sync.Mutex
	state State
	// epoch changes whenever the conversation is reset, so that replies to
	// turns submitted before the reset can be recognized.
	epoch uint64
}

// New creates an empty store backed by repo
func New(repo repository.Repository) *Store {
	return &Store{repo: repo}
}

// State returns a deep copy of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Store) snapshot() State {
	st := s.state
	st.Messages = make([]model.ChatMessage, len(s.state.Messages))
	for i, msg := range s.state.Messages {
		st.Messages[i] = msg.Clone()
	}
	return st
}

// update applies fn under the lock and persists the projection
func (s *Store) update(ctx context.Context, fn func(st *State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	return s.persist(ctx)
}

func (s *Store) SetClientID(ctx context.Context, id string) error {
	return s.update(ctx, func(st *State) { st.ClientID = id })
}

func (s *Store) SetKristalID(ctx context.Context, id string) error {
	return s.update(ctx, func(st *State) { st.KristalID = id })
}

// AddMessage appends msg. It never deduplicates or reorders.
func (s *Store) AddMessage(ctx context.Context, msg model.ChatMessage) error {
	msg = msg.Clone()
	return s.update(ctx, func(st *State) { st.Messages = append(st.Messages, msg) })
}

// SetLoading replaces the loading flag. It does not touch the error field.
func (s *Store) SetLoading(ctx context.Context, loading bool) error {
	return s.update(ctx, func(st *State) { st.IsLoading = loading })
}

// SetError replaces the error field; an empty string clears it. It does not
// touch the loading flag.
func (s *Store) SetError(ctx context.Context, msg string) error {
	return s.update(ctx, func(st *State) { st.Error = msg })
}

// ClearChat drops the messages and session id. Client and kristal ids stay.
func (s *Store) ClearChat(ctx context.Context) error {
	return s.update(ctx, func(st *State) {
		st.Messages = nil
		st.SessionID = ""
		s.epoch++
	})
}

func (s *Store) SetSessionID(ctx context.Context, id model.SessionID) error {
	return s.update(ctx, func(st *State) { st.SessionID = id })
}

// Turn identifies one in-flight chat turn
type Turn struct {
	Request model.ChatRequest
	epoch   uint64
}

// beginTurn appends the user message, raises the loading flag and clears the
// error in one step. It fails with ErrBusy while another turn is in flight.
// When the projection can not be saved the state is left as it was.
func (s *Store) beginTurn(ctx context.Context, content string, now time.Time) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsLoading {
		return nil, ErrBusy
	}

	prev := s.state
	s.state.Messages = append(s.state.Messages, model.NewUserMessage(content, now))
	s.state.IsLoading = true
	s.state.Error = ""

	turn := &Turn{
		Request: model.ChatRequest{
			Message:   content,
			ClientID:  s.state.ClientID,
			KristalID: s.state.KristalID,
			SessionID: s.state.SessionID,
		},
		epoch: s.epoch,
	}
	if err := s.persist(ctx); err != nil {
		// the turn never started, so nothing may stay in flight
		s.state = prev
		return nil, err
	}
	return turn, nil
}

// finishTurn lowers the loading flag and, unless the chat was reset while the
// turn was in flight, records the reply or the failure. It reports whether
// the outcome was applied.
func (s *Store) finishTurn(ctx context.Context, turn *Turn, reply *model.ChatMessage, sessionID model.SessionID, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsLoading = false

	applied := turn.epoch == s.epoch
	if applied {
		if reply != nil {
			s.state.Messages = append(s.state.Messages, reply.Clone())
		}
		if sessionID != "" {
			s.state.SessionID = sessionID
		}
		s.state.Error = errMsg
	} else {
		logging.From(ctx).Warn("dropping reply to a turn submitted before the chat was cleared",
			"session_id", turn.Request.SessionID)
	}

	if err := s.persist(ctx); err != nil {
		return applied, err
	}
	return applied, nil
}
