package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/adapter"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/usecase/auth"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
)

// Messages written to the store error field
const (
	MsgClientIDRequired        = "Please set a Client ID first"
	MsgSessionClientIDRequired = "Please enter a Client ID"
	MsgCreateSessionFailed     = "Failed to create session"
	MsgEmptyReply              = "The agent returned an empty response"
)

// Controller runs user actions against the store and the agent service. Step
// failures of the agent are written to the store error field and only logged
// at info; returned errors are reserved for persistence failures and ErrBusy.
type Controller struct {
	store *Store
	agent adapter.Agent
	gate  *auth.Gate
	now   func() time.Time
}

// NewInput contains parameters for creating a controller
type NewInput struct {
	Store *Store
	Agent adapter.Agent
	Gate  *auth.Gate
	// Now defaults to time.Now
	Now func() time.Time
}

func NewController(input NewInput) *Controller {
	now := input.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store: input.Store,
		agent: input.Agent,
		gate:  input.Gate,
		now:   now,
	}
}

// Store returns the underlying chat store
func (c *Controller) Store() *Store {
	return c.store
}

// precheck applies the submit guards. It returns false when the turn must
// not be sent.
func (c *Controller) precheck(ctx context.Context, input string) (bool, error) {
	st := c.store.State()
	if strings.TrimSpace(input) == "" || st.IsLoading || st.ClientID == "" {
		if st.ClientID == "" {
			if err := c.store.SetError(ctx, MsgClientIDRequired); err != nil {
				return false, err
			}
		}
		if st.IsLoading {
			return false, ErrBusy
		}
		return false, nil
	}
	return true, nil
}

// Submit sends one chat turn and waits for the reply. It returns the
// assistant message that was appended, or nil when nothing was appended.
func (c *Controller) Submit(ctx context.Context, input string) (*model.ChatMessage, error) {
	ok, err := c.precheck(ctx, input)
	if !ok || err != nil {
		return nil, err
	}

	turn, err := c.store.beginTurn(ctx, input, c.now())
	if err != nil {
		if errors.Is(err, ErrBusy) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to start chat turn")
	}

	resp, sendErr := c.agent.SendMessage(ctx, &turn.Request)
	if sendErr != nil {
		logging.From(ctx).Info("failed to send message", "error", sendErr)
		if _, err := c.store.finishTurn(ctx, turn, nil, "", adapter.ErrorMessage(sendErr)); err != nil {
			return nil, goerr.Wrap(err, "failed to finish chat turn")
		}
		return nil, nil
	}

	if resp.Response == "" {
		if _, err := c.store.finishTurn(ctx, turn, nil, resp.SessionID, MsgEmptyReply); err != nil {
			return nil, goerr.Wrap(err, "failed to finish chat turn")
		}
		return nil, nil
	}

	reply := model.NewAssistantMessage(resp, c.now())
	applied, err := c.store.finishTurn(ctx, turn, &reply, resp.SessionID, "")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to finish chat turn")
	}
	if !applied {
		return nil, nil
	}
	return &reply, nil
}

// SubmitStream sends one chat turn over the streaming endpoint. onEvent, when
// set, sees every decoded event as it arrives. One assistant message is
// appended after the stream ends.
func (c *Controller) SubmitStream(ctx context.Context, input string, onEvent func(model.StreamEvent)) (*model.ChatMessage, error) {
	ok, err := c.precheck(ctx, input)
	if !ok || err != nil {
		return nil, err
	}

	turn, err := c.store.beginTurn(ctx, input, c.now())
	if err != nil {
		if errors.Is(err, ErrBusy) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to start chat turn")
	}

	resp, sessionID, errMsg := c.consumeStream(ctx, &turn.Request, onEvent)
	if errMsg != "" {
		if _, err := c.store.finishTurn(ctx, turn, nil, sessionID, errMsg); err != nil {
			return nil, goerr.Wrap(err, "failed to finish chat turn")
		}
		return nil, nil
	}

	reply := model.NewAssistantMessage(resp, c.now())
	applied, err := c.store.finishTurn(ctx, turn, &reply, sessionID, "")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to finish chat turn")
	}
	if !applied {
		return nil, nil
	}
	return &reply, nil
}

// consumeStream folds the event stream into a response. Attachment fields
// that fail to decode are logged and ignored, matching the per-line leniency
// of the decoder.
func (c *Controller) consumeStream(ctx context.Context, req *model.ChatRequest, onEvent func(model.StreamEvent)) (*model.ChatResponse, model.SessionID, string) {
	logger := logging.From(ctx)

	stream, err := c.agent.SendMessageStream(ctx, req)
	if err != nil {
		logger.Info("failed to open message stream", "error", err)
		return nil, "", adapter.ErrorMessage(err)
	}
	defer stream.Close()

	var (
		resp    model.ChatResponse
		text    strings.Builder
		errMsg  string
		session model.SessionID
	)

	for ev := range stream.All() {
		if onEvent != nil {
			onEvent(ev)
		}

		if msg := ev.ErrorMessage(); msg != "" {
			errMsg = msg
			break
		}
		if id := ev.SessionID(); id != "" {
			session = id
		}
		if full, ok := ev.Response(); ok {
			text.Reset()
			text.WriteString(full)
		} else {
			text.WriteString(ev.Delta())
		}

		if sources, err := ev.Sources(); err != nil {
			logger.Warn("ignoring malformed sources in stream event", "error", err)
		} else if sources != nil {
			resp.Sources = sources
		}
		if v, err := ev.Validation(); err != nil {
			logger.Warn("ignoring malformed validation in stream event", "error", err)
		} else if v != nil {
			resp.Validation = v
		}
		if chart, err := ev.Chart(); err != nil {
			logger.Warn("ignoring malformed chart in stream event", "error", err)
		} else if chart != nil {
			resp.Chart = chart
		}
		if md, err := ev.Metadata(); err != nil {
			logger.Warn("ignoring malformed metadata in stream event", "error", err)
		} else if md != nil {
			resp.Metadata = md
		}
	}

	if errMsg != "" {
		return nil, session, errMsg
	}
	if err := stream.Err(); err != nil {
		logger.Info("message stream interrupted", "error", err)
		return nil, session, adapter.ErrorMessage(err)
	}
	if text.Len() == 0 {
		return nil, session, MsgEmptyReply
	}

	resp.Response = text.String()
	resp.SessionID = session
	return &resp, session, ""
}

// CreateSession asks the agent service for a new session bound to the
// current client id.
func (c *Controller) CreateSession(ctx context.Context) (model.SessionID, error) {
	st := c.store.State()
	if st.ClientID == "" {
		return "", c.store.SetError(ctx, MsgSessionClientIDRequired)
	}

	resp, err := c.agent.CreateSession(ctx, st.ClientID, st.KristalID)
	if err != nil {
		logging.From(ctx).Info("failed to create session", "error", err)
		return "", c.store.SetError(ctx, MsgCreateSessionFailed)
	}

	if err := c.store.SetSessionID(ctx, resp.SessionID); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// NewChat starts over without changing the bound client identity
func (c *Controller) NewChat(ctx context.Context) error {
	if err := c.store.ClearChat(ctx); err != nil {
		return err
	}
	return c.store.SetSessionID(ctx, "")
}

// DismissError clears the error banner
func (c *Controller) DismissError(ctx context.Context) error {
	return c.store.SetError(ctx, "")
}

// Logout clears the conversation and then the authentication state
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.store.ClearChat(ctx); err != nil {
		return err
	}
	if c.gate == nil {
		return nil
	}
	return c.gate.Logout(ctx)
}
