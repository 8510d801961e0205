package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
	"github.com/m-mizutani/kristal/pkg/utils/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAgentURL     = "http://localhost:8000"
	DefaultAgentTimeout = 5 * time.Minute

	pathChat       = "/api/chat"
	pathSession    = "/api/session"
	pathChatStream = "/api/chat/stream"
)

// Agent is the interface for the remote advisory agent service
type Agent interface {
	// SendMessage submits one chat turn and waits for the full reply
	SendMessage(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)

	// CreateSession asks the service to open a new session for a client
	CreateSession(ctx context.Context, clientID, kristalID string) (*model.SessionResponse, error)

	// SendMessageStream submits one chat turn and returns the event stream.
	// The caller must Close the stream.
	SendMessageStream(ctx context.Context, req *model.ChatRequest) (*Stream, error)
}

type agentClient struct {
	baseURL string
	// client carries a whole-exchange timeout; stream relies on ctx only
	client *http.Client
	stream *http.Client
}

type AgentOption func(*agentClient)

// WithHTTPClient replaces the HTTP client used for every call
func WithHTTPClient(c *http.Client) AgentOption {
	return func(x *agentClient) {
		x.client = c
		x.stream = c
	}
}

// WithTimeout sets the timeout of non-streaming calls
func WithTimeout(d time.Duration) AgentOption {
	return func(x *agentClient) {
		x.client = &http.Client{Timeout: d}
	}
}

// NewAgent creates a client of the agent service at baseURL
func NewAgent(baseURL string, opts ...AgentOption) Agent {
	if baseURL == "" {
		baseURL = DefaultAgentURL
	}

	x := &agentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultAgentTimeout},
		stream:  &http.Client{},
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *agentClient) SendMessage(ctx context.Context, req *model.ChatRequest) (resp *model.ChatResponse, err error) {
	ctx, finish := x.begin(ctx, "agent.SendMessage",
		attribute.String("client_id", req.ClientID),
		attribute.String("session_id", string(req.SessionID)))
	defer func() { finish(err) }()

	httpResp, err := x.post(ctx, x.client, pathChat, req)
	if err != nil {
		if isTransportError(err) {
			return nil, newNetworkError("Failed to connect to server. Please check your connection.", err)
		}
		return nil, newNetworkError("An unexpected error occurred", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newNetworkError("An unexpected error occurred", err)
	}

	if !isSuccess(httpResp.StatusCode) {
		return nil, &AgentAPIError{
			Message:    extractErrorMessage(raw, httpResp.StatusCode),
			Details:    fmt.Sprintf("Status: %d", httpResp.StatusCode),
			StatusCode: httpResp.StatusCode,
		}
	}

	var out model.ChatResponse
	if err := decodeShaped(raw, chatResponseSchema, &out); err != nil {
		return nil, shapeError(err)
	}
	if err := out.Validate(); err != nil {
		return nil, shapeError(err)
	}

	return &out, nil
}

func (x *agentClient) CreateSession(ctx context.Context, clientID, kristalID string) (resp *model.SessionResponse, err error) {
	ctx, finish := x.begin(ctx, "agent.CreateSession", attribute.String("client_id", clientID))
	defer func() { finish(err) }()

	body := &model.SessionRequest{
		ClientID:  clientID,
		KristalID: kristalID,
	}

	httpResp, err := x.post(ctx, x.client, pathSession, body)
	if err != nil {
		return nil, newNetworkError("Failed to create session", err)
	}
	defer httpResp.Body.Close()

	if !isSuccess(httpResp.StatusCode) {
		return nil, &AgentAPIError{
			Message:    "Failed to create session",
			StatusCode: httpResp.StatusCode,
		}
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, newNetworkError("Failed to create session", err)
	}

	var out model.SessionResponse
	if err := decodeShaped(raw, sessionResponseSchema, &out); err != nil {
		if errors.Is(err, errMalformedBody) {
			return nil, newNetworkError("Failed to create session", err)
		}
		return nil, shapeError(err)
	}
	if out.SessionID == "" {
		return nil, shapeError(goerr.New("sessionId is empty"))
	}

	return &out, nil
}

func (x *agentClient) SendMessageStream(ctx context.Context, req *model.ChatRequest) (stream *Stream, err error) {
	ctx, finish := x.begin(ctx, "agent.SendMessageStream",
		attribute.String("client_id", req.ClientID),
		attribute.String("session_id", string(req.SessionID)))
	defer func() { finish(err) }()

	httpResp, err := x.post(ctx, x.stream, pathChatStream, req)
	if err != nil {
		if isTransportError(err) {
			return nil, newNetworkError("Failed to connect to server. Please check your connection.", err)
		}
		return nil, newNetworkError("An unexpected error occurred", err)
	}

	if !isSuccess(httpResp.StatusCode) {
		httpResp.Body.Close()
		return nil, &AgentAPIError{
			Message:    "Failed to stream message",
			Details:    fmt.Sprintf("Status: %d", httpResp.StatusCode),
			StatusCode: httpResp.StatusCode,
		}
	}

	if httpResp.Body == nil || httpResp.Body == http.NoBody {
		return nil, newNetworkError("No response body", nil)
	}

	return NewStream(httpResp.Body), nil
}

// begin opens a span for one call and returns the function that ends it
func (x *agentClient) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	logger := logging.From(ctx)
	logger.Debug("calling agent service", "operation", name)

	return ctx, func(err error) {
		elapsed := time.Since(started)
		telemetry.RecordCall(ctx, name, elapsed, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("agent call failed", "operation", name, "elapsed", elapsed, "error", err)
		} else {
			logger.Debug("agent call succeeded", "operation", name, "elapsed", elapsed)
		}
		span.End()
	}
}

func (x *agentClient) post(ctx context.Context, client *http.Client, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal request body", goerr.V("path", path))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Content-Type", "application/json")
	if path == pathChatStream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Error *errorDetail `json:"error"`
	// FastAPI nests the structured error under "detail"
	Detail json.RawMessage `json:"detail"`
}

// extractErrorMessage pulls error.message from a failure body, falling back to
// the status line.
func extractErrorMessage(raw []byte, status int) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != nil && body.Error.Message != "" {
			return body.Error.Message
		}
		var nested errorBody
		if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &nested) == nil {
			if nested.Error != nil && nested.Error.Message != "" {
				return nested.Error.Message
			}
		}
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

func shapeError(err error) error {
	if errors.Is(err, errMalformedBody) {
		return newNetworkError("An unexpected error occurred", err)
	}
	return &AgentAPIError{
		Message: "Invalid response from agent",
		Details: err.Error(),
		cause:   err,
	}
}
